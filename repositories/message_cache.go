//go:generate go run go.uber.org/mock/mockgen -source=message_cache.go -destination=../mocks/mock_message_cache.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"convosync/domain"
)

type IMessageCache interface {
	Store(message domain.Message) error
	Recent(conversationID string, cursor *string) ([]domain.Message, *string, error)
	Delete(conversationID, messageID string) error
}

// MessageCache persists normalized messages in BadgerDB so a cold
// start can paint the selected conversation before the authoritative
// fetch lands. Only confirmed messages go in here, never pending ones.
type MessageCache struct {
	db    *badger.DB
	log   *slog.Logger
	limit *int
}

func NewMessageCache(db *badger.DB, log *slog.Logger, limit *int) MessageCache {
	return MessageCache{db: db, log: log, limit: limit}
}

// Store writes a message under "msg:{conversation}:{timestamp_padded}:{id}".
// The 19-digit zero padding keeps keys lexicographically chronological;
// the id suffix disambiguates two messages on the same nanosecond. A
// secondary "ref:" key maps the message id back to its primary key so
// deletion does not need the timestamp.
func (c MessageCache) Store(message domain.Message) error {
	if message.Pending {
		return nil
	}
	key := fmt.Sprintf("msg:%s:%019d:%s",
		message.ConversationID,
		message.CreatedAt.UnixNano(),
		message.ID,
	)
	bytes, err := json.Marshal(toDiskMessage(message))
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), bytes); err != nil {
			return err
		}
		refKey := fmt.Sprintf("ref:%s:%s", message.ConversationID, message.ID)
		return txn.Set([]byte(refKey), []byte(key))
	})
}

// Recent returns messages for a conversation, newest first, using a
// reverse prefix scan. The returned cursor resumes the scan on the
// next call; collection stops at the configured limit.
func (c MessageCache) Recent(conversationID string, cursor *string) ([]domain.Message, *string, error) {
	var raw [][]byte
	var lastKey string
	err := c.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", conversationID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk back.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if c.limit != nil && len(raw) == *c.limit {
				c.log.Debug(fmt.Sprintf("Maximum of %d cached messages reached", *c.limit))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := make([]domain.Message, 0, len(raw))
	for _, b := range raw {
		var disk diskMessage
		if err = json.Unmarshal(b, &disk); err != nil {
			return nil, nil, err
		}
		messages = append(messages, fromDiskMessage(disk))
	}
	return messages, &lastKey, nil
}

// Delete removes a message by id, resolving the primary key through
// its ref entry. A missing entry is not an error.
func (c MessageCache) Delete(conversationID, messageID string) error {
	refKey := []byte(fmt.Sprintf("ref:%s:%s", conversationID, messageID))
	return c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(refKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var primary []byte
		if err := item.Value(func(v []byte) error {
			primary = append([]byte(nil), v...)
			return nil
		}); err != nil {
			return err
		}
		if err := txn.Delete(primary); err != nil {
			return err
		}
		return txn.Delete(refKey)
	})
}
