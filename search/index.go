//go:generate go run go.uber.org/mock/mockgen -source=index.go -destination=../mocks/mock_search_index.go -package=mocks
// Package search maintains a local full-text index over synchronized
// messages so lookups work offline and without a server round trip.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"

	"convosync/domain"
)

type IMessageIndex interface {
	Index(message domain.Message) error
	Delete(messageID string) error
	Search(ctx context.Context, query Query) ([]Hit, error)
	Close() error
}

// Query is a parsed local search request. Empty filter fields are
// ignored.
type Query struct {
	Text           string
	ConversationID string
	SenderID       string
	Kind           string
	After          time.Time
	Before         time.Time
	Limit          int
}

// Hit is one search result. Only identity and the stored body come
// back from the index; the engine or cache resolves the full message.
type Hit struct {
	MessageID      string
	ConversationID string
	Body           string
	Score          float64
}

const defaultSearchLimit = 25

// MessageIndex wraps a bluge writer. Pending messages are never
// indexed; the confirmed instance replaces nothing because it carries
// a different id.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

func (i *MessageIndex) Index(message domain.Message) error {
	if message.Pending || message.ID == "" {
		return nil
	}

	doc := bluge.NewDocument(message.ID).
		AddField(bluge.NewTextField("body", message.Body).StoreValue()).
		AddField(bluge.NewKeywordField("conversation_id", message.ConversationID).StoreValue()).
		AddField(bluge.NewKeywordField("sender_id", message.SenderID)).
		AddField(bluge.NewKeywordField("kind", string(message.Kind))).
		AddField(bluge.NewDateTimeField("created_at", message.CreatedAt))

	return i.writer.Update(doc.ID(), doc)
}

func (i *MessageIndex) Delete(messageID string) error {
	return i.writer.Delete(bluge.Identifier(messageID))
}

// Search runs a boolean query: the text match plus one term filter
// per populated field.
func (i *MessageIndex) Search(ctx context.Context, query Query) ([]Hit, error) {
	boolean := bluge.NewBooleanQuery()
	if query.Text != "" {
		boolean.AddMust(bluge.NewMatchQuery(query.Text).SetField("body"))
	} else {
		boolean.AddMust(bluge.NewMatchAllQuery())
	}
	if query.ConversationID != "" {
		boolean.AddMust(bluge.NewTermQuery(query.ConversationID).SetField("conversation_id"))
	}
	if query.SenderID != "" {
		boolean.AddMust(bluge.NewTermQuery(query.SenderID).SetField("sender_id"))
	}
	if query.Kind != "" {
		boolean.AddMust(bluge.NewTermQuery(query.Kind).SetField("kind"))
	}
	if !query.After.IsZero() || !query.Before.IsZero() {
		before := query.Before
		if before.IsZero() {
			before = time.Now().Add(24 * time.Hour)
		}
		boolean.AddMust(bluge.NewDateRangeQuery(query.After, before).SetField("created_at"))
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Closing index reader failed", slog.String("error", err.Error()))
		}
	}()

	dmi, err := reader.Search(ctx, bluge.NewTopNSearch(limit, boolean))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for match, err := dmi.Next(); match != nil; match, err = dmi.Next() {
		if err != nil {
			return nil, err
		}
		hit := Hit{Score: match.Score}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "conversation_id":
				hit.ConversationID = string(value)
			case "body":
				hit.Body = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (i *MessageIndex) Close() error {
	return i.writer.Close()
}
