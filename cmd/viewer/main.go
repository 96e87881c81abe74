// Command viewer inspects the local message cache without running the
// client. It opens BadgerDB read-only and prints cached messages as a
// table, optionally filtered by conversation.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"convosync/internal"
)

type cachedMessage struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderName     string `json:"sender_name"`
	Body           string `json:"body"`
	Kind           string `json:"kind"`
	At             int64  `json:"at"`
}

func main() {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	conversation := flag.String("conversation", "", "Only show this conversation")
	flag.Parse()

	// BypassLockGuard allows opening while the client holds the lock
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Conversation", "Sender", "Kind", "Body"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	prefix := "msg:"
	if *conversation != "" {
		prefix = fmt.Sprintf("msg:%s:", *conversation)
	}

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			if strings.HasPrefix(string(item.Key()), "ref:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				var msg cachedMessage
				if err := json.Unmarshal(v, &msg); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}

				body := msg.Body
				if len(body) > 60 {
					body = body[:60] + "…"
				}

				table.Append([]string{
					string(item.Key()),
					msg.ConversationID,
					msg.SenderName,
					msg.Kind,
					body,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}
