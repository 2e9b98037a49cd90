// Read-only dump of the relay's BadgerDB: messages of one conversation, or
// every stored presence record, rendered as a table. Opens with
// BypassLockGuard so it works while the relay holds the lock.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"

	"chat-relay/domain"
)

func main() {
	path := flag.String("db", "data/relay", "badger database path")
	chatID := flag.String("chat", "", "dump messages for this chat id")
	statuses := flag.Bool("status", false, "dump presence records")
	flag.Parse()

	opts := badger.DefaultOptions(*path).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	switch {
	case *chatID != "":
		dumpMessages(db, *chatID)
	case *statuses:
		dumpStatuses(db)
	default:
		fmt.Println("Nothing to do: pass -chat <id> or -status")
	}
}

func dumpMessages(db *badger.DB, chatID string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Sender", "Receiver", "Status", "Text"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	err := db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte("msg:" + chatID + ":")
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var message domain.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			}); err != nil {
				return err
			}
			table.Append([]string{
				time.UnixMilli(message.Timestamp).Format(time.RFC822),
				message.SenderID,
				message.ReceiverID,
				message.Status,
				message.Text,
			})
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	table.Render()
}

func dumpStatuses(db *badger.DB) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"User", "Online", "Last seen"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	err := db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte("status:")
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var record domain.PresenceRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return err
			}
			lastSeen := ""
			if record.LastSeen > 0 {
				lastSeen = time.UnixMilli(record.LastSeen).Format(time.RFC822)
			}
			table.Append([]string{record.UserID, fmt.Sprintf("%t", record.Online), lastSeen})
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	table.Render()
}
