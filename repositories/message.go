//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chatwire/domain"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces message records; sequenceKey feeds the id counter.
const (
	keyPrefix   = "msg:"
	sequenceKey = "seq:msg"

	// sequenceBandwidth is how many ids badger leases per fetch. Ids may
	// skip on restart but remain strictly monotonic, which is all the
	// protocol promises.
	sequenceBandwidth = 64
)

type IMessageRepository interface {
	Append(body, sender string, timestamp int64) (int64, error)
	LoadRecent(limit int) ([]domain.ChatMessage, error)
}

// MessageRepository persists the chat log in BadgerDB.
//
// It is not safe for concurrent use on its own; the registry routes every
// access through its single exclusion domain (single-writer discipline).
type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message id sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the id sequence lease. Call it before closing the DB.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// diskMessage is the stored form of one chat log entry.
type diskMessage struct {
	ID        int64  `json:"id"`
	Body      string `json:"body"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"ts"`
}

// Append stores one message and returns its assigned id.
// The key is formatted as "msg:{id_padded}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order equals id order equals append order).
//  2. Let LoadRecent walk the newest entries with a reverse prefix scan.
func (m *MessageRepository) Append(body, sender string, timestamp int64) (int64, error) {
	next, err := m.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next message id: %w", err)
	}
	id := int64(next) + 1

	value, err := json.Marshal(diskMessage{ID: id, Body: body, Sender: sender, Timestamp: timestamp})
	if err != nil {
		return 0, err
	}

	key := fmt.Sprintf("%s%019d", keyPrefix, id)
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// LoadRecent retrieves the most recent messages in chronological order.
// Thanks to the padded id in the key, a reverse iteration yields newest
// first; the collected window is flipped before returning. limit <= 0
// loads the full log.
func (m *MessageRepository) LoadRecent(limit int) ([]domain.ChatMessage, error) {
	var values [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(keyPrefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the highest possible key, then walk backwards.
		seekKey := append([]byte(keyPrefix), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(values) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				values = append(values, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]domain.ChatMessage, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		var dm diskMessage
		if err = json.Unmarshal(values[i], &dm); err != nil {
			return nil, err
		}
		messages = append(messages, domain.ChatMessage{
			ID:        dm.ID,
			Body:      dm.Body,
			Sender:    dm.Sender,
			Timestamp: dm.Timestamp,
		})
	}
	return messages, nil
}
