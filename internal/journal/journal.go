// Package journal keeps a local record of capture attempts and their upload
// outcomes, so field units can be inspected after the fact.
package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Entry is one capture attempt.
type Entry struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Bytes      int64     `json:"bytes"`
	Outcome    string    `json:"outcome"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Outcome values recorded per entry.
const (
	OutcomeUploaded     = "uploaded"
	OutcomeUploadFailed = "upload_failed"
	OutcomeBadResponse  = "bad_response"
	OutcomeDiscarded    = "discarded"
)

// Store persists entries under a time-ordered key prefix.
type Store struct {
	db *badger.DB
}

func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Append persists one entry. The key embeds the finish timestamp so scans
// come back in chronological order.
func (s *Store) Append(ctx context.Context, e Entry) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	key := []byte("rec:" + e.FinishedAt.UTC().Format(time.RFC3339Nano) + ":" + e.ID)
	buf, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf)
	})
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	prefix := []byte("rec:")
	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts just past the prefix range.
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < n; it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
