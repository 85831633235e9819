package history

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"regscan/pkg/extract"
)

// DefaultKey is the logical key the whole history lives under.
const DefaultKey = "ocr_history"

// Record is one saved scan.
type Record struct {
	ID         int64          `json:"id"`
	ParsedData extract.Record `json:"parsedData"`
	Confidence float64        `json:"confidence"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Store keeps the scan history as one JSON array in a KV. Every mutation
// re-reads the persisted array and writes it back whole.
type Store struct {
	kv  KV
	key string
	now func() time.Time

	mu     sync.Mutex
	lastID int64
}

// NewStore returns a Store over kv. An empty key means DefaultKey.
func NewStore(kv KV, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{kv: kv, key: key, now: time.Now}
}

// Backend names the underlying KV.
func (s *Store) Backend() string { return s.kv.Backend() }

func (s *Store) fail(op string, err error) error {
	return &PersistenceError{Op: op, Backend: s.kv.Backend(), Err: err}
}

func (s *Store) load(ctx context.Context) ([]Record, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, s.fail("read", err)
	}
	recs := []Record{}
	if len(raw) == 0 {
		return recs, nil
	}
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, s.fail("decode", err)
	}
	return recs, nil
}

func (s *Store) persist(ctx context.Context, recs []Record) error {
	raw, err := json.Marshal(recs)
	if err != nil {
		return s.fail("encode", err)
	}
	if err := s.kv.Put(ctx, s.key, raw); err != nil {
		return s.fail("write", err)
	}
	return nil
}

// List returns the saved records in insertion order.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	return s.load(ctx)
}

// Save appends rec with a fresh id and creation time.
func (s *Store) Save(ctx context.Context, rec extract.Record, confidence float64) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load(ctx)
	if err != nil {
		return Record{}, err
	}
	now := s.now().UTC()
	id := max(now.UnixMilli(), s.lastID+1)
	for _, r := range recs {
		if r.ID >= id {
			id = r.ID + 1
		}
	}
	saved := Record{ID: id, ParsedData: rec, Confidence: confidence, CreatedAt: now.Truncate(time.Millisecond)}
	if err := s.persist(ctx, append(recs, saved)); err != nil {
		return saved, err
	}
	s.lastID = id
	return saved, nil
}

// Delete removes the record with id. An unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load(ctx)
	if err != nil {
		return err
	}
	kept := recs[:0]
	for _, r := range recs {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(recs) {
		return nil
	}
	return s.persist(ctx, kept)
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return s.fail("clear", err)
	}
	return nil
}

// Close closes the underlying KV.
func (s *Store) Close() error { return s.kv.Close() }
