package api

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type recordKey struct{ collection, signature string }

type memoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]*Record
	now     func() time.Time
}

// NewMemoryStore returns a Store kept entirely in process memory.
func NewMemoryStore() Store {
	return newMemoryStore()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records: map[recordKey]*Record{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryStore) Exists(ctx context.Context, collection, signature string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[recordKey{collection, signature}]
	return ok, nil
}

func (s *memoryStore) Select(ctx context.Context, collection, signature string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordKey{collection, signature}]
	if !ok {
		return nil, nil
	}
	return rec.clone(), nil
}

func (s *memoryStore) Upsert(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil || rec.Collection == "" || rec.Signature == "" {
		return errors.New("upsert: collection and signature required")
	}
	if len(rec.Fields) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{rec.Collection, rec.Signature}
	cur, ok := s.records[key]
	if !ok {
		cur = &Record{Collection: rec.Collection, Signature: rec.Signature, Fields: map[string]string{}}
		s.records[key] = cur
	}
	for k, v := range rec.Fields {
		cur.Fields[k] = v
	}
	cur.UpdatedAt = rec.UpdatedAt
	if cur.UpdatedAt.IsZero() {
		cur.UpdatedAt = s.now()
	}
	return nil
}

// List returns the records of a collection ordered by signature.
func (s *memoryStore) List(ctx context.Context, collection string) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*Record{}
	for k, rec := range s.records {
		if k.collection == collection {
			out = append(out, rec.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Signature < out[j].Signature })
	return out, nil
}

func (s *memoryStore) Close() error { return nil }
