package api

import (
	"context"
	"time"
)

// Record is one row of a response table. Fields holds the serialized JSON
// payload of each response kind keyed by field name.
type Record struct {
	Collection string            `json:"collection"`
	Signature  string            `json:"signature"`
	Fields     map[string]string `json:"fields"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (r *Record) clone() *Record {
	cp := *r
	cp.Fields = make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		cp.Fields[k] = v
	}
	return &cp
}

// Store is the response table. There is at most one record per
// (collection, signature); Upsert replaces the fields named in rec and keeps
// the others.
type Store interface {
	Exists(ctx context.Context, collection, signature string) (bool, error)
	Select(ctx context.Context, collection, signature string) (*Record, error)
	Upsert(ctx context.Context, rec *Record) error
	List(ctx context.Context, collection string) ([]*Record, error)
	Close() error
}

var _ Store = (*memoryStore)(nil)
