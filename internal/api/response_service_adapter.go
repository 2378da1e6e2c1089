package api

import (
	"context"

	"github.com/soaringjerry/cracks/internal/services"
)

type recordStoreAdapter struct {
	store Store
}

// NewRecordStoreAdapter exposes a Store to the response aggregator.
func NewRecordStoreAdapter(store Store) services.RecordStore {
	return &recordStoreAdapter{store: store}
}

func (a *recordStoreAdapter) Exists(ctx context.Context, collection, signature string) (bool, error) {
	return a.store.Exists(ctx, collection, signature)
}

func (a *recordStoreAdapter) Select(ctx context.Context, collection, signature string) (*services.StoredRecord, error) {
	rec, err := a.store.Select(ctx, collection, signature)
	if err != nil || rec == nil {
		return nil, err
	}
	return &services.StoredRecord{Signature: rec.Signature, Fields: rec.Fields, UpdatedAt: rec.UpdatedAt}, nil
}

func (a *recordStoreAdapter) Upsert(ctx context.Context, collection string, rec *services.StoredRecord) error {
	return a.store.Upsert(ctx, &Record{
		Collection: collection,
		Signature:  rec.Signature,
		Fields:     rec.Fields,
		UpdatedAt:  rec.UpdatedAt,
	})
}

var _ services.RecordStore = (*recordStoreAdapter)(nil)
