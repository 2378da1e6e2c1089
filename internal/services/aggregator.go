package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/cracks/internal/models"
	"github.com/soaringjerry/cracks/internal/utils"
)

// StoredRecord is one row of a response table: the serialized payload of each
// response kind, keyed by field name.
type StoredRecord struct {
	Signature string
	Fields    map[string]string
	UpdatedAt time.Time
}

// RecordStore abstracts the response table used by ResponseAggregator.
// Upsert replaces the named fields of the row matching rec.Signature and
// leaves its other fields untouched.
type RecordStore interface {
	Exists(ctx context.Context, collection, signature string) (bool, error)
	Select(ctx context.Context, collection, signature string) (*StoredRecord, error)
	Upsert(ctx context.Context, collection string, rec *StoredRecord) error
}

// Target names the table and payload field a deployment writes to.
type Target struct {
	Name       string `json:"name" yaml:"name"`
	Collection string `json:"collection" yaml:"collection"`
	Field      string `json:"field" yaml:"field"`
}

// SubmissionEvent describes a successful submission for downstream consumers.
type SubmissionEvent struct {
	Target      string    `json:"target"`
	Collection  string    `json:"collection"`
	Field       string    `json:"field"`
	Signature   string    `json:"signature_masked"`
	Keys        []string  `json:"keys"`
	PriorExists bool      `json:"prior_exists"`
	At          time.Time `json:"at"`
}

type SubmissionPublisher interface {
	PublishSubmission(ctx context.Context, ev SubmissionEvent) error
}

type SubmissionObserver interface {
	ObserveSubmission(target string, kind OutcomeKind, elapsed time.Duration)
}

type SubmitResult struct {
	Target      string
	Signature   string
	Masked      string
	PriorExists bool
	Payload     models.Payload
	SubmittedAt time.Time
}

// ResponseAggregator merges a visitor's new answers into the record stored
// under their signature and writes it back.
//
// The read-merge-write sequence is not atomic: two submissions for the same
// signature running concurrently both read the same prior payload and the
// later upsert drops whatever the earlier one added.
type ResponseAggregator struct {
	store     RecordStore
	target    Target
	logger    *zap.Logger
	publisher SubmissionPublisher
	observer  SubmissionObserver
	now       func() time.Time
}

var errNilStore = errors.New("record store is nil")

type AggregatorOption func(*ResponseAggregator)

func WithLogger(l *zap.Logger) AggregatorOption {
	return func(a *ResponseAggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithPublisher(p SubmissionPublisher) AggregatorOption {
	return func(a *ResponseAggregator) { a.publisher = p }
}

func WithObserver(o SubmissionObserver) AggregatorOption {
	return func(a *ResponseAggregator) { a.observer = o }
}

func NewResponseAggregator(store RecordStore, target Target, opts ...AggregatorOption) *ResponseAggregator {
	a := &ResponseAggregator{
		store:  store,
		target: target,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("target", target.Name), zap.String("collection", target.Collection))
	return a
}

func (a *ResponseAggregator) Target() Target { return a.target }

// Submit merges payload into the record stored for signature.
func (a *ResponseAggregator) Submit(ctx context.Context, signature string, payload models.Payload) (res *SubmitResult, err error) {
	start := a.now()
	if a.observer != nil {
		defer func() { a.observer.ObserveSubmission(a.target.Name, Classify(err).Kind, a.now().Sub(start)) }()
	}

	if len(payload) == 0 {
		return nil, ErrNoData
	}
	if strings.TrimSpace(signature) == "" {
		return nil, ErrMissingIdentity
	}
	if a.store == nil {
		return nil, &StorageError{Op: "exists", Err: errNilStore}
	}
	masked := utils.MaskSignature(signature)
	log := a.logger.With(zap.String("signature", masked))

	exists, err := a.store.Exists(ctx, a.target.Collection, signature)
	if err != nil {
		return nil, &StorageError{Op: "exists", Err: err}
	}

	existing := models.Payload{}
	rec, err := a.store.Select(ctx, a.target.Collection, signature)
	if err != nil {
		return nil, &StorageError{Op: "select", Err: err}
	}
	if rec != nil {
		prior, derr := DecodePriorPayload(rec.Fields[a.target.Field])
		if derr != nil {
			log.Warn("prior payload unreadable, merging over empty payload", zap.String("field", a.target.Field), zap.Error(derr))
		}
		existing = prior
	}

	merged := MergePayload(existing, payload)
	blob, err := json.Marshal(merged)
	if err != nil {
		return nil, &StorageError{Op: "encode", Err: err}
	}

	submittedAt := a.now()
	upsert := &StoredRecord{
		Signature: signature,
		Fields:    map[string]string{a.target.Field: string(blob)},
		UpdatedAt: submittedAt,
	}
	if err := a.store.Upsert(ctx, a.target.Collection, upsert); err != nil {
		return nil, &StorageError{Op: "upsert", Err: err}
	}
	log.Info("preferences integrated", zap.Bool("prior_exists", exists), zap.Int("fields", len(merged)))

	if a.publisher != nil {
		ev := SubmissionEvent{
			Target:      a.target.Name,
			Collection:  a.target.Collection,
			Field:       a.target.Field,
			Signature:   masked,
			Keys:        payload.Keys(),
			PriorExists: exists,
			At:          submittedAt,
		}
		if perr := a.publisher.PublishSubmission(ctx, ev); perr != nil {
			log.Warn("publish submission event", zap.Error(perr))
		}
	}

	return &SubmitResult{
		Target:      a.target.Name,
		Signature:   signature,
		Masked:      masked,
		PriorExists: exists,
		Payload:     merged,
		SubmittedAt: submittedAt,
	}, nil
}

// Load returns the payload currently stored for signature, or nil when the
// signature has no record.
func (a *ResponseAggregator) Load(ctx context.Context, signature string) (models.Payload, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, ErrMissingIdentity
	}
	if a.store == nil {
		return nil, &StorageError{Op: "select", Err: errNilStore}
	}
	rec, err := a.store.Select(ctx, a.target.Collection, signature)
	if err != nil {
		return nil, &StorageError{Op: "select", Err: err}
	}
	if rec == nil {
		return nil, nil
	}
	blob, ok := rec.Fields[a.target.Field]
	if !ok {
		return nil, nil
	}
	p, derr := DecodePriorPayload(blob)
	if derr != nil {
		a.logger.Warn("stored payload unreadable", zap.String("signature", utils.MaskSignature(signature)), zap.Error(derr))
	}
	return p, nil
}
