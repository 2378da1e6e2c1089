package services

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorUnauthorized ErrorCode = "unauthorized"
	ErrorBadGateway   ErrorCode = "bad_gateway"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error  { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewNotFoundError(msg string) error { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

var (
	// ErrNoData is returned when a submission carries an empty payload.
	ErrNoData = errors.New("no data submitted")
	// ErrMissingIdentity is returned when a submission has no signature.
	ErrMissingIdentity = errors.New("signature cannot be null or empty")
)

// StorageError wraps a failure of the record store during a submission.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// OutcomeKind classifies the result of a submission for the caller.
type OutcomeKind string

const (
	OutcomeOK              OutcomeKind = "ok"
	OutcomeNoData          OutcomeKind = "no_data"
	OutcomeMissingIdentity OutcomeKind = "missing_identity"
	OutcomeStorage         OutcomeKind = "storage"
)

// Outcome is the reported form of a submission error.
type Outcome struct {
	Kind  OutcomeKind
	Cause error
}

// MessageKey is the i18n key describing the outcome.
func (o Outcome) MessageKey() string { return "submit." + string(o.Kind) }

// Classify converts a Submit error into an Outcome. Unknown errors are
// reported as storage failures so nothing escapes unclassified.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Kind: OutcomeOK}
	case errors.Is(err, ErrNoData):
		return Outcome{Kind: OutcomeNoData, Cause: err}
	case errors.Is(err, ErrMissingIdentity):
		return Outcome{Kind: OutcomeMissingIdentity, Cause: err}
	}
	var se *StorageError
	if errors.As(err, &se) {
		return Outcome{Kind: OutcomeStorage, Cause: se.Err}
	}
	return Outcome{Kind: OutcomeStorage, Cause: err}
}
