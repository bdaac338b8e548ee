package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnsupportedFormat    Kind = "unsupported_format"
	KindExtractionFailed     Kind = "extraction_failed"
	KindEmbeddingUnavailable Kind = "embedding_unavailable"
	KindGenerationFailed     Kind = "generation_failed"
	KindSchemaViolation      Kind = "schema_violation"
	KindBudgetExceeded       Kind = "budget_exceeded"
	KindPersistenceError     Kind = "persistence_error"
	KindInvalidInput         Kind = "invalid_input"
)

// Status maps a kind to the HTTP status class the transport layer reports it under.
func (k Kind) Status() int {
	switch k {
	case KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case KindSchemaViolation:
		return http.StatusUnprocessableEntity
	case KindBudgetExceeded:
		return http.StatusRequestEntityTooLarge
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindExtractionFailed:
		return http.StatusUnprocessableEntity
	case KindGenerationFailed, KindEmbeddingUnavailable:
		return http.StatusBadGateway
	case KindPersistenceError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Kind != "":
		return string(e.Kind)
	default:
		return "api error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error whose Status is derived from kind.
func New(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Status: kind.Status(), Detail: detail, Err: err}
}

// Newf is New with a formatted detail and no cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...), nil)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf reports the HTTP status for err, defaulting to 500 for untyped errors.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e != nil {
		if e.Status != 0 {
			return e.Status
		}
		return e.Kind.Status()
	}
	return http.StatusInternalServerError
}
