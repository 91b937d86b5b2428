// Package failure defines the error taxonomy surfaced by the chat sync client.
package failure

import (
	"github.com/pkg/errors"
)

// Type classifies a failure for the presentation layer.
type Type string

const (
	TypeFetch      Type = "fetchError"
	TypeInsert     Type = "insertError"
	TypeUpdate     Type = "updateError"
	TypeDelete     Type = "deleteError"
	TypeParse      Type = "parseError"
	TypeNetwork    Type = "networkError"
	TypeValidation Type = "validationError"
	TypeAuth       Type = "authError"
	TypeUnknown    Type = "unKnownError"
)

// Failure is the error value carried across the client's public boundary.
// It keeps a human-readable message next to the classification so the UI
// can display it verbatim.
type Failure struct {
	Message string
	Type    Type
	cause   error
}

// New creates a Failure without an underlying cause.
func New(t Type, message string) *Failure {
	return &Failure{Message: message, Type: t}
}

// Wrap creates a Failure around an underlying error. A nil err returns nil.
func Wrap(err error, t Type, message string) *Failure {
	if err == nil {
		return nil
	}
	return &Failure{Message: message, Type: t, cause: err}
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return f.Message + ": " + f.cause.Error()
	}
	return f.Message
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (f *Failure) Unwrap() error {
	return f.cause
}

// TypeOf returns the classification of err, or TypeUnknown if err carries
// no Failure anywhere in its chain.
func TypeOf(err error) Type {
	var f *Failure
	if errors.As(err, &f) {
		return f.Type
	}
	return TypeUnknown
}

// IsType reports whether err is classified as t.
func IsType(err error, t Type) bool {
	return TypeOf(err) == t
}
