package documents

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformedInput indicates the request body could not be decoded.
	ErrMalformedInput = errors.New("documents: malformed input")
	// ErrMissingField indicates a required field is absent or blank.
	ErrMissingField = errors.New("documents: missing field")
	// ErrInvalidItems indicates line items without a description.
	ErrInvalidItems = errors.New("documents: invalid items")
	// ErrDuplicateKey indicates another header already uses the document number.
	ErrDuplicateKey = errors.New("documents: duplicate key")
	// ErrNotFound indicates the header does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRecipientConflict indicates a concurrent request created the same recipient.
	ErrRecipientConflict = errors.New("documents: recipient created concurrently")
)

// ValidationError is returned by the normalizer. Class is one of
// ErrMalformedInput, ErrMissingField or ErrInvalidItems.
type ValidationError struct {
	Class   error
	Field   string
	Indices []int
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Class.Error()
}

func (e *ValidationError) Unwrap() error { return e.Class }

func malformed(msg string) *ValidationError {
	return &ValidationError{Class: ErrMalformedInput, Message: msg}
}

func missingField(name string) *ValidationError {
	return &ValidationError{Class: ErrMissingField, Field: name, Message: "missing required field: " + name}
}

func invalidItems(indices []int) *ValidationError {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return &ValidationError{
		Class:   ErrInvalidItems,
		Indices: indices,
		Message: "items missing description at position(s): " + strings.Join(parts, ", "),
	}
}

// DuplicateKeyError reports a natural key collision.
type DuplicateKeyError struct {
	Kind   Kind
	Number string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s number %s already exists", e.Kind.Label(), e.Number)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

func notFound(kind Kind, id int64) error {
	return fmt.Errorf("%s %d: %w", kind.Label(), id, ErrNotFound)
}
