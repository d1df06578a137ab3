package task

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound = errors.New("task not found")
	ErrStoreNil = errors.New("task store is nil")
)

// ValidationError is a client-side fault: missing or malformed input, or a
// record the store refused because of its field constraints.
type ValidationError struct {
	Message string
	Fields  map[string]string // field name -> reason, may be nil
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(msg string, fields map[string]string) error {
	return &ValidationError{Message: msg, Fields: fields}
}
