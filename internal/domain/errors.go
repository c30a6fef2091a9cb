package domain

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure for logging, counting and API
// error envelopes. Nothing in the ingest or serving path treats any of
// these as fatal.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindUnresolvedLocation Kind = "unresolved_location"
	KindDisconnected       Kind = "disconnected"
	KindPersistence        Kind = "persistence"
	KindConfig             Kind = "config"
	KindNotFound           Kind = "not_found"
)

// Error is a classified error surfaced at component boundaries
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Errorf builds a classified error with a formatted message
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from an error chain, or "" for unclassified errors
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
