package mlt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/heimdex/mlt2fcpx/internal/timecode"
)

var (
	ErrMalformedTimecode   = timecode.ErrMalformed
	ErrMissingProperty     = errors.New("missing property")
	ErrUnresolvedReference = errors.New("unresolved reference")
	ErrUnsupportedNesting  = errors.New("unsupported nesting")
	ErrInvalidRange        = errors.New("invalid range")
)

const (
	CodeMalformedTimecode   = "MALFORMED_TIMECODE"
	CodeMissingProperty     = "MISSING_PROPERTY"
	CodeUnresolvedReference = "UNRESOLVED_REFERENCE"
	CodeUnsupportedNesting  = "UNSUPPORTED_NESTING"
	CodeInvalidRange        = "INVALID_RANGE"
	CodeInvalidDocument     = "INVALID_DOCUMENT"
)

// ParseError locates a fatal problem inside an MLT document.
type ParseError struct {
	Path    string // source document, empty when read from a stream
	Element string // profile, producer, playlist, ...
	ID      string
	Attr    string
	Err     error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("mlt")
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Element != "" {
		fmt.Fprintf(&b, ": %s", e.Element)
		if e.ID != "" {
			fmt.Fprintf(&b, " %q", e.ID)
		}
	}
	if e.Attr != "" {
		fmt.Fprintf(&b, ": %s", e.Attr)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Code maps err to a stable identifier for reports and API responses.
// Errors outside the MLT taxonomy yield the empty string.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	// Nesting failures wrap the nested document's own error, so check it first.
	case errors.Is(err, ErrUnsupportedNesting):
		return CodeUnsupportedNesting
	case errors.Is(err, ErrMalformedTimecode):
		return CodeMalformedTimecode
	case errors.Is(err, ErrMissingProperty):
		return CodeMissingProperty
	case errors.Is(err, ErrUnresolvedReference):
		return CodeUnresolvedReference
	case errors.Is(err, ErrInvalidRange):
		return CodeInvalidRange
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return CodeInvalidDocument
	}
	return ""
}

// nestingError wraps the failure of an embedded document so both the
// nesting marker and the nested cause stay matchable.
type nestingError struct {
	path string
	err  error
}

func (e *nestingError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%v: %s", ErrUnsupportedNesting, e.path)
	}
	return fmt.Sprintf("%v: %s: %v", ErrUnsupportedNesting, e.path, e.err)
}

func (e *nestingError) Unwrap() []error {
	if e.err == nil {
		return []error{ErrUnsupportedNesting}
	}
	return []error{ErrUnsupportedNesting, e.err}
}
