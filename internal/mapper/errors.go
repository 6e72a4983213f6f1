package mapper

import (
	"errors"
	"fmt"
)

// Sentinel errors for mapping operations.
var (
	// ErrInvalidMapping signals a broken mapping definition: wrong declared
	// type, unknown type parser, property without a determinable type.
	ErrInvalidMapping = errors.New("invalid mapping")
	// ErrUnhandledValue signals a dynamic value no default rule or template
	// can map (an inference gap, fatal for the document).
	ErrUnhandledValue = errors.New("unhandled dynamic value")
	// ErrInvalidDocument signals a document that is not parseable at all.
	ErrInvalidDocument = errors.New("invalid document")
)

// ParsingError is a configuration error in a mapping definition.
type ParsingError struct {
	Msg string
}

func (e *ParsingError) Error() string { return "mapping: " + e.Msg }

func (e *ParsingError) Unwrap() error { return ErrInvalidMapping }

func parsingErrorf(format string, args ...any) error {
	return &ParsingError{Msg: fmt.Sprintf(format, args...)}
}

// documentErrorf reports a document value the existing mapping rejects.
// The mapping itself is fine, so these unwrap to ErrInvalidDocument, not
// ErrInvalidMapping.
func documentErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...))
}

// DynamicValueError reports a dynamic scalar of a kind that neither the
// inference rules nor any template can handle.
type DynamicValueError struct {
	Kind  TokenKind
	Field string
}

func (e *DynamicValueError) Error() string {
	return fmt.Sprintf("can't handle serializing a dynamic type with content token [%s] and field name [%s]", e.Kind, e.Field)
}

func (e *DynamicValueError) Unwrap() error { return ErrUnhandledValue }
