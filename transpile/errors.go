package transpile

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedLocation indicates an AST location does not decode to "start:length:fileIndex", or points at
	// an unknown file or past the end of its file.
	ErrMalformedLocation = errors.New("malformed source location")
	// ErrInvalidRange indicates a pass produced an edit outside of its file's bounds.
	ErrInvalidRange = errors.New("edit range outside of file bounds")
	// ErrUnreadableRange indicates a read straddles the boundary of a committed edit.
	ErrUnreadableRange = errors.New("range partially overlaps a committed edit")
	// ErrConflictingEdit indicates two committed edits overlap without one containing the other.
	ErrConflictingEdit = errors.New("conflicting edits")
	// ErrMissingConstructorBody indicates a constructor definition without a body.
	ErrMissingConstructorBody = errors.New("constructor has no body")
	// ErrMissingBracePattern indicates an expected opening or closing brace could not be located.
	ErrMissingBracePattern = errors.New("brace not found")
	// ErrUnnamedParameter indicates a constructor parameter without a name, which can not be forwarded.
	ErrUnnamedParameter = errors.New("unnamed constructor parameter")
	// ErrUnsupportedNew indicates a contract creation which can not be followed by an initializer call.
	ErrUnsupportedNew = errors.New("unsupported new expression")
	// ErrUnsupportedSolc indicates the compiler version is outside the supported AST range.
	ErrUnsupportedSolc = errors.New("unsupported compiler version")
)

// IsStructuralError returns true if the error results from an AST that does not have the shape the
// constructor synthesis expects.
func IsStructuralError(err error) bool {
	return errors.Is(err, ErrMissingConstructorBody) || errors.Is(err, ErrMissingBracePattern) ||
		errors.Is(err, ErrUnnamedParameter)
}

// ConflictError describes two committed edits on the same file whose ranges overlap incompatibly.
type ConflictError struct {
	Path   string
	First  Transformation
	Second Transformation
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %v: %q %s overlaps %q %s", e.Path, ErrConflictingEdit,
		e.First.Kind, e.First.Range, e.Second.Kind, e.Second.Range)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflictingEdit
}
