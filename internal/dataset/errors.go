package dataset

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrMissingColumn     = errors.New("column not found")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrNoHeader          = errors.New("no header row")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// UnsupportedFormatError is returned by the loader for unknown file extensions
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return fmt.Sprintf("unsupported file format for %q: no extension", e.Path)
	}
	return fmt.Sprintf("unsupported file format %q for %q", e.Ext, e.Path)
}

// Is matches ErrUnsupportedFormat
func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// MissingColumnError reports a referenced column absent from the table.
// Field is set when the column was required by a schema field.
type MissingColumnError struct {
	Column string
	Field  string
}

func (e *MissingColumnError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("column %q (schema field %s) not found", e.Column, e.Field)
	}
	return fmt.Sprintf("column %q not found", e.Column)
}

// Is matches ErrMissingColumn
func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}

// DivisionByZeroError is returned under DivisionError policy
type DivisionByZeroError struct {
	Row         int
	Numerator   string
	Denominator string
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("division by zero at row %d: %s / %s", e.Row, e.Numerator, e.Denominator)
}

// Is matches ErrDivisionByZero
func (e *DivisionByZeroError) Is(target error) bool {
	return target == ErrDivisionByZero
}

// ParseError wraps a failure to decode a source file
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
