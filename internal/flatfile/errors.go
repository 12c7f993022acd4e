package flatfile

import "fmt"

// DialectError means the delimiter could not be inferred. It aborts the read;
// there is no recovery because the same input will always fail identically.
type DialectError struct {
	Msg string
}

func (e *DialectError) Error() string {
	return "cannot infer flatfile dialect: " + e.Msg
}

// Error is a structural or semantic flatfile failure: missing intensity
// measure columns, a type mismatch, or malformed CSV content. It is reported
// to the caller as a user-input error and never retried.
type Error struct {
	Column string // offending column, empty for file-level failures
	Msg    string
}

func (e *Error) Error() string {
	if e.Column == "" {
		return "invalid flatfile: " + e.Msg
	}
	return fmt.Sprintf("invalid flatfile: column %q: %s", e.Column, e.Msg)
}

// QueryError is a malformed row-filter expression, including a reference to
// an unknown column.
type QueryError struct {
	Expr string
	Msg  string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid query %q: %s", e.Expr, e.Msg)
}

// IncompatibleColumnError is a rename collision: the mapped target name
// already exists verbatim in the header.
type IncompatibleColumnError struct {
	Column string
}

func (e *IncompatibleColumnError) Error() string {
	return fmt.Sprintf("column rename target %q already present in header", e.Column)
}
