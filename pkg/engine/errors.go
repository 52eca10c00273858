package engine

import "fmt"

// TransportError wraps a failed remote call with the operation it served.
// Callers treat it as "no data available"; the cause stays reachable through
// Unwrap.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NotFoundError reports a referenced project, issue type or issue that does
// not exist on the tracker.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// DataError reports malformed or insufficient input data.
type DataError struct {
	Msg string
}

func (e *DataError) Error() string { return e.Msg }

func dataErr(format string, args ...any) error {
	return &DataError{Msg: fmt.Sprintf(format, args...)}
}
