package clone

import (
	"strconv"
	"strings"
)

// SchemaNotFoundError means the source index does not exist.
type SchemaNotFoundError struct {
	Index string
	Err   error
}

func (e *SchemaNotFoundError) Error() string {
	return "source index " + strconv.Quote(e.Index) + " not found: " + e.Err.Error()
}

func (e *SchemaNotFoundError) Unwrap() error { return e.Err }

// SchemaReadError means the source index definition could not be read.
type SchemaReadError struct {
	Index string
	Err   error
}

func (e *SchemaReadError) Error() string {
	return "read source index " + strconv.Quote(e.Index) + ": " + e.Err.Error()
}

func (e *SchemaReadError) Unwrap() error { return e.Err }

// SchemaWriteError means the target rejected the index definition.
type SchemaWriteError struct {
	Index string
	Err   error
}

func (e *SchemaWriteError) Error() string {
	return "write target index " + strconv.Quote(e.Index) + ": " + e.Err.Error()
}

func (e *SchemaWriteError) Unwrap() error { return e.Err }

// SourceQueryError means a page of documents could not be fetched from the
// source, or the page it returned cannot be used.
type SourceQueryError struct {
	Cursor Cursor
	Err    error
}

func (e *SourceQueryError) Error() string {
	return "query source after " + e.Cursor.String() + ": " + e.Err.Error()
}

func (e *SourceQueryError) Unwrap() error { return e.Err }

// TargetWriteError means a batch was not fully written to the target.
// FailedKeys is empty when the whole request failed.
type TargetWriteError struct {
	FailedKeys []string
	Err        error
}

const maxReportedKeys = 10

func (e *TargetWriteError) Error() string {
	if len(e.FailedKeys) == 0 {
		return "upload batch: " + e.Err.Error()
	}

	keys := e.FailedKeys
	more := ""

	if len(keys) > maxReportedKeys {
		more = ", +" + strconv.Itoa(len(keys)-maxReportedKeys) + " more"
		keys = keys[:maxReportedKeys]
	}

	return "upload batch: " + strconv.Itoa(len(e.FailedKeys)) + " documents failed [" +
		strings.Join(keys, ", ") + more + "]: " + e.Err.Error()
}

func (e *TargetWriteError) Unwrap() error { return e.Err }
