package engine

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownColumn   = errors.New("unknown column")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrReservedColumn  = errors.New("reserved column name")
	ErrVariationCount  = errors.New("variation count mismatch")
	ErrTagCollision    = errors.New("variation tag collision")
	ErrRunInProgress   = errors.New("run in progress")
	ErrNoActions       = errors.New("no live actions")
	ErrNotReady        = errors.New("result not ready")
	ErrInvalidRange    = errors.New("invalid range")
	ErrDetached        = errors.New("result is detached")
	ErrAlreadyRun      = errors.New("result has already run")
)

// GraphBuildError is returned synchronously by graph construction calls.
type GraphBuildError struct {
	Op     string // Define, Redefine, Filter, Vary, action name
	Column string
	Err    error
}

func (e *GraphBuildError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Column, e.Err)
}

func (e *GraphBuildError) Unwrap() error { return e.Err }

// RuntimeTransformError aborts a run. It identifies the failing node and
// the row it was processing.
type RuntimeTransformError struct {
	Node      string
	Entry     int64 // global entry index
	Partition string
	Row       int64 // partition-local row
	Err       error
}

func (e *RuntimeTransformError) Error() string {
	return fmt.Sprintf("node %q failed at entry %d (partition %q, row %d): %v",
		e.Node, e.Entry, e.Partition, e.Row, e.Err)
}

func (e *RuntimeTransformError) Unwrap() error { return e.Err }

// ProtocolError reports a call made in the wrong graph or result state.
// Nothing is mutated when it is returned.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func buildErr(op, column string, err error) error {
	return &GraphBuildError{Op: op, Column: column, Err: err}
}

func protoErr(op string, err error) error {
	return &ProtocolError{Op: op, Err: err}
}
