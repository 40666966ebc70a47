package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/tablegate/internal/ir"
)

// InvalidBatchError is returned before any statement runs when the
// submitted batch is malformed.
type InvalidBatchError struct {
	// Item is the offending item identifier, if any.
	Item    string
	Message string
}

func (e *InvalidBatchError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("invalid batch: item %q: %s", e.Item, e.Message)
	}
	return "invalid batch: " + e.Message
}

// PrivilegeError is returned when the caller holds no privilege row for a
// relation, or when no checker mapping exists for the executed relations.
type PrivilegeError struct {
	Table string
	User  string
}

func (e *PrivilegeError) Error() string {
	if e.Table == "" {
		return "msg.PrivilegeError"
	}
	return "msg.PrivilegeError %" + e.Table
}

// ProcedureExecutionError wraps a failure raised while running one item.
type ProcedureExecutionError struct {
	Item      string
	Procedure string
	FollowUp  bool
	Err       error
}

func (e *ProcedureExecutionError) Error() string {
	kind := "item"
	if e.FollowUp {
		kind = "follow-up"
	}
	return fmt.Sprintf("%s %q (%s): %v", kind, e.Item, e.Procedure, e.Err)
}

func (e *ProcedureExecutionError) Unwrap() error {
	return e.Err
}

// RollbackFailure records that undoing a failed batch failed as well.
// It is joined with the original cause, never replaces it.
type RollbackFailure struct {
	Err error
}

func (e *RollbackFailure) Error() string {
	return fmt.Sprintf("rollback failed: %v", e.Err)
}

func (e *RollbackFailure) Unwrap() error {
	return e.Err
}

// ItemLimitError is returned when a batch, follow-ups included, would
// execute more items than the orchestrator allows.
type ItemLimitError struct {
	Token string
	Items int
	Limit int
}

func (e *ItemLimitError) Error() string {
	return fmt.Sprintf("batch %s exceeded item limit (%d > %d)", e.Token, e.Items, e.Limit)
}

// BatchError is the structured failure of a batch. Nothing of the batch
// was committed; Results holds what had executed before the failure.
type BatchError struct {
	Token   string
	Items   []ir.TransactionItem
	Results []ir.ItemResult
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %s rolled back after %d of %d items: %v", e.Token, len(e.Results), len(e.Items), e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// IsPrivilegeError reports whether err is or wraps a PrivilegeError.
func IsPrivilegeError(err error) bool {
	var target *PrivilegeError
	return errors.As(err, &target)
}

// IsInvalidBatch reports whether err is or wraps an InvalidBatchError.
func IsInvalidBatch(err error) bool {
	var target *InvalidBatchError
	return errors.As(err, &target)
}

// IsRollbackFailure reports whether err is or wraps a RollbackFailure.
func IsRollbackFailure(err error) bool {
	var target *RollbackFailure
	return errors.As(err, &target)
}

// IsItemLimit reports whether err is or wraps an ItemLimitError.
func IsItemLimit(err error) bool {
	var target *ItemLimitError
	return errors.As(err, &target)
}

// AsBatchError returns the BatchError in err's chain, if any.
func AsBatchError(err error) (*BatchError, bool) {
	var target *BatchError
	ok := errors.As(err, &target)
	return target, ok
}
