package errors

import (
	"errors"
	"fmt"
)

type Category string

const (
	CategoryInvalidInput     Category = "invalid_input"
	CategoryNotFound         Category = "not_found"
	CategoryConflict         Category = "conflict"
	CategoryPermissionDenied Category = "permission_denied"
	CategoryStorageFailure   Category = "storage_failure"
	CategoryInternalFailure  Category = "internal_failure"
)

const (
	CodeInvalidInput          = "invalid_input"
	CodeNotFound              = "not_found"
	CodeEdgeCycle             = "edge_cycle"
	CodeDuplicate             = "duplicate_entity"
	CodePermissionDenied      = "permission_denied"
	CodeOperationUnrecognized = "operation_unrecognized"
	CodeStorageFailure        = "storage_failure"
	CodeStorageBusy           = "storage_busy"
	CodeMalformedStoredData   = "malformed_stored_data"
)

type classifiedError struct {
	category  Category
	code      string
	hint      string
	retryable bool
	cause     error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return "unknown error"
	}
	return e.cause.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func (e *classifiedError) Category() Category {
	return e.category
}

func (e *classifiedError) Code() string {
	return e.code
}

func (e *classifiedError) Hint() string {
	return e.hint
}

func (e *classifiedError) Retryable() bool {
	return e.retryable
}

func Wrap(cause error, category Category, code, hint string, retryable bool) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{
		category:  category,
		code:      code,
		hint:      hint,
		retryable: retryable,
		cause:     cause,
	}
}

// Invalid reports caller input that failed validation before any storage work.
func Invalid(format string, args ...any) error {
	return Wrap(fmt.Errorf(format, args...), CategoryInvalidInput, CodeInvalidInput, "correct the input and retry", false)
}

// Storage wraps a persistence failure that the caller cannot correct.
func Storage(cause error, op string) error {
	if cause == nil {
		return nil
	}
	return Wrap(fmt.Errorf("%s: %w", op, cause), CategoryStorageFailure, CodeStorageFailure, "inspect the database file and retry", false)
}

func CategoryOf(err error) Category {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.category
	}
	return ""
}

func CodeOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.code
	}
	return ""
}

func HintOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.hint
	}
	return ""
}

func RetryableOf(err error) bool {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.retryable
	}
	return false
}

// Is reports whether err carries the given category anywhere in its chain.
func Is(err error, category Category) bool {
	return err != nil && CategoryOf(err) == category
}
