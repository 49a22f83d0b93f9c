package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrStockConflict = errors.New("insufficient stock")
	ErrValidation    = errors.New("invalid input")
	ErrStorage       = errors.New("storage failure")
	ErrForbidden     = errors.New("operation not permitted for role")
)

type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func Invalid(field string, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StockConflictError names the first item whose fresh stock could not cover the
// requested quantity. Available is zero when the item no longer exists.
type StockConflictError struct {
	ItemID    int64
	Name      string
	Requested int
	Available int
}

func (e *StockConflictError) Error() string {
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("item %d", e.ItemID)
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
}

func (e *StockConflictError) Is(target error) bool {
	return target == ErrStockConflict
}

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Storage wraps err as a StorageError unless it already carries a domain kind.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrStockConflict) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
