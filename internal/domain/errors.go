package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned on a unique constraint conflict.
	ErrAlreadyExists = errors.New("already exists")
	// ErrEmptyCart is returned when checking out a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when an operation needs an authenticated principal.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError carries field-level detail for caller-fixable input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// QuantityExceededError lets the client clamp its request.
type QuantityExceededError struct {
	ProductID int64
	Current   int
	Requested int
	Max       int
}

func (e *QuantityExceededError) Error() string {
	return fmt.Sprintf("quantity exceeded for product %d: current=%d requested=%d max=%d", e.ProductID, e.Current, e.Requested, e.Max)
}

// InsufficientStockError names the first product that cannot be fulfilled.
type InsufficientStockError struct {
	ProductID int64
	Title     string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested=%d available=%d", e.ProductID, e.Requested, e.Available)
}

// InvalidTransitionError names the rejected transition and what was allowed instead.
type InvalidTransitionError struct {
	From    OrderStatus
	To      OrderStatus
	Allowed []OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// StorageError wraps a failure of the durable store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Storage wraps err as a StorageError unless it is nil or already a domain error.
func Storage(op string, err error) error {
	if err == nil || IsBusiness(err) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsBusiness reports whether err is one of the caller-facing domain errors.
func IsBusiness(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrUnauthorized) {
		return true
	}
	var (
		ve *ValidationError
		qe *QuantityExceededError
		se *InsufficientStockError
		te *InvalidTransitionError
	)
	return errors.As(err, &ve) || errors.As(err, &qe) || errors.As(err, &se) || errors.As(err, &te)
}
