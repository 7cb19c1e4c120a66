package shopping

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrInvalidArgument marks a broken call contract: nil customer, non-positive
	// quantity, adding more than the known stock.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrBuy marks a purchase rejected by the live inventory. Callers are expected to handle it.
	ErrBuy = errors.New("buy failed")
	// ErrNoProductFound marks a lookup for a product the store does not hold.
	ErrNoProductFound = errors.New("no product found")
)

// Error is returned by cart and shopping operations.
type Error struct {
	Kind    error
	Message string
	Product string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error { return e.Err }

func InvalidArgument(format string, args ...any) error {
	return &Error{Kind: ErrInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func NoProductFound(name string) error {
	return &Error{
		Kind:    ErrNoProductFound,
		Message: fmt.Sprintf("product with name '%s' not found", name),
		Product: name,
	}
}

func InsufficientStock(name string) error {
	return &Error{
		Kind:    ErrBuy,
		Message: fmt.Sprintf("insufficient quantity in stock for product '%s'", name),
		Product: name,
	}
}

// BuyFailure wraps a store failure hit while settling a product.
func BuyFailure(name string, cause error) error {
	return &Error{
		Kind:    ErrBuy,
		Message: fmt.Sprintf("failed to settle product '%s'", name),
		Product: name,
		Err:     cause,
	}
}

// ProductOf returns the product name attached to err, if any.
func ProductOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Product
	}
	return ""
}
