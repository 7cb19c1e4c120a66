package product

import (
	"errors"
	"strings"
)

var (
	ErrInvalidName     = errors.New("product: name is required")
	ErrInvalidQuantity = errors.New("product: quantity must be zero or greater")
	ErrInsufficient    = errors.New("product: insufficient quantity")
)

// Product is a catalog entry together with the quantity currently available.
// Two products are equal when both name and quantity match.
type Product struct {
	Name     string `json:"name" yaml:"name"`
	Quantity int    `json:"quantity" yaml:"quantity"`
}

func NewProduct(name string, quantity int) (Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Product{}, ErrInvalidName
	}
	if quantity < 0 {
		return Product{}, ErrInvalidQuantity
	}
	return Product{Name: name, Quantity: quantity}, nil
}

func (p Product) Equal(other Product) bool {
	return p == other
}

// Covers reports whether the available quantity can satisfy a request of n units.
func (p Product) Covers(n int) bool {
	return n <= p.Quantity
}

// Deduct returns a copy of p with n units taken out of stock.
func (p Product) Deduct(n int) (Product, error) {
	if n <= 0 {
		return p, ErrInvalidQuantity
	}
	if !p.Covers(n) {
		return p, ErrInsufficient
	}
	p.Quantity -= n
	return p, nil
}
