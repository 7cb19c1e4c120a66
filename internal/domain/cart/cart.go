package cart

import (
	"github.com/Zhima-Mochi/minishop-shopping/internal/domain/customer"
	"github.com/Zhima-Mochi/minishop-shopping/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-shopping/internal/domain/shopping"
)

// Line is one staged purchase: the product as it was known when added and the requested quantity.
type Line struct {
	Product  product.Product
	Quantity int
}

// Cart stages a customer's purchase intent. It only reads product quantities
// to validate additions; stock is changed by the shopping service.
// The zero value is an empty cart without an owner.
type Cart struct {
	owner *customer.Customer
	lines []Line
	index map[string]int
}

func New(owner *customer.Customer) (*Cart, error) {
	if owner == nil {
		return nil, shopping.InvalidArgument("cart owner must not be nil")
	}
	return &Cart{
		owner: owner,
		index: make(map[string]int),
	}, nil
}

func (c *Cart) Owner() *customer.Customer { return c.owner }

// Add stages quantity units of p. Adding a product already in the cart replaces
// its line, it does not accumulate.
func (c *Cart) Add(p product.Product, quantity int) error {
	if quantity <= 0 {
		return shopping.InvalidArgument("quantity must be positive")
	}
	if !p.Covers(quantity) {
		return &shopping.Error{
			Kind:    shopping.ErrInvalidArgument,
			Message: "insufficient stock to add product '" + p.Name + "'",
			Product: p.Name,
		}
	}

	if i, ok := c.index[p.Name]; ok {
		c.lines[i] = Line{Product: p, Quantity: quantity}
		return nil
	}
	if c.index == nil {
		c.index = make(map[string]int)
	}
	c.index[p.Name] = len(c.lines)
	c.lines = append(c.lines, Line{Product: p, Quantity: quantity})
	return nil
}

// Lines returns a copy of the staged lines in the order they were first added.
func (c *Cart) Lines() []Line {
	return append([]Line(nil), c.lines...)
}

// Products returns a copy of the staged lines keyed by product snapshot.
func (c *Cart) Products() map[product.Product]int {
	out := make(map[product.Product]int, len(c.lines))
	for _, l := range c.lines {
		out[l.Product] = l.Quantity
	}
	return out
}

// Quantity returns the requested quantity for the named product, or 0.
func (c *Cart) Quantity(name string) int {
	if i, ok := c.index[name]; ok {
		return c.lines[i].Quantity
	}
	return 0
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

func (c *Cart) Clear() {
	c.lines = nil
	c.index = make(map[string]int)
}
