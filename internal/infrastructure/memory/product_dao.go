package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-shopping/internal/domain/product"
)

// ProductDao keeps the catalog in memory. Reads and writes hand out copies so
// callers never alias stored state.
type ProductDao struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

func NewProductDao(seed ...domain.Product) *ProductDao {
	d := &ProductDao{
		products: make(map[string]domain.Product, len(seed)),
	}
	for _, p := range seed {
		d.products[p.Name] = p
	}
	return d
}

// ListAll returns the catalog ordered by product name.
func (d *ProductDao) ListAll(ctx context.Context) ([]domain.Product, error) {
	_ = ctx

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.Product, 0, len(d.products))
	for _, p := range d.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *ProductDao) GetByName(ctx context.Context, name string) (*domain.Product, error) {
	_ = ctx

	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.products[name]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Save upserts p. Products with an empty name or negative stock are refused.
func (d *ProductDao) Save(ctx context.Context, p domain.Product) (bool, error) {
	_ = ctx
	if p.Name == "" || p.Quantity < 0 {
		return false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.products[p.Name] = p
	return true, nil
}
