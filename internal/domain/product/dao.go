package product

import "context"

// Dao is the authoritative inventory store.
//
// GetByName reports absence with a nil product and a nil error. Save returns
// false when the store declined the write; a non-nil error means the store
// itself failed.
type Dao interface {
	ListAll(ctx context.Context) ([]Product, error)
	GetByName(ctx context.Context, name string) (*Product, error)
	Save(ctx context.Context, p Product) (bool, error)
}
