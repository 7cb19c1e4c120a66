package memory

import (
	"context"
	"testing"

	domain "github.com/Zhima-Mochi/minishop-shopping/internal/domain/product"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductDao(t *testing.T) {
	ctx := context.Background()
	dao := NewProductDao(
		domain.Product{Name: "p2", Quantity: 6},
		domain.Product{Name: "p1", Quantity: 3},
	)

	all, err := dao.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Product{{Name: "p1", Quantity: 3}, {Name: "p2", Quantity: 6}}, all)

	got, err := dao.GetByName(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Quantity)

	got.Quantity = 100
	again, err := dao.GetByName(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, again.Quantity, "stored product must not alias returned copy")

	missing, err := dao.GetByName(ctx, "p3")
	require.NoError(t, err)
	assert.Nil(t, missing)

	ok, err := dao.Save(ctx, domain.Product{Name: "p1", Quantity: 1})
	require.NoError(t, err)
	assert.True(t, ok)
	got, _ = dao.GetByName(ctx, "p1")
	assert.Equal(t, 1, got.Quantity)

	ok, err = dao.Save(ctx, domain.Product{Name: "p1", Quantity: -1})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = dao.Save(ctx, domain.Product{Name: "", Quantity: 1})
	require.NoError(t, err)
	assert.False(t, ok)
}
