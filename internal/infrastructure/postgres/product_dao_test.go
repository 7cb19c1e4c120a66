package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	domain "github.com/Zhima-Mochi/minishop-shopping/internal/domain/product"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDao(t *testing.T) (*ProductDao, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewProductDao(db), mock
}

func TestListAll(t *testing.T) {
	dao, mock := newDao(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, quantity FROM products ORDER BY name")).
		WillReturnRows(sqlmock.NewRows([]string{"name", "quantity"}).AddRow("p1", 3).AddRow("p2", 6))

	got, err := dao.ListAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Product{{Name: "p1", Quantity: 3}, {Name: "p2", Quantity: 6}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByName(t *testing.T) {
	query := regexp.QuoteMeta("SELECT name, quantity FROM products WHERE name = $1")

	t.Run("found", func(t *testing.T) {
		dao, mock := newDao(t)
		mock.ExpectQuery(query).WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"name", "quantity"}).AddRow("p1", 3))

		got, err := dao.GetByName(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, &domain.Product{Name: "p1", Quantity: 3}, got)
	})

	t.Run("absent", func(t *testing.T) {
		dao, mock := newDao(t)
		mock.ExpectQuery(query).WithArgs("p3").
			WillReturnRows(sqlmock.NewRows([]string{"name", "quantity"}))

		got, err := dao.GetByName(context.Background(), "p3")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("driver error", func(t *testing.T) {
		dao, mock := newDao(t)
		mock.ExpectQuery(query).WithArgs("p1").WillReturnError(errors.New("conn refused"))

		_, err := dao.GetByName(context.Background(), "p1")
		assert.ErrorContains(t, err, "conn refused")
	})
}

func TestSave(t *testing.T) {
	upsert := regexp.QuoteMeta("INSERT INTO products (name, quantity) VALUES ($1, $2)")

	t.Run("upsert", func(t *testing.T) {
		dao, mock := newDao(t)
		mock.ExpectExec(upsert).WithArgs("p1", 1).WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := dao.Save(context.Background(), domain.Product{Name: "p1", Quantity: 1})
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("negative refused without a query", func(t *testing.T) {
		dao, mock := newDao(t)
		ok, err := dao.Save(context.Background(), domain.Product{Name: "p1", Quantity: -1})
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS products")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
