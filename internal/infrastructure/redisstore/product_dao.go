// Package redisstore keeps the catalog in a single Redis hash mapping product
// name to available quantity.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	domain "github.com/Zhima-Mochi/minishop-shopping/internal/domain/product"
	"github.com/redis/go-redis/v9"
)

const DefaultKey = "minishop:products"

type ProductDao struct {
	client *redis.Client
	key    string
}

func NewProductDao(client *redis.Client, key string) *ProductDao {
	if key == "" {
		key = DefaultKey
	}
	return &ProductDao{client: client, key: key}
}

// Connect parses a redis:// URL and checks the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redisstore: invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping: %w", err)
	}
	return client, nil
}

// ListAll returns the catalog ordered by product name.
func (d *ProductDao) ListAll(ctx context.Context) ([]domain.Product, error) {
	all, err := d.client.HGetAll(ctx, d.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list: %w", err)
	}
	out := make([]domain.Product, 0, len(all))
	for name, raw := range all {
		q, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("redisstore: product %q: %w", name, err)
		}
		out = append(out, domain.Product{Name: name, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *ProductDao) GetByName(ctx context.Context, name string) (*domain.Product, error) {
	q, err := d.client.HGet(ctx, d.key, name).Int()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %q: %w", name, err)
	}
	return &domain.Product{Name: name, Quantity: q}, nil
}

// Save writes the product's quantity. Products with an empty name or negative stock are refused.
func (d *ProductDao) Save(ctx context.Context, p domain.Product) (bool, error) {
	if p.Name == "" || p.Quantity < 0 {
		return false, nil
	}
	if err := d.client.HSet(ctx, d.key, p.Name, p.Quantity).Err(); err != nil {
		return false, fmt.Errorf("redisstore: save %q: %w", p.Name, err)
	}
	return true, nil
}
