package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Zhima-Mochi/minishop-shopping/internal/domain/product"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

var ErrUnknownStore = errors.New("config: unknown store")

type Config struct {
	ServiceName  string
	Env          string
	HTTPAddr     string
	LogLevel     string
	Store        string
	RedisURL     string
	DatabaseURL  string
	CatalogFile  string
	AtomicBuy    bool
	OTLPEndpoint string
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		ServiceName:  getenvDefault("SERVICE_NAME", "minishop"),
		Env:          getenvDefault("ENV", "dev"),
		HTTPAddr:     getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:     getenvDefault("LOG_LEVEL", "info"),
		Store:        strings.ToLower(getenvDefault("STORE", StoreMemory)),
		RedisURL:     getenvDefault("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		CatalogFile:  os.Getenv("CATALOG_FILE"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if v := os.Getenv("ATOMIC_BUY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: ATOMIC_BUY: %w", err)
		}
		cfg.AtomicBuy = b
	}

	switch cfg.Store {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("config: DATABASE_URL is required for the postgres store")
		}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownStore, cfg.Store)
	}
	return cfg, nil
}

type catalogFile struct {
	Products []product.Product `yaml:"products"`
}

// LoadCatalog reads the seed catalog from a YAML file of the form
//
//	products:
//	  - name: p1
//	    quantity: 3
func LoadCatalog(path string) ([]product.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: parse catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Products))
	out := make([]product.Product, 0, len(f.Products))
	for _, p := range f.Products {
		valid, err := product.NewProduct(p.Name, p.Quantity)
		if err != nil {
			return nil, fmt.Errorf("config: catalog entry %q: %w", p.Name, err)
		}
		if _, dup := seen[valid.Name]; dup {
			return nil, fmt.Errorf("config: catalog entry %q listed twice", valid.Name)
		}
		seen[valid.Name] = struct{}{}
		out = append(out, valid)
	}
	return out, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
