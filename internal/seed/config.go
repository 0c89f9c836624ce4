package seed

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

// Config controls how much deterministic retail data the seeder writes.
// The same Seed always produces the same dataset.
type Config struct {
	Seed             int64
	Stores           int
	Customers        int
	Products         int
	Orders           int
	MaxItemsPerOrder int
	StartDate        time.Time
	Days             int
}

func DefaultConfig() Config {
	return Config{
		Seed:             42,
		Stores:           8,
		Customers:        200,
		Products:         60,
		Orders:           1200,
		MaxItemsPerOrder: 5,
		StartDate:        time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		Days:             180,
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyInt64(lookup, "TABLECHAT_SEED_RANDOM_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLECHAT_SEED_STORES", &cfg.Stores); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLECHAT_SEED_CUSTOMERS", &cfg.Customers); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLECHAT_SEED_PRODUCTS", &cfg.Products); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLECHAT_SEED_ORDERS", &cfg.Orders); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLECHAT_SEED_MAX_ITEMS_PER_ORDER", &cfg.MaxItemsPerOrder); err != nil {
		return Config{}, err
	}
	if err := applyDate(lookup, "TABLECHAT_SEED_START_DATE", &cfg.StartDate); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TABLECHAT_SEED_DAYS", &cfg.Days); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Stores <= 0 {
		return fmt.Errorf("stores must be > 0")
	}
	if c.Customers <= 0 {
		return fmt.Errorf("customers must be > 0")
	}
	if c.Products <= 0 {
		return fmt.Errorf("products must be > 0")
	}
	if c.Orders <= 0 {
		return fmt.Errorf("orders must be > 0")
	}
	if c.MaxItemsPerOrder <= 0 {
		return fmt.Errorf("max items per order must be > 0")
	}
	if c.Days <= 0 {
		return fmt.Errorf("days must be > 0")
	}
	if c.StartDate.IsZero() {
		return fmt.Errorf("start date is required")
	}
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyDate(lookup LookupFunc, key string, dst *time.Time) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value.UTC()
	return nil
}
