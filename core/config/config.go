package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	loadEnvOnce sync.Once
	cache       sync.Map // reflect.Type -> any
)

// Load parses environment variables into cfg. The first call for a given
// struct type does the actual parsing; later calls for the same type return
// the cached value. A .env file in the working directory is loaded once
// before the first parse and is optional.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return fmt.Errorf("config target must not be nil")
	}

	loadEnvOnce.Do(func() {
		// Missing .env is the normal case in production.
		_ = godotenv.Load()
	})

	key := reflect.TypeOf(*cfg)
	if cached, ok := cache.Load(key); ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse %s from environment: %w", key, err)
	}

	cache.Store(key, *cfg)
	return nil
}

// MustLoad is Load but panics on failure. Intended for application startup
// where a missing required variable should abort the process.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
