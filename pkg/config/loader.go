package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// configCache stores parsed configuration structs keyed by type so each
// config is read from the environment exactly once per process.
type configCache struct {
	mu     sync.RWMutex
	values map[string]any
}

var (
	globalCache = &configCache{values: make(map[string]any)}

	defaultEnvLoaded sync.Once
)

// Load populates the given configuration struct from environment variables.
//
// A .env file is loaded once per process before the first parse. Once a
// configuration type has been loaded, subsequent calls for the same type
// return the cached copy.
//
// Example:
//
//	type BillingConfig struct {
//		APIKey  string `env:"PADDLE_API_KEY,required"`
//		Sandbox bool   `env:"PADDLE_SANDBOX" envDefault:"false"`
//	}
//
//	var cfg BillingConfig
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		// The .env file is optional; ignore a missing file.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	typeName := getTypeName[T]()

	globalCache.mu.RLock()
	if cached, ok := globalCache.values[typeName]; ok {
		*v = cached.(T)
		globalCache.mu.RUnlock()
		return nil
	}
	globalCache.mu.RUnlock()

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	globalCache.mu.Lock()
	// Store a copy to protect the cache from later mutation by the caller.
	globalCache.values[typeName] = *v
	globalCache.mu.Unlock()

	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
// Use it for configurations the application cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// getTypeName returns a string identifier for the generic type T.
func getTypeName[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return fmt.Sprintf("%T", *new(T))
	}
	return t.String()
}
