// factory.go dispatches STORAGE_BACKEND config values to whichever backend
// packages registered themselves at init time.
package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aroha-app/aroha-backend/internal/config"
)

// FactoryFunc builds a backend from the loaded configuration.
type FactoryFunc func(*config.Config) (Storage, error)

var factories = make(map[string]FactoryFunc)

// Register adds a backend constructor under its config name. Called from the
// backend packages' init functions.
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// NewStorage builds the backend named by cfg.Storage.DefaultBackend.
func NewStorage(cfg *config.Config) (Storage, error) {
	factory, ok := factories[cfg.Storage.DefaultBackend]
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend %q (registered: %s)",
			cfg.Storage.DefaultBackend, strings.Join(registered(), ", "))
	}
	return factory(cfg)
}

func registered() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
