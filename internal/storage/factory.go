// factory.go maps backend names (local, s3, azure, gcs) to constructors.
package storage

import (
	"fmt"

	"github.com/feedback-system/feedback-system/internal/config"
)

// FactoryFunc builds a backend from the archive configuration.
type FactoryFunc func(*config.ArchiveConfig) (Storage, error)

var factories = make(map[string]FactoryFunc)

// Register registers a storage backend factory
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// NewStorage creates the backend named by cfg.Backend.
func NewStorage(cfg *config.ArchiveConfig) (Storage, error) {
	factory, ok := factories[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %s (must be 'local', 'azure', 's3', or 'gcs')", cfg.Backend)
	}
	return factory(cfg)
}
