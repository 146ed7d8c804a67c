package vector

import (
	"fmt"

	"github.com/hyperjump/scout/internal/config"
	"go.uber.org/zap"
)

// Backend names accepted in vector.backend.
const (
	BackendQdrant = "qdrant"
	BackendMemory = "memory"
)

// New creates the store selected by cfg.Backend for vectors of the given dimension.
func New(cfg *config.VectorConfig, dimensions int, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendQdrant, "":
		s, err := NewQdrantStore(cfg, dimensions, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		s, err := NewMemoryStore(dimensions)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (supported: qdrant, memory)", cfg.Backend)
	}
}
