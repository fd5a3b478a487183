package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/storage"
	"go.uber.org/zap"
)

// Cache persists the device's working snapshot per user
type Cache interface {
	// Read returns false on a miss, including unreadable or malformed entries
	Read(ctx context.Context, username string) (*domain.TenantSnapshot, bool)
	Write(ctx context.Context, username string, snap *domain.TenantSnapshot) error
}

// StorageCache keeps snapshots as JSON blobs in a storage backend
type StorageCache struct {
	store  storage.Storage
	logger *zap.Logger
}

func NewStorageCache(store storage.Storage, logger *zap.Logger) *StorageCache {
	return &StorageCache{store: store, logger: logger}
}

func cacheKey(username string) string {
	name := strings.ToLower(strings.TrimSpace(username))
	if name == "" {
		name = "anonymous"
	}
	return "sync-cache/" + strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(name) + ".json"
}

func (c *StorageCache) Read(ctx context.Context, username string) (*domain.TenantSnapshot, bool) {
	raw, err := c.store.Get(ctx, cacheKey(username))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("failed to read sync cache", zap.String("username", username), zap.Error(err))
		}
		return nil, false
	}
	snap, err := DecodeOverDefaults(raw)
	if err != nil {
		c.logger.Warn("ignoring malformed sync cache", zap.String("username", username), zap.Error(err))
		return nil, false
	}
	return snap, true
}

func (c *StorageCache) Write(ctx context.Context, username string, snap *domain.TenantSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := c.store.Put(ctx, cacheKey(username), raw); err != nil {
		return fmt.Errorf("failed to write sync cache: %w", err)
	}
	return nil
}
