// Package store persists catalog items and item details between run stages.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aluiziolira/go-storefront-export/models"
)

// ErrDuplicate is returned when a record for the same store and item already exists.
var ErrDuplicate = errors.New("record already exists")

// Store holds the per-store working set of a run. List methods return
// records in insertion order.
type Store interface {
	ResetStore(ctx context.Context, storeID string) error
	HasItem(ctx context.Context, storeID, itemID string) (bool, error)
	InsertItem(ctx context.Context, item models.CatalogItem) error
	ListItems(ctx context.Context, storeID string) ([]models.CatalogItem, error)
	InsertDetail(ctx context.Context, detail models.ItemDetail) error
	ListDetails(ctx context.Context, storeID string) ([]models.ItemDetail, error)
	Close() error
}

// Open returns the store for backend: memory, sqlite, mysql or postgres.
func Open(ctx context.Context, backend, dsn string) (Store, error) {
	if backend == "memory" {
		return NewMemoryStore(), nil
	}

	d, ok := dialects[backend]
	if !ok {
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
	return OpenSQL(ctx, d, dsn)
}
