package store

import (
	"context"
	"slices"
	"sync"

	"github.com/aluiziolira/go-storefront-export/models"
)

type storeKey struct {
	storeID string
	itemID  string
}

// MemoryStore keeps records in process memory for a single run.
type MemoryStore struct {
	mu        sync.RWMutex
	items     []models.CatalogItem
	itemIndex map[storeKey]struct{}
	details   []models.ItemDetail
	detailIdx map[storeKey]struct{}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		itemIndex: make(map[storeKey]struct{}),
		detailIdx: make(map[storeKey]struct{}),
	}
}

func (m *MemoryStore) ResetStore(_ context.Context, storeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = slices.DeleteFunc(m.items, func(it models.CatalogItem) bool {
		if it.StoreID != storeID {
			return false
		}
		delete(m.itemIndex, storeKey{it.StoreID, it.ItemID})
		return true
	})
	m.details = slices.DeleteFunc(m.details, func(d models.ItemDetail) bool {
		if d.StoreID != storeID {
			return false
		}
		delete(m.detailIdx, storeKey{d.StoreID, d.ItemID})
		return true
	})
	return nil
}

func (m *MemoryStore) HasItem(_ context.Context, storeID, itemID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.itemIndex[storeKey{storeID, itemID}]
	return ok, nil
}

func (m *MemoryStore) InsertItem(_ context.Context, item models.CatalogItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := storeKey{item.StoreID, item.ItemID}
	if _, ok := m.itemIndex[key]; ok {
		return ErrDuplicate
	}
	m.itemIndex[key] = struct{}{}
	m.items = append(m.items, item)
	return nil
}

func (m *MemoryStore) ListItems(_ context.Context, storeID string) ([]models.CatalogItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.CatalogItem
	for _, it := range m.items {
		if it.StoreID == storeID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertDetail(_ context.Context, detail models.ItemDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := storeKey{detail.StoreID, detail.ItemID}
	if _, ok := m.detailIdx[key]; ok {
		return ErrDuplicate
	}
	m.detailIdx[key] = struct{}{}
	m.details = append(m.details, cloneDetail(detail))
	return nil
}

func (m *MemoryStore) ListDetails(_ context.Context, storeID string) ([]models.ItemDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.ItemDetail
	for _, d := range m.details {
		if d.StoreID == storeID {
			out = append(out, cloneDetail(d))
		}
	}
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func cloneDetail(d models.ItemDetail) models.ItemDetail {
	d.Colors = slices.Clone(d.Colors)
	d.Sizes = slices.Clone(d.Sizes)
	d.ImageURLs = slices.Clone(d.ImageURLs)
	return d
}
