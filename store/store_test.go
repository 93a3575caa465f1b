package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-storefront-export/models"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			dsn := filepath.Join(t.TempDir(), "nested", "exporter.db")
			s, err := Open(context.Background(), "sqlite", dsn)
			require.NoError(t, err)
			return s
		},
	}
}

func catalogItem(storeID, itemID string) models.CatalogItem {
	return models.CatalogItem{
		StoreID:   storeID,
		ItemID:    itemID,
		URL:       "https://example.test/item/" + itemID + ".html",
		CreatedAt: time.Unix(1700000000, 0),
	}
}

func TestStoreItems(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Close()

			for _, id := range []string{"3", "1", "2"} {
				require.NoError(t, s.InsertItem(ctx, catalogItem("100", id)))
			}
			require.NoError(t, s.InsertItem(ctx, catalogItem("200", "1")))

			assert.ErrorIs(t, s.InsertItem(ctx, catalogItem("100", "1")), ErrDuplicate)

			has, err := s.HasItem(ctx, "100", "2")
			require.NoError(t, err)
			assert.True(t, has)

			has, err = s.HasItem(ctx, "100", "9")
			require.NoError(t, err)
			assert.False(t, has)

			items, err := s.ListItems(ctx, "100")
			require.NoError(t, err)
			require.Len(t, items, 3)
			assert.Equal(t, []string{"3", "1", "2"}, []string{items[0].ItemID, items[1].ItemID, items[2].ItemID})
			assert.Equal(t, "https://example.test/item/3.html", items[0].URL)
			assert.True(t, items[0].CreatedAt.Equal(time.Unix(1700000000, 0)))
		})
	}
}

func TestStoreDetails(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Close()

			detail := models.ItemDetail{
				StoreID:         "100",
				ItemID:          "1",
				StoreName:       "Sunny",
				ItemName:        "Dress",
				Price:           1295,
				OriginalPrice:   2590,
				DiscountAmount:  1295,
				DiscountPercent: 50,
				Colors:          []string{"RED", "BLUE"},
				Sizes:           []string{},
				ReviewScore:     "4.8",
				ReviewCount:     12,
				SalesCount:      30,
				ImageURLs:       []string{"https://cdn.example/a.jpg"},
				CreatedAt:       time.Unix(1700000000, 0),
			}
			require.NoError(t, s.InsertDetail(ctx, detail))
			assert.ErrorIs(t, s.InsertDetail(ctx, detail), ErrDuplicate)

			details, err := s.ListDetails(ctx, "100")
			require.NoError(t, err)
			require.Len(t, details, 1)

			got := details[0]
			assert.Equal(t, detail.ItemName, got.ItemName)
			assert.Equal(t, detail.Price, got.Price)
			assert.Equal(t, detail.DiscountAmount, got.DiscountAmount)
			assert.Equal(t, detail.Colors, got.Colors)
			assert.Empty(t, got.Sizes)
			assert.Equal(t, detail.ImageURLs, got.ImageURLs)
		})
	}
}

func TestStoreReset(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)
			defer s.Close()

			require.NoError(t, s.InsertItem(ctx, catalogItem("100", "1")))
			require.NoError(t, s.InsertItem(ctx, catalogItem("200", "1")))
			require.NoError(t, s.InsertDetail(ctx, models.ItemDetail{StoreID: "100", ItemID: "1", ItemName: "x"}))

			require.NoError(t, s.ResetStore(ctx, "100"))

			items, err := s.ListItems(ctx, "100")
			require.NoError(t, err)
			assert.Empty(t, items)

			details, err := s.ListDetails(ctx, "100")
			require.NoError(t, err)
			assert.Empty(t, details)

			other, err := s.ListItems(ctx, "200")
			require.NoError(t, err)
			assert.Len(t, other, 1)

			// Reset items can be inserted again.
			require.NoError(t, s.InsertItem(ctx, catalogItem("100", "1")))
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), "bolt", "x")
	assert.Error(t, err)
}

func TestRebindPositional(t *testing.T) {
	s := &SQLStore{dialect: Postgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", s.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	s = &SQLStore{dialect: MySQL}
	assert.Equal(t, "DELETE FROM t WHERE x = ?", s.rebind("DELETE FROM t WHERE x = ?"))
}
