package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-storefront-export/models"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect captures the per-database differences of SQLStore.
type Dialect struct {
	Name       string
	Driver     string
	IDColumn   string
	Positional bool // $1, $2 placeholders instead of ?
}

var (
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite", IDColumn: "id INTEGER PRIMARY KEY AUTOINCREMENT"}
	MySQL    = Dialect{Name: "mysql", Driver: "mysql", IDColumn: "id BIGINT AUTO_INCREMENT PRIMARY KEY"}
	Postgres = Dialect{Name: "postgres", Driver: "pgx", IDColumn: "id BIGSERIAL PRIMARY KEY", Positional: true}

	dialects = map[string]Dialect{
		SQLite.Name:   SQLite,
		MySQL.Name:    MySQL,
		Postgres.Name: Postgres,
	}
)

// SQLStore implements Store on database/sql. List columns are stored as JSON arrays.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL connects, pings and creates the schema if missing.
func OpenSQL(ctx context.Context, d Dialect, dsn string) (*SQLStore, error) {
	if d.Name == SQLite.Name {
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}

	if d.Name == SQLite.Name {
		// SQLite only supports one writer.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}

	s := &SQLStore{db: db, dialect: d}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	slog.Debug("store opened", slog.String("backend", d.Name))
	return s, nil
}

func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite dir: %w", err)
	}
	return nil
}

func (s *SQLStore) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS catalog_items (
			` + s.dialect.IDColumn + `,
			store_id VARCHAR(64) NOT NULL,
			item_id VARCHAR(64) NOT NULL,
			url TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			UNIQUE (store_id, item_id)
		)`,
		`CREATE TABLE IF NOT EXISTS item_details (
			` + s.dialect.IDColumn + `,
			store_id VARCHAR(64) NOT NULL,
			item_id VARCHAR(64) NOT NULL,
			store_name TEXT NOT NULL,
			item_name TEXT NOT NULL,
			price BIGINT NOT NULL,
			original_price BIGINT NOT NULL,
			discount_amount BIGINT NOT NULL,
			discount_percent INT NOT NULL,
			colors TEXT NOT NULL,
			sizes TEXT NOT NULL,
			review_score VARCHAR(32) NOT NULL,
			review_count INT NOT NULL,
			sales_count INT NOT NULL,
			image_urls TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			UNIQUE (store_id, item_id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders for dialects that need positional ones.
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.Positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) ResetStore(ctx context.Context, storeID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM catalog_items WHERE store_id = ?`), storeID); err != nil {
		return fmt.Errorf("reset catalog items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM item_details WHERE store_id = ?`), storeID); err != nil {
		return fmt.Errorf("reset item details: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

func (s *SQLStore) HasItem(ctx context.Context, storeID, itemID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(*) FROM catalog_items WHERE store_id = ? AND item_id = ?`),
		storeID, itemID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup item %s: %w", itemID, err)
	}
	return n > 0, nil
}

func (s *SQLStore) InsertItem(ctx context.Context, item models.CatalogItem) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO catalog_items (store_id, item_id, url, created_at) VALUES (?, ?, ?, ?)`),
		item.StoreID, item.ItemID, item.URL, item.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert item %s: %w", item.ItemID, err)
	}
	return nil
}

func (s *SQLStore) ListItems(ctx context.Context, storeID string) ([]models.CatalogItem, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT store_id, item_id, url, created_at FROM catalog_items WHERE store_id = ? ORDER BY id`),
		storeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []models.CatalogItem
	for rows.Next() {
		var (
			item    models.CatalogItem
			created int64
		)
		if err := rows.Scan(&item.StoreID, &item.ItemID, &item.URL, &created); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.CreatedAt = time.Unix(0, created)
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *SQLStore) InsertDetail(ctx context.Context, d models.ItemDetail) error {
	colors, err := encodeList(d.Colors)
	if err != nil {
		return err
	}
	sizes, err := encodeList(d.Sizes)
	if err != nil {
		return err
	}
	images, err := encodeList(d.ImageURLs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO item_details (
			store_id, item_id, store_name, item_name, price, original_price,
			discount_amount, discount_percent, colors, sizes, review_score,
			review_count, sales_count, image_urls, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		d.StoreID, d.ItemID, d.StoreName, d.ItemName, d.Price, d.OriginalPrice,
		d.DiscountAmount, d.DiscountPercent, colors, sizes, d.ReviewScore,
		d.ReviewCount, d.SalesCount, images, d.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert detail %s: %w", d.ItemID, err)
	}
	return nil
}

func (s *SQLStore) ListDetails(ctx context.Context, storeID string) ([]models.ItemDetail, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT
			store_id, item_id, store_name, item_name, price, original_price,
			discount_amount, discount_percent, colors, sizes, review_score,
			review_count, sales_count, image_urls, created_at
		FROM item_details WHERE store_id = ? ORDER BY id`),
		storeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list details: %w", err)
	}
	defer rows.Close()

	var out []models.ItemDetail
	for rows.Next() {
		var (
			d                     models.ItemDetail
			colors, sizes, images string
			created               int64
		)
		if err := rows.Scan(
			&d.StoreID, &d.ItemID, &d.StoreName, &d.ItemName, &d.Price, &d.OriginalPrice,
			&d.DiscountAmount, &d.DiscountPercent, &colors, &sizes, &d.ReviewScore,
			&d.ReviewCount, &d.SalesCount, &images, &created,
		); err != nil {
			return nil, fmt.Errorf("scan detail: %w", err)
		}
		if d.Colors, err = decodeList(colors); err != nil {
			return nil, err
		}
		if d.Sizes, err = decodeList(sizes); err != nil {
			return nil, err
		}
		if d.ImageURLs, err = decodeList(images); err != nil {
			return nil, err
		}
		d.CreatedAt = time.Unix(0, created)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return values, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
