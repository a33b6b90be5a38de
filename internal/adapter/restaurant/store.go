// Package restaurant is the restaurant worker: a SQLite catalogue of
// restaurants and menus and the skills that answer menu and prep-time
// queries from it.
package restaurant

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"food-router/internal/domain"
)

// Restaurant is one row of the catalogue.
type Restaurant struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	Cuisine        string `json:"cuisine"`
	AvgPrepMinutes int    `json:"avg_prep_minutes"`
	IsOpen         bool   `json:"is_open"`
}

// SearchHit is a menu item matched by free-text search.
type SearchHit struct {
	RestaurantID   int64   `json:"restaurant_id"`
	RestaurantName string  `json:"restaurant_name"`
	ItemID         int64   `json:"item_id"`
	ItemName       string  `json:"item_name"`
	Description    string  `json:"description"`
	PriceINR       float64 `json:"price_inr"`
}

// Store reads and writes the restaurant catalogue.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the database at dbPath and migrates it.
// ":memory:" gives a private in-memory catalogue.
func OpenStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("create restaurant db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open restaurant db: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	// WAL mode for concurrent reads while seeding.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate restaurant db: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS restaurants (
			id               INTEGER PRIMARY KEY,
			name             TEXT NOT NULL UNIQUE,
			address          TEXT NOT NULL DEFAULT '',
			cuisine          TEXT NOT NULL DEFAULT '',
			avg_prep_minutes INTEGER NOT NULL DEFAULT 20,
			is_open          INTEGER NOT NULL DEFAULT 1
		);
		CREATE TABLE IF NOT EXISTS menu_items (
			id               INTEGER NOT NULL,
			restaurant_id    INTEGER NOT NULL REFERENCES restaurants(id) ON DELETE CASCADE,
			name             TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			price_inr        REAL NOT NULL,
			is_available     INTEGER NOT NULL DEFAULT 1,
			avg_prep_minutes INTEGER NOT NULL DEFAULT 15,
			PRIMARY KEY (id, restaurant_id)
		);
		CREATE INDEX IF NOT EXISTS idx_menu_items_restaurant ON menu_items(restaurant_id);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Seed loads the demo catalogue when the restaurants table is empty.
// It reports whether anything was inserted.
func (s *Store) Seed(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM restaurants").Scan(&n); err != nil {
		return false, fmt.Errorf("count restaurants: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, r := range seedCatalogue {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO restaurants (id, name, address, cuisine, avg_prep_minutes, is_open) VALUES (?, ?, ?, ?, ?, ?)",
			r.ID, r.Name, r.Address, r.Cuisine, r.AvgPrepMinutes, r.IsOpen,
		); err != nil {
			return false, fmt.Errorf("seed restaurant %q: %w", r.Name, err)
		}
		for _, it := range r.Items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO menu_items (id, restaurant_id, name, description, price_inr, is_available, avg_prep_minutes)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				it.ID, r.ID, it.Name, it.Description, it.PriceINR, it.IsAvailable, it.AvgPrepMinutes,
			); err != nil {
				return false, fmt.Errorf("seed menu item %q: %w", it.Name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seed: %w", err)
	}
	return true, nil
}

// RestaurantByName looks a restaurant up ignoring case and apostrophes.
func (s *Store) RestaurantByName(ctx context.Context, name string) (Restaurant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, cuisine, avg_prep_minutes, is_open
		FROM restaurants
		WHERE lower(replace(name, '''', '')) = lower(replace(?, '''', ''))`,
		strings.TrimSpace(name),
	)
	var r Restaurant
	err := row.Scan(&r.ID, &r.Name, &r.Address, &r.Cuisine, &r.AvgPrepMinutes, &r.IsOpen)
	if err == sql.ErrNoRows {
		return Restaurant{}, domain.NewSubSystemError("restaurant", "Store.RestaurantByName", domain.ErrNotFound, name)
	}
	if err != nil {
		return Restaurant{}, fmt.Errorf("query restaurant %q: %w", name, err)
	}
	return r, nil
}

// ListRestaurants returns restaurants ordered by id. An empty cuisine
// matches all.
func (s *Store) ListRestaurants(ctx context.Context, cuisine string, onlyOpen bool, limit int) ([]Restaurant, error) {
	query := "SELECT id, name, address, cuisine, avg_prep_minutes, is_open FROM restaurants WHERE 1=1"
	var args []any
	if cuisine != "" {
		query += " AND cuisine LIKE ?"
		args = append(args, "%"+cuisine+"%")
	}
	if onlyOpen {
		query += " AND is_open = 1"
	}
	query += " ORDER BY id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	defer rows.Close()

	var out []Restaurant
	for rows.Next() {
		var r Restaurant
		if err := rows.Scan(&r.ID, &r.Name, &r.Address, &r.Cuisine, &r.AvgPrepMinutes, &r.IsOpen); err != nil {
			return nil, fmt.Errorf("scan restaurant: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Menu returns a restaurant's items ordered by id.
func (s *Store) Menu(ctx context.Context, restaurantID int64, onlyAvailable bool) ([]domain.MenuItem, error) {
	query := `SELECT id, name, description, price_inr, avg_prep_minutes, is_available
		FROM menu_items WHERE restaurant_id = ?`
	if onlyAvailable {
		query += " AND is_available = 1"
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("query menu: %w", err)
	}
	defer rows.Close()

	var out []domain.MenuItem
	for rows.Next() {
		var it domain.MenuItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.PriceINR, &it.AvgPrepMinutes, &it.IsAvailable); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SearchMenuItems matches text against item names and descriptions of
// available items at open restaurants.
func (s *Store) SearchMenuItems(ctx context.Context, text string, limit int) ([]SearchHit, error) {
	pattern := "%" + text + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, m.id, m.name, m.description, m.price_inr
		FROM menu_items m
		JOIN restaurants r ON r.id = m.restaurant_id
		WHERE (m.name LIKE ? OR m.description LIKE ?)
		  AND m.is_available = 1
		  AND r.is_open = 1
		ORDER BY r.id, m.id
		LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search menu items: %w", err)
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.RestaurantID, &h.RestaurantName, &h.ItemID, &h.ItemName, &h.Description, &h.PriceINR); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// SetOpen marks a restaurant open or closed.
func (s *Store) SetOpen(ctx context.Context, restaurantID int64, open bool) error {
	res, err := s.db.ExecContext(ctx, "UPDATE restaurants SET is_open = ? WHERE id = ?", open, restaurantID)
	if err != nil {
		return fmt.Errorf("update restaurant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewSubSystemError("restaurant", "Store.SetOpen", domain.ErrNotFound, fmt.Sprint(restaurantID))
	}
	return nil
}

// Names returns every restaurant name, for the orchestrator's parser.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM restaurants ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list restaurant names: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
