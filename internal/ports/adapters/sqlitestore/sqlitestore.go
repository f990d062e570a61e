// Package sqlitestore keeps named component presets in a SQLite file.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/forPelevin/timewarp/internal/domain/component"
	"github.com/forPelevin/timewarp/internal/ports"
)

var ErrNotFound = errors.New("preset not found")

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create preset directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open preset database: %w", err)
	}
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS presets (
		name TEXT PRIMARY KEY,
		components TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_presets_updated_at ON presets(updated_at);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create presets table: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Save(ctx context.Context, name string, cs []component.Component) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("preset name is empty")
	}
	b, err := component.Encode(cs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO presets (name, components, updated_at)
		VALUES (?, ?, ?)`,
		name, string(b), s.now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("save preset %q: %w", name, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, name string) ([]component.Component, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT components FROM presets WHERE name = ?", strings.TrimSpace(name)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load preset %q: %w", name, err)
	}
	return component.Decode([]byte(raw))
}

// List returns presets most recently updated first.
func (s *Store) List(ctx context.Context) ([]ports.Preset, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, components, updated_at FROM presets ORDER BY updated_at DESC, name")
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	defer rows.Close()
	var out []ports.Preset
	for rows.Next() {
		var (
			p       ports.Preset
			raw     string
			updated int64
		)
		if err := rows.Scan(&p.Name, &raw, &updated); err != nil {
			return nil, err
		}
		cs, err := component.Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.Name, err)
		}
		p.Components = cs
		p.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM presets WHERE name = ?", strings.TrimSpace(name))
	if err != nil {
		return fmt.Errorf("delete preset %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

var _ ports.PresetStore = (*Store)(nil)
