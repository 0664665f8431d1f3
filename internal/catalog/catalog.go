// Package catalog persists FBDI object definitions and generator settings
// in a local SQLite database. An object ties a business name to its control
// files and to extra columns merged into metadata reports.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a named object does not exist.
var ErrNotFound = errors.New("object not found")

// Object is a cataloged FBDI object.
type Object struct {
	ID                string
	Name              string
	ControlFiles      []string
	AdditionalColumns []string
}

// Settings holds control-file URL composition settings. The full URL for a
// control file is URLPrefix + Version + URLSuffix + "/" + filename.
type Settings struct {
	URLPrefix string
	Version   string
	URLSuffix string
}

// NamedURL pairs a control-file name with its resolved URL.
type NamedURL struct {
	Name string
	URL  string
}

const schema = `
CREATE TABLE IF NOT EXISTS objects (
	id TEXT PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	control_files TEXT NOT NULL DEFAULT '[]',
	additional_columns TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	url_prefix TEXT NOT NULL DEFAULT '',
	version TEXT NOT NULL DEFAULT '',
	url_suffix TEXT NOT NULL DEFAULT ''
);
`

// Store is a SQLite-backed catalog.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", path, err)
	}

	// SQLite allows one writer; keep the pool at a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing catalog schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the catalog database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListObjects returns all object names in alphabetical order.
func (s *Store) ListObjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM objects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing objects: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning object name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetObject looks up an object by name.
func (s *Store) GetObject(ctx context.Context, name string) (*Object, error) {
	var obj Object
	var controlFiles, additionalColumns string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, control_files, additional_columns FROM objects WHERE name = ?`,
		name).Scan(&obj.ID, &obj.Name, &controlFiles, &additionalColumns)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("object %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading object %q: %w", name, err)
	}

	if err := json.Unmarshal([]byte(controlFiles), &obj.ControlFiles); err != nil {
		return nil, fmt.Errorf("decoding control files for %q: %w", name, err)
	}
	if err := json.Unmarshal([]byte(additionalColumns), &obj.AdditionalColumns); err != nil {
		return nil, fmt.Errorf("decoding additional columns for %q: %w", name, err)
	}
	return &obj, nil
}

// SaveObject inserts or updates an object by name. A missing ID is assigned.
func (s *Store) SaveObject(ctx context.Context, obj *Object) error {
	if obj.Name == "" {
		return fmt.Errorf("object name is required")
	}
	if obj.ID == "" {
		obj.ID = uuid.NewString()
	}

	controlFiles, err := json.Marshal(emptyAsList(obj.ControlFiles))
	if err != nil {
		return fmt.Errorf("encoding control files: %w", err)
	}
	additionalColumns, err := json.Marshal(emptyAsList(obj.AdditionalColumns))
	if err != nil {
		return fmt.Errorf("encoding additional columns: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO objects (id, name, control_files, additional_columns)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			control_files = excluded.control_files,
			additional_columns = excluded.additional_columns`,
		obj.ID, obj.Name, string(controlFiles), string(additionalColumns))
	if err != nil {
		return fmt.Errorf("saving object %q: %w", obj.Name, err)
	}
	return nil
}

// DeleteObject removes an object by name.
func (s *Store) DeleteObject(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting object %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("object %q: %w", name, ErrNotFound)
	}
	return nil
}

// GetSettings returns the stored settings, or zero-valued settings when
// none were saved yet.
func (s *Store) GetSettings(ctx context.Context) (*Settings, error) {
	var st Settings
	err := s.db.QueryRowContext(ctx,
		`SELECT url_prefix, version, url_suffix FROM settings WHERE id = 1`).
		Scan(&st.URLPrefix, &st.Version, &st.URLSuffix)
	if errors.Is(err, sql.ErrNoRows) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return &st, nil
}

// SaveSettings stores the settings, replacing any previous values.
func (s *Store) SaveSettings(ctx context.Context, st *Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, url_prefix, version, url_suffix)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url_prefix = excluded.url_prefix,
			version = excluded.version,
			url_suffix = excluded.url_suffix`,
		st.URLPrefix, st.Version, st.URLSuffix)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// ControlFileURLs resolves the named object's control files to URLs using
// the stored settings.
func (s *Store) ControlFileURLs(ctx context.Context, objectName string) ([]NamedURL, error) {
	obj, err := s.GetObject(ctx, objectName)
	if err != nil {
		return nil, err
	}
	st, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	urls := make([]NamedURL, 0, len(obj.ControlFiles))
	for _, cf := range obj.ControlFiles {
		urls = append(urls, NamedURL{
			Name: cf,
			URL:  st.URLPrefix + st.Version + st.URLSuffix + "/" + cf,
		})
	}
	return urls, nil
}

func emptyAsList(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
