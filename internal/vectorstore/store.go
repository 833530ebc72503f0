// Package vectorstore persists embedding collections in a local SQLite file.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrCollectionNotFound is returned when a named collection does not exist.
var ErrCollectionNotFound = errors.New("collection not found")

// DirName is the hidden directory created inside a knowledge folder.
const DirName = ".docloop"

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name       TEXT PRIMARY KEY,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
	id         TEXT NOT NULL,
	document   TEXT NOT NULL,
	metadata   TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	UNIQUE (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_entries_collection ON entries(collection);
`

// Metadata is stored alongside every entry.
type Metadata struct {
	Filepath     string `json:"filepath"`
	ChunkID      int    `json:"chunk_id"`
	LastModified string `json:"last_modified"`
}

// Entry is one vector with its source text and metadata.
type Entry struct {
	ID        string
	Document  string
	Metadata  Metadata
	Embedding []float32
}

// Match is a query result. Distance is cosine distance, lower is closer.
type Match struct {
	ID       string
	Document string
	Metadata Metadata
	Distance float64
}

// Store is a SQLite-backed set of named vector collections.
type Store struct {
	db   *sql.DB
	path string
}

// PathFor returns the database location for a knowledge folder.
func PathFor(folder string) string {
	return filepath.Join(folder, DirName, "index.db")
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateCollection returns the named collection, creating it if absent.
func (s *Store) CreateCollection(ctx context.Context, name string) (*Collection, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", name, err)
	}
	return &Collection{store: s, name: name}, nil
}

// Collection returns an existing collection or ErrCollectionNotFound.
func (s *Store) Collection(ctx context.Context, name string) (*Collection, error) {
	var found string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM collections WHERE name = ?`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up collection %s: %w", name, err)
	}
	return &Collection{store: s, name: name}, nil
}

// DeleteCollection drops a collection and all of its entries.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("deleting entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCollectionNotFound
	}
	return tx.Commit()
}

// Collection is a named set of entries.
type Collection struct {
	store *Store
	name  string
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Add inserts entries in one transaction. IDs must be unique within the collection.
func (c *Collection) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (collection, id, document, metadata, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.name, e.ID, e.Document, string(meta), float32SliceToBytes(e.Embedding)); err != nil {
			return fmt.Errorf("inserting %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of entries in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE collection = ?`, c.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

// Query returns up to k nearest entries by ascending cosine distance.
// Ties keep insertion order.
func (c *Collection) Query(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := c.store.db.QueryContext(ctx,
		`SELECT id, document, metadata, embedding FROM entries WHERE collection = ? ORDER BY seq`, c.name)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m    Match
			meta string
			blob []byte
		)
		if err := rows.Scan(&m.ID, &m.Document, &meta, &blob); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", m.ID, err)
		}
		m.Distance = 1 - cosineSimilarity(embedding, bytesToFloat32Slice(blob))
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func float32SliceToBytes(floats []float32) []byte {
	bytes := make([]byte, len(floats)*4)
	for i, f := range floats {
		bits := math.Float32bits(f)
		bytes[i*4] = byte(bits)
		bytes[i*4+1] = byte(bits >> 8)
		bytes[i*4+2] = byte(bits >> 16)
		bytes[i*4+3] = byte(bits >> 24)
	}
	return bytes
}

func bytesToFloat32Slice(bytes []byte) []float32 {
	floats := make([]float32, len(bytes)/4)
	for i := range floats {
		bits := uint32(bytes[i*4]) | uint32(bytes[i*4+1])<<8 | uint32(bytes[i*4+2])<<16 | uint32(bytes[i*4+3])<<24
		floats[i] = math.Float32frombits(bits)
	}
	return floats
}

// cosineSimilarity returns 0 for mismatched or zero-length vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
