package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/inventivepotter/dotmd/internal/model"
)

const (
	createChunksTable = `
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id          TEXT PRIMARY KEY,
	file_path         TEXT    NOT NULL,
	heading_hierarchy TEXT    NOT NULL DEFAULT '[]',
	level             INTEGER NOT NULL DEFAULT 0,
	text              TEXT    NOT NULL DEFAULT '',
	chunk_index       INTEGER NOT NULL DEFAULT 0,
	char_offset       INTEGER NOT NULL DEFAULT 0
)`

	createStatsTable = `
CREATE TABLE IF NOT EXISTS stats (
	id              INTEGER PRIMARY KEY DEFAULT 1,
	total_files     INTEGER NOT NULL DEFAULT 0,
	total_chunks    INTEGER NOT NULL DEFAULT 0,
	total_entities  INTEGER NOT NULL DEFAULT 0,
	total_edges     INTEGER NOT NULL DEFAULT 0,
	last_indexed    TEXT
)`

	upsertChunk = `
INSERT INTO chunks (chunk_id, file_path, heading_hierarchy, level, text, chunk_index, char_offset)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(chunk_id) DO UPDATE SET
	file_path         = excluded.file_path,
	heading_hierarchy = excluded.heading_hierarchy,
	level             = excluded.level,
	text              = excluded.text,
	chunk_index       = excluded.chunk_index,
	char_offset       = excluded.char_offset`

	upsertStats = `
INSERT INTO stats (id, total_files, total_chunks, total_entities, total_edges, last_indexed)
VALUES (1, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	total_files    = excluded.total_files,
	total_chunks   = excluded.total_chunks,
	total_entities = excluded.total_entities,
	total_edges    = excluded.total_edges,
	last_indexed   = excluded.last_indexed`
)

// SQLiteMetadataStore persists chunks and index stats in a local SQLite
// file opened through the pure-Go modernc.org/sqlite driver, in WAL mode.
type SQLiteMetadataStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// OpenSQLiteMetadataStore opens (creating if absent) the metadata database
// at path and ensures its schema exists. Pass read-only to open the
// database without write capability, per the service's read_only option.
func OpenSQLiteMetadataStore(path string, readOnly bool) (*SQLiteMetadataStore, error) {
	if !readOnly {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create metadata dir: %w", err)
			}
		}
	}

	dsn := path
	if readOnly {
		dsn = fmt.Sprintf("file:%s?mode=ro", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}

	if !readOnly {
		if _, err := db.Exec(createChunksTable); err != nil {
			db.Close()
			return nil, fmt.Errorf("create chunks table: %w", err)
		}
		if _, err := db.Exec(createStatsTable); err != nil {
			db.Close()
			return nil, fmt.Errorf("create stats table: %w", err)
		}
	}

	return &SQLiteMetadataStore{db: db}, nil
}

func (s *SQLiteMetadataStore) SaveChunks(ctx context.Context, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertChunk)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		hierarchy, err := json.Marshal(c.HeadingHierarchy)
		if err != nil {
			return fmt.Errorf("marshal heading hierarchy for %s: %w", c.ChunkID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ChunkID, c.FilePath, string(hierarchy), c.Level, c.Text, c.ChunkIndex, c.CharOffset); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ChunkID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteMetadataStore) GetChunk(ctx context.Context, chunkID string) (*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT chunk_id, file_path, heading_hierarchy, level, text, chunk_index, char_offset FROM chunks WHERE chunk_id = ?",
		chunkID)

	chunk, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

func (s *SQLiteMetadataStore) GetChunks(ctx context.Context, chunkIDs []string) ([]model.Chunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := make([]string, len(chunkIDs))
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(
		"SELECT chunk_id, file_path, heading_hierarchy, level, text, chunk_index, char_offset FROM chunks WHERE chunk_id IN (%s)",
		strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]model.Chunk, len(chunkIDs))
	for rows.Next() {
		chunk, err := scanChunkRows(rows)
		if err != nil {
			return nil, err
		}
		byID[chunk.ChunkID] = *chunk
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Chunk, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *SQLiteMetadataStore) GetAllChunks(ctx context.Context) ([]model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT chunk_id, file_path, heading_hierarchy, level, text, chunk_index, char_offset FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("query all chunks: %w", err)
	}
	defer rows.Close()

	var out []model.Chunk
	for rows.Next() {
		chunk, err := scanChunkRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *chunk)
	}
	return out, rows.Err()
}

func (s *SQLiteMetadataStore) SaveStats(ctx context.Context, stats model.IndexStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastIndexed any
	if !stats.LastIndexed.IsZero() {
		lastIndexed = stats.LastIndexed.UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, upsertStats,
		stats.TotalFiles, stats.TotalChunks, stats.TotalEntities, stats.TotalEdges, lastIndexed)
	if err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

func (s *SQLiteMetadataStore) GetStats(ctx context.Context) (*model.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT total_files, total_chunks, total_entities, total_edges, last_indexed FROM stats WHERE id = 1")

	var stats model.IndexStats
	var lastIndexed sql.NullString
	err := row.Scan(&stats.TotalFiles, &stats.TotalChunks, &stats.TotalEntities, &stats.TotalEdges, &lastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	if lastIndexed.Valid {
		if t, err := time.Parse(time.RFC3339, lastIndexed.String); err == nil {
			stats.LastIndexed = t
		}
	}
	return &stats, nil
}

func (s *SQLiteMetadataStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM stats"); err != nil {
		return fmt.Errorf("delete stats: %w", err)
	}
	return nil
}

func (s *SQLiteMetadataStore) Close() error {
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanChunk(row scannable) (*model.Chunk, error) {
	return scanChunkRows(row)
}

func scanChunkRows(row scannable) (*model.Chunk, error) {
	var c model.Chunk
	var hierarchy string
	if err := row.Scan(&c.ChunkID, &c.FilePath, &hierarchy, &c.Level, &c.Text, &c.ChunkIndex, &c.CharOffset); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(hierarchy), &c.HeadingHierarchy); err != nil {
		return nil, fmt.Errorf("unmarshal heading hierarchy for %s: %w", c.ChunkID, err)
	}
	return &c, nil
}

var _ MetadataStore = (*SQLiteMetadataStore)(nil)
