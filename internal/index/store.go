// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index persists extracted ASN.1 chunks and builds a retrieval
// index over them. Each chunk pairs an ASN.1 message name with the
// content of one section file that contributed definitions to it, as
// recorded in the mapping manifest. Retrieval is SQLite FTS5 full-text
// search, optionally re-ranked semantically when chunks carry
// embeddings.
//
// The FTS5 module is gated in mattn/go-sqlite3: build and test with
// -tags sqlite_fts5 (mage build and mage test pass it).
package index

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mkovacs/asnkit/pkg/types"
)

const dbFile = "asnkit.db"

// Store manages the retrieval index SQLite database.
type Store struct {
	db          *sql.DB
	indexDir    string
	sectionsDir string
	spec        string
	version     string
	maxResults  int
}

// NewStore opens or creates the index database at
// cfg.IndexDir/asnkit.db, creating the schema if it does not exist.
func NewStore(cfg types.IndexConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.IndexDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(cfg.IndexDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{
		db:          db,
		indexDir:    cfg.IndexDir,
		sectionsDir: cfg.SectionsDir,
		spec:        cfg.Spec,
		version:     cfg.Version,
		maxResults:  maxResults,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			asn_file TEXT NOT NULL,
			spec TEXT,
			version TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			message_id TEXT NOT NULL REFERENCES messages(id),
			source_file TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_message_id ON chunks(message_id)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			message_id TEXT PRIMARY KEY,
			source_mod_time TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='chunks_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE chunks_fts USING fts5(content, content=chunks, content_rowid=rowid)`,
			`CREATE TRIGGER chunks_ai AFTER INSERT ON chunks BEGIN
				INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
			`CREATE TRIGGER chunks_ad AFTER DELETE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			END`,
			`CREATE TRIGGER chunks_au AFTER UPDATE ON chunks BEGIN
				INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.rowid, old.content);
				INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// IngestSummary holds counts from an index ingestion run.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of messages processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Ingest populates the database from a mapping manifest, reading each
// referenced section file from the configured sections directory. A
// message whose section files are unchanged since the last run is
// skipped; a changed message has its chunks replaced in one
// transaction. On success it refreshes export.yaml.
func (s *Store) Ingest(ctx context.Context, manifest types.Manifest, w io.Writer) (IngestSummary, error) {
	asnNames := make([]string, 0, len(manifest))
	for name := range manifest {
		asnNames = append(asnNames, name)
	}
	sort.Strings(asnNames)

	var summary IngestSummary

	for _, asnName := range asnNames {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		messageID := strings.TrimSuffix(asnName, ".asn")
		sources := manifest[asnName]

		modTime, err := s.latestModTime(sources)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", messageID, err)
			summary.Failed++
			continue
		}

		var storedModTime string
		err = s.db.QueryRowContext(ctx,
			`SELECT source_mod_time FROM indexing_status WHERE message_id = ?`, messageID,
		).Scan(&storedModTime)

		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped %s\n", messageID)
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		chunks, err := s.buildChunks(messageID, sources)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", messageID, err)
			summary.Failed++
			continue
		}

		if err := s.ingestMessage(ctx, messageID, asnName, chunks, modTime, isUpdate); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", messageID, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d chunks)\n", messageID, len(chunks))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexing %s (%d chunks)\n", messageID, len(chunks))
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)

	if summary.Indexed > 0 || summary.Updated > 0 {
		if err := s.ExportYAML(ctx, QueryOptions{}); err != nil {
			fmt.Fprintf(w, "warning: export.yaml write failed: %v\n", err)
		}
	}

	return summary, nil
}

// latestModTime returns the most recent modification time among the
// given section files, formatted for comparison against
// indexing_status.
func (s *Store) latestModTime(sources []string) (string, error) {
	var latest time.Time
	for _, src := range sources {
		info, err := os.Stat(filepath.Join(s.sectionsDir, src))
		if err != nil {
			return "", err
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	if latest.IsZero() {
		return "", nil
	}
	return latest.UTC().Format(time.RFC3339Nano), nil
}

// buildChunks reads each section file and pairs its trimmed content
// with the message. Empty section files are dropped.
func (s *Store) buildChunks(messageID string, sources []string) ([]types.Chunk, error) {
	var chunks []types.Chunk
	for _, src := range sources {
		data, err := os.ReadFile(filepath.Join(s.sectionsDir, src))
		if err != nil {
			return nil, err
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}
		chunks = append(chunks, types.Chunk{
			ID:         chunkID(s.spec, messageID, src),
			Message:    messageID,
			SourceFile: src,
			Content:    content,
			Spec:       s.spec,
			Version:    s.version,
		})
	}
	return chunks, nil
}

// chunkID builds a stable unique identifier from the spec number, the
// message name, and the source filename with spaces and the extension
// stripped.
func chunkID(spec, messageID, sourceFile string) string {
	safe := strings.TrimSuffix(sourceFile, filepath.Ext(sourceFile))
	safe = strings.ReplaceAll(safe, " ", "_")

	parts := make([]string, 0, 3)
	for _, p := range []string{spec, messageID, safe} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "_")
}

func (s *Store) ingestMessage(ctx context.Context, messageID, asnName string, chunks []types.Chunk, modTime string, isUpdate bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if isUpdate {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE message_id = ?`, messageID); err != nil {
			return fmt.Errorf("deleting old chunks: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, asn_file, spec, version)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			asn_file=excluded.asn_file, spec=excluded.spec, version=excluded.version`,
		messageID, asnName, s.spec, s.version,
	)
	if err != nil {
		return fmt.Errorf("upserting message: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, message_id, source_file, content)
		 VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.Message, chunk.SourceFile, chunk.Content,
		); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", chunk.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO indexing_status (message_id, source_mod_time) VALUES (?, ?)
		 ON CONFLICT(message_id) DO UPDATE SET source_mod_time=excluded.source_mod_time`,
		messageID, modTime,
	)
	if err != nil {
		return fmt.Errorf("updating indexing status: %w", err)
	}

	return tx.Commit()
}
