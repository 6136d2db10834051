// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkovacs/asnkit/pkg/types"
)

// QueryOptions holds parameters for index queries.
type QueryOptions struct {
	// Query is the FTS5 full-text search string.
	Query string

	// Message filters by ASN.1 message name.
	Message string

	// SourceFile filters by section filename.
	SourceFile string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.Message == "" && q.SourceFile == ""
}

// QueryResult is a chunk returned by a query, with a similarity score
// for semantic queries.
type QueryResult struct {
	types.Chunk
	Score float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// Retrieve queries the index with optional full-text search and
// structured filters. Full-text results are ranked by relevance;
// structured-only queries are sorted by message and source file.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]QueryResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT c.id, c.message_id, c.source_file, c.content,
				m.spec, m.version
			FROM chunks_fts
			JOIN chunks c ON c.rowid = chunks_fts.rowid
			LEFT JOIN messages m ON c.message_id = m.id
			WHERE chunks_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT c.id, c.message_id, c.source_file, c.content,
				m.spec, m.version
			FROM chunks c
			LEFT JOIN messages m ON c.message_id = m.id
			WHERE 1=1`)
	}

	if opts.Message != "" {
		qb.WriteString(` AND c.message_id = ?`)
		args = append(args, opts.Message)
	}

	if opts.SourceFile != "" {
		qb.WriteString(` AND c.source_file = ?`)
		args = append(args, opts.SourceFile)
	}

	if useFTS {
		qb.WriteString(` ORDER BY chunks_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY c.message_id, c.source_file`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var results []QueryResult
	for rows.Next() {
		var (
			qr      QueryResult
			spec    sql.NullString
			version sql.NullString
		)
		if err := rows.Scan(
			&qr.ID, &qr.Message, &qr.SourceFile, &qr.Content,
			&spec, &version,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		qr.Spec = spec.String
		qr.Version = version.String
		results = append(results, qr)
	}

	return results, rows.Err()
}

// Trace returns the source section file content for a given chunk ID,
// read fresh from the sections directory rather than from the
// database, so the operator sees the file as it is on disk.
func (s *Store) Trace(ctx context.Context, chunkID string) (string, error) {
	var sourceFile string
	err := s.db.QueryRowContext(ctx,
		`SELECT source_file FROM chunks WHERE id = ?`, chunkID,
	).Scan(&sourceFile)

	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("chunk %s not found", chunkID)
		}
		return "", fmt.Errorf("looking up chunk: %w", err)
	}

	path := filepath.Join(s.sectionsDir, sourceFile)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(content), nil
}

// ChunkByID returns a single chunk with its message metadata.
func (s *Store) ChunkByID(ctx context.Context, chunkID string) (QueryResult, error) {
	var (
		qr      QueryResult
		spec    sql.NullString
		version sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.message_id, c.source_file, c.content, m.spec, m.version
		 FROM chunks c LEFT JOIN messages m ON c.message_id = m.id
		 WHERE c.id = ?`, chunkID,
	).Scan(&qr.ID, &qr.Message, &qr.SourceFile, &qr.Content, &spec, &version)

	if err != nil {
		if err == sql.ErrNoRows {
			return QueryResult{}, fmt.Errorf("chunk %s not found", chunkID)
		}
		return QueryResult{}, fmt.Errorf("looking up chunk: %w", err)
	}
	qr.Spec = spec.String
	qr.Version = version.String
	return qr, nil
}
