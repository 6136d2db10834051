// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mkovacs/asnkit/internal/embed"
)

// EmbedChunks computes embeddings for every chunk that does not have
// one yet and stores them, returning the number embedded. Vectors are
// stored as JSON arrays in the chunks table; SQLite has no native
// vector type and the corpus is small enough to rank in memory.
func (s *Store) EmbedChunks(ctx context.Context, client embed.Client, model string, batchSize int) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content FROM chunks WHERE embedding IS NULL ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("listing unembedded chunks: %w", err)
	}

	var ids, texts []string
	for rows.Next() {
		var id, content string
		if err := rows.Scan(&id, &content); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning chunk: %w", err)
		}
		ids = append(ids, id)
		texts = append(texts, content)
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	vectors, err := embed.EmbedTexts(ctx, client, model, texts, batchSize)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE chunks SET embedding = ? WHERE id = ?`)
	if err != nil {
		return 0, fmt.Errorf("preparing update: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		data, err := json.Marshal(vectors[i])
		if err != nil {
			return 0, fmt.Errorf("marshaling vector for %s: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, string(data), id); err != nil {
			return 0, fmt.Errorf("storing vector for %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// SemanticRetrieve embeds the query and ranks every embedded chunk by
// cosine similarity, returning the top maxResults. It fails when the
// index holds no embedded chunks; run ingestion with embedding enabled
// first.
func (s *Store) SemanticRetrieve(ctx context.Context, client embed.Client, model, query string, maxResults int) ([]QueryResult, error) {
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	candidates, err := s.embeddedCandidates(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no embedded chunks in the index: ingest with embedding enabled first")
	}

	queryVecs, err := embed.EmbedTexts(ctx, client, model, []string{query}, 1)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	ranked := embed.Rank(queryVecs[0], candidates)
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}

	results := make([]QueryResult, 0, len(ranked))
	for _, r := range ranked {
		qr, err := s.ChunkByID(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		qr.Score = r.Score
		results = append(results, qr)
	}
	return results, nil
}

func (s *Store) embeddedCandidates(ctx context.Context) ([]embed.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding FROM chunks WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("listing embedded chunks: %w", err)
	}
	defer rows.Close()

	var candidates []embed.Candidate
	for rows.Next() {
		var (
			id      string
			vecJSON sql.NullString
		)
		if err := rows.Scan(&id, &vecJSON); err != nil {
			return nil, fmt.Errorf("scanning embedded chunk: %w", err)
		}
		var vec []float32
		if vecJSON.Valid {
			if err := json.Unmarshal([]byte(vecJSON.String), &vec); err != nil {
				return nil, fmt.Errorf("parsing vector for %s: %w", id, err)
			}
		}
		candidates = append(candidates, embed.Candidate{ID: id, Vector: vec})
	}
	return candidates, rows.Err()
}
