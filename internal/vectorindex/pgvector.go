// Package vectorindex implements the nearest-neighbor index on pgvector.
// The chunk_vectors table stores only (chunk_id, embedding): the index
// has no notion of tenancy, so results may reference another user's
// chunks or chunks that have since been deleted. The retrieval pipeline
// owns filtering; this layer only preserves distance order.
//
// Distance semantics: L2 via the <-> operator, ascending, lower is
// better. Index configuration and retrieval-side assumptions must keep
// using the same metric.
package vectorindex

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/clearchart/medrag/internal/core"
)

type PgVectorIndex struct {
	db *sql.DB
}

// NewPgVectorIndex wraps an existing database handle; the index shares
// the metadata store's connection pool.
func NewPgVectorIndex(db *sql.DB) *PgVectorIndex {
	return &PgVectorIndex{db: db}
}

// Upsert streams datapoints into the index; an existing id's embedding
// is replaced. ids and vectors must be parallel slices.
func (x *PgVectorIndex) Upsert(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("upsert size mismatch: %d ids, %d vectors", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO chunk_vectors (chunk_id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (chunk_id) DO UPDATE SET embedding = EXCLUDED.embedding
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, pgvector.NewVector(vectors[i])); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Search returns up to k candidates ordered by ascending L2 distance.
// An empty result set is returned as-is, never as an error.
func (x *PgVectorIndex) Search(ctx context.Context, vector []float32, k int) ([]core.Candidate, error) {
	const q = `
		SELECT chunk_id, embedding <-> $1 AS distance
		FROM chunk_vectors
		ORDER BY distance ASC
		LIMIT $2
	`
	rows, err := x.db.QueryContext(ctx, q, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Candidate
	for rows.Next() {
		var c core.Candidate
		if err := rows.Scan(&c.ChunkID, &c.Distance); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (x *PgVectorIndex) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := x.db.ExecContext(ctx, `DELETE FROM chunk_vectors WHERE chunk_id = ANY($1)`, ids)
	return err
}

var _ core.VectorIndex = (*PgVectorIndex)(nil)
