package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"clinote/pkg"
)

// Repository stores knowledge chunks in Postgres.  Embeddings are kept as
// double precision arrays and converted to float32 on read.
type Repository struct {
	DB *sql.DB
}

// NewRepository constructs a new Repository from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

// ReplaceSource swaps every chunk of source for chunks in one transaction.
// Chunks without an ID get a fresh UUID.
func (r *Repository) ReplaceSource(ctx context.Context, source string, chunks []pkg.KnowledgeChunk) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge_chunks WHERE source = $1`, source); err != nil {
		return fmt.Errorf("clear source %q: %w", source, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO knowledge_chunks (id, source, chunk_index, content, embedding)
         VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, id, source, c.ChunkIndex, c.Content, pq.Float64Array(widen(c.Embedding))); err != nil {
			return fmt.Errorf("insert chunk %d of %q: %w", c.ChunkIndex, source, err)
		}
	}
	return tx.Commit()
}

// ListChunks returns every stored chunk ordered by source and position.
func (r *Repository) ListChunks(ctx context.Context) ([]pkg.KnowledgeChunk, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, source, chunk_index, content, embedding, created_at
         FROM knowledge_chunks
         ORDER BY source, chunk_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []pkg.KnowledgeChunk
	for rows.Next() {
		var (
			c   pkg.KnowledgeChunk
			emb pq.Float64Array
		)
		if err := rows.Scan(&c.ID, &c.Source, &c.ChunkIndex, &c.Content, &emb, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Embedding = narrow(emb)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteSource removes all chunks of source and reports how many went.
func (r *Repository) DeleteSource(ctx context.Context, source string) (int, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM knowledge_chunks WHERE source = $1`, source)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ListSources summarises the stored documents.
func (r *Repository) ListSources(ctx context.Context) ([]pkg.SourceSummary, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT source, COUNT(*), MAX(created_at)
         FROM knowledge_chunks
         GROUP BY source
         ORDER BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pkg.SourceSummary
	for rows.Next() {
		var s pkg.SourceSummary
		if err := rows.Scan(&s.Source, &s.Chunks, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func narrow(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
