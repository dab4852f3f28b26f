package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/docadmin/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const fragmentColumns = `f.id, f.content, f.metadata, f.embedding IS NOT NULL, f.document_id,
	f.processed_by_n8n, f.processed_at, f.chunks_count, f.source_url, f.created_at,
	d.id, d.title, d.description, d.flow`

const fragmentFrom = ` FROM documents1 f LEFT JOIN documents d ON d.id = f.document_id`

// FragmentRepository reads the vectorized table written by the webhook consumer.
type FragmentRepository struct {
	pool *pgxpool.Pool
}

func NewFragmentRepository(pool *pgxpool.Pool) *FragmentRepository {
	return &FragmentRepository{pool: pool}
}

func scanFragment(row pgx.Row, extra ...any) (*domain.Fragment, error) {
	var f domain.Fragment
	var documentID, sourceURL *string
	var parentID, parentTitle, parentDescription, parentFlow *string
	dest := []any{
		&f.ID, &f.Content, &f.Metadata, &f.HasEmbedding, &documentID,
		&f.ProcessedByN8N, &f.ProcessedAt, &f.ChunksCount, &sourceURL, &f.CreatedAt,
		&parentID, &parentTitle, &parentDescription, &parentFlow,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	f.DocumentID = derefString(documentID)
	f.SourceURL = derefString(sourceURL)
	if parentID != nil {
		f.Parent = &domain.FragmentParent{
			ID:          *parentID,
			Title:       derefString(parentTitle),
			Description: derefString(parentDescription),
			Flow:        domain.Flow(derefString(parentFlow)),
		}
	}
	return &f, nil
}

// ListPage returns one page ordered by processed_at with the exact total row count.
func (r *FragmentRepository) ListPage(ctx context.Context, offset, limit int) ([]*domain.Fragment, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents1`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+fragmentColumns+fragmentFrom+`
		 ORDER BY f.processed_at DESC NULLS LAST, f.id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	frags := make([]*domain.Fragment, 0, limit)
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, 0, err
		}
		frags = append(frags, f)
	}
	return frags, total, rows.Err()
}

func (r *FragmentRepository) GetByID(ctx context.Context, id int64) (*domain.Fragment, error) {
	f, err := scanFragment(r.pool.QueryRow(ctx,
		`SELECT `+fragmentColumns+fragmentFrom+` WHERE f.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFragmentNotFound
		}
		return nil, err
	}
	return f, nil
}

func (r *FragmentRepository) Delete(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM documents1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrFragmentNotFound
	}
	return nil
}

func (r *FragmentRepository) Stats(ctx context.Context) (*domain.FragmentStats, error) {
	var stats domain.FragmentStats
	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE embedding IS NOT NULL),
			COALESCE(SUM(chunks_count), 0),
			COUNT(*) FILTER (WHERE processed_by_n8n = FALSE)
		 FROM documents1`,
	).Scan(&stats.TotalVectorized, &stats.TotalChunks, &stats.PendingCount)
	if err != nil {
		return nil, err
	}

	var title *string
	var processedAt time.Time
	err = r.pool.QueryRow(ctx,
		`SELECT d.title, f.processed_at`+fragmentFrom+`
		 WHERE f.processed_at IS NOT NULL
		 ORDER BY f.processed_at DESC
		 LIMIT 1`,
	).Scan(&title, &processedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		stats.LastProcessed = &domain.LastProcessed{Title: derefString(title), ProcessedAt: processedAt}
	}

	return &stats, nil
}

// SearchByEmbedding ranks embedded fragments by cosine similarity.
func (r *FragmentRepository) SearchByEmbedding(ctx context.Context, embedding []float32, limit int) ([]*domain.ScoredFragment, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+fragmentColumns+`, 1 - (f.embedding <=> $1) AS score`+fragmentFrom+`
		 WHERE f.embedding IS NOT NULL
		 ORDER BY f.embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*domain.ScoredFragment, 0, limit)
	for rows.Next() {
		var score float64
		f, err := scanFragment(rows, &score)
		if err != nil {
			return nil, err
		}
		results = append(results, &domain.ScoredFragment{Fragment: f, Score: score})
	}
	return results, rows.Err()
}
