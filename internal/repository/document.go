package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/docadmin/internal/domain"
	"github.com/cloo-solutions/docadmin/internal/pagination"
	"github.com/cloo-solutions/docadmin/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id, title, description, code, version, flow, file_path, file_name, tags,
	created_by, updated_by, created_at, updated_at, processed_by_n8n, processed_at`

type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var flow string
	var createdBy, updatedBy *string
	if err := row.Scan(&d.ID, &d.Title, &d.Description, &d.Code, &d.Version, &flow, &d.FilePath, &d.FileName, &d.Tags,
		&createdBy, &updatedBy, &d.CreatedAt, &d.UpdatedAt, &d.ProcessedByN8N, &d.ProcessedAt); err != nil {
		return nil, err
	}
	d.Flow = domain.Flow(flow)
	d.CreatedBy = derefString(createdBy)
	d.UpdatedBy = derefString(updatedBy)
	if d.Tags == nil {
		d.Tags = []string{}
	}
	return &d, nil
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO documents (id, title, description, code, version, flow, file_path, file_name, tags,
		                        created_by, updated_by, created_at, updated_at, processed_by_n8n, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		d.ID, d.Title, d.Description, d.Code, d.Version, string(d.Flow), d.FilePath, d.FileName, tags,
		nullableString(d.CreatedBy), nullableString(d.UpdatedBy), d.CreatedAt, d.UpdatedAt, d.ProcessedByN8N, d.ProcessedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDocumentAlreadyExists
		}
		return err
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	d, err := scanDocument(r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		if isMissingRow(err) {
			return nil, domain.ErrDocumentNotFound.WithCause(err)
		}
		return nil, err
	}
	return d, nil
}

func (r *DocumentRepository) GetByCodeVersion(ctx context.Context, code, version string) (*domain.Document, error) {
	d, err := scanDocument(r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE code = $1 AND version = $2`, code, version))
	if err != nil {
		if isMissingRow(err) {
			return nil, domain.ErrDocumentNotFound.WithCause(err)
		}
		return nil, err
	}
	return d, nil
}

func (r *DocumentRepository) ListWithCursor(ctx context.Context, filter service.DocumentFilter, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = service.DefaultDocumentPageSize
	}

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Flow != "" {
		conds = append(conds, "flow = "+arg(string(filter.Flow)))
	}
	if filter.Query != "" {
		p := arg("%" + escapeLike(filter.Query) + "%")
		conds = append(conds, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
	}
	if cursor != nil {
		conds = append(conds, fmt.Sprintf("(created_at, id) < (%s, %s)", arg(cursor.Timestamp), arg(cursor.LastID)))
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT " + arg(limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*domain.Document, 0, limit)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(docs) > limit
	if hasMore {
		docs = docs[:limit]
	}

	var nextCursor string
	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.DocumentPageResult{
		Items:      docs,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListUnprocessed returns documents not yet accepted by the webhook. Never
// attempted documents come first, then failures by oldest attempt, so a
// document that keeps failing cannot starve the rest. A limit of zero returns
// all of them.
func (r *DocumentRepository) ListUnprocessed(ctx context.Context, limit int) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents
		 WHERE processed_by_n8n = FALSE
		 ORDER BY processed_at ASC NULLS FIRST, created_at ASC, id ASC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) CountByFlow(ctx context.Context, flow domain.Flow) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE flow = $1`, string(flow),
	).Scan(&count)
	return count, err
}

func (r *DocumentRepository) UpdateProcessingStatus(ctx context.Context, id string, processed bool, at time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE documents SET processed_by_n8n = $1, processed_at = $2 WHERE id = $3`,
		processed, at, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
