package repository

import (
	"context"
	"time"

	"github.com/cloo-solutions/docadmin/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminUserRepository struct {
	pool *pgxpool.Pool
}

func NewAdminUserRepository(pool *pgxpool.Pool) *AdminUserRepository {
	return &AdminUserRepository{pool: pool}
}

func (r *AdminUserRepository) Create(ctx context.Context, admin *domain.AdminUser) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO admin_users (id, email, created_at, last_sign_in)
		 VALUES ($1, $2, $3, $4)`,
		admin.ID, admin.Email, admin.CreatedAt, admin.LastSignIn,
	)
	if isUniqueViolation(err) {
		return domain.ErrAdminUserAlreadyExists
	}
	return err
}

func (r *AdminUserRepository) GetByID(ctx context.Context, id string) (*domain.AdminUser, error) {
	return r.getOne(ctx, `SELECT id, email, created_at, last_sign_in FROM admin_users WHERE id = $1`, id)
}

func (r *AdminUserRepository) GetByEmail(ctx context.Context, email string) (*domain.AdminUser, error) {
	return r.getOne(ctx, `SELECT id, email, created_at, last_sign_in FROM admin_users WHERE email = $1`, email)
}

func (r *AdminUserRepository) getOne(ctx context.Context, query string, arg string) (*domain.AdminUser, error) {
	var admin domain.AdminUser
	err := r.pool.QueryRow(ctx, query, arg).
		Scan(&admin.ID, &admin.Email, &admin.CreatedAt, &admin.LastSignIn)
	if err != nil {
		if isMissingRow(err) {
			return nil, domain.ErrAdminUserNotFound.WithCause(err)
		}
		return nil, err
	}
	return &admin, nil
}

func (r *AdminUserRepository) List(ctx context.Context) ([]*domain.AdminUser, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, email, created_at, last_sign_in FROM admin_users ORDER BY created_at, email`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []*domain.AdminUser
	for rows.Next() {
		var admin domain.AdminUser
		if err := rows.Scan(&admin.ID, &admin.Email, &admin.CreatedAt, &admin.LastSignIn); err != nil {
			return nil, err
		}
		admins = append(admins, &admin)
	}
	return admins, rows.Err()
}

func (r *AdminUserRepository) TouchLastSignIn(ctx context.Context, id string, at time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE admin_users SET last_sign_in = $1 WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrAdminUserNotFound
	}
	return nil
}
