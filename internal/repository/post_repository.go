package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chamados-app/chamados-api/internal/domain"
)

const postColumns = `id, usuario_id, texto, data_criacao`

// PostPatch carries the optional fields of a partial update.
type PostPatch struct {
	UserID *int64
	Text   *string
}

// PostRepository encapsulates post persistence.
type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) error
	GetByID(ctx context.Context, id int64) (*domain.Post, error)
	List(ctx context.Context) ([]domain.Post, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Post, error)
	Replace(ctx context.Context, post *domain.Post) error
	Patch(ctx context.Context, id int64, patch PostPatch) (*domain.Post, error)
	Delete(ctx context.Context, id int64) error
}

type postRepository struct {
	pool *pgxpool.Pool
}

// NewPostRepository instantiates repository.
func NewPostRepository(pool *pgxpool.Pool) PostRepository {
	return &postRepository{pool: pool}
}

func (r *postRepository) Create(ctx context.Context, post *domain.Post) error {
	const query = `
        INSERT INTO post (usuario_id, texto)
        VALUES ($1, $2)
        RETURNING id, data_criacao`
	return r.pool.QueryRow(ctx, query, post.UserID, post.Text).Scan(&post.ID, &post.CreatedAt)
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	return scanPost(r.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM post WHERE id = $1`, id))
}

func (r *postRepository) List(ctx context.Context) ([]domain.Post, error) {
	return r.query(ctx, `SELECT `+postColumns+` FROM post ORDER BY id DESC`)
}

func (r *postRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Post, error) {
	return r.query(ctx, `SELECT `+postColumns+` FROM post WHERE usuario_id = $1 ORDER BY id DESC`, userID)
}

func (r *postRepository) Replace(ctx context.Context, post *domain.Post) error {
	const query = `
        UPDATE post
           SET usuario_id = $1,
               texto      = $2
         WHERE id = $3
        RETURNING data_criacao`
	return r.pool.QueryRow(ctx, query, post.UserID, post.Text, post.ID).Scan(&post.CreatedAt)
}

func (r *postRepository) Patch(ctx context.Context, id int64, patch PostPatch) (*domain.Post, error) {
	const query = `
        UPDATE post
           SET usuario_id = COALESCE($1, usuario_id),
               texto      = COALESCE($2, texto)
         WHERE id = $3
        RETURNING ` + postColumns
	return scanPost(r.pool.QueryRow(ctx, query, patch.UserID, patch.Text, id))
}

func (r *postRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM post WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *postRepository) query(ctx context.Context, query string, args ...any) ([]domain.Post, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *post)
	}
	return result, rows.Err()
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var post domain.Post
	if err := row.Scan(&post.ID, &post.UserID, &post.Text, &post.CreatedAt); err != nil {
		return nil, err
	}
	return &post, nil
}
