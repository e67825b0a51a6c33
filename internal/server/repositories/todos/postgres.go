// Package todos provides the PostgreSQL-backed todo repository.
package todos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/todoapi/internal/common"
	"github.com/dmitrijs2005/todoapi/internal/dbx"
	"github.com/dmitrijs2005/todoapi/internal/server/models"
)

const todoColumns = `id, user_id, title, description, due_date, priority, status, created_at, updated_at`

// filterClause matches rows of $1, optionally narrowed by status ($2) and
// priority ($3); an empty string disables the corresponding filter.
const filterClause = `WHERE user_id = $1
		   AND ($2::text = '' OR status = $2)
		   AND ($3::text = '' OR priority = $3)`

// PostgresRepository implements todo storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTodo(row scanner) (*models.Todo, error) {
	var (
		t   models.Todo
		due sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &due, &t.Priority, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	return &t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func wrapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, todo *models.Todo) (*models.Todo, error) {
	query := `
		INSERT INTO todos (id, user_id, title, description, due_date, priority, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + todoColumns

	row := r.db.QueryRowContext(ctx, query,
		todo.ID, todo.UserID, todo.Title, todo.Description, nullTime(todo.DueDate), todo.Priority, todo.Status)

	t, err := scanTodo(row)
	if err != nil {
		return nil, wrapErr(err)
	}
	return t, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = $1 AND user_id = $2`

	t, err := scanTodo(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return nil, wrapErr(err)
	}
	return t, nil
}

// List returns one page of todos ordered by due date, undated ones last.
func (r *PostgresRepository) List(ctx context.Context, userID string, f models.TodoFilter) ([]models.Todo, error) {
	f = f.Normalize()
	query := `SELECT ` + todoColumns + ` FROM todos
		 ` + filterClause + `
		 ORDER BY due_date ASC NULLS LAST, created_at ASC
		 LIMIT $4 OFFSET $5`

	rows, err := r.db.QueryContext(ctx, query, userID, string(f.Status), string(f.Priority), f.Limit, f.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to select todos: %w", err)
	}
	defer rows.Close()

	result := make([]models.Todo, 0, f.Limit)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context, userID string, f models.TodoFilter) (int, error) {
	query := `SELECT COUNT(*) FROM todos
		 ` + filterClause

	var n int
	if err := r.db.QueryRowContext(ctx, query, userID, string(f.Status), string(f.Priority)).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Update applies the non-nil fields of upd and bumps updated_at.
func (r *PostgresRepository) Update(ctx context.Context, userID, id string, upd models.TodoUpdate) (*models.Todo, error) {
	query := `
		UPDATE todos SET
			title = COALESCE($3, title),
			description = COALESCE($4, description),
			due_date = COALESCE($5, due_date),
			priority = COALESCE($6, priority),
			status = COALESCE($7, status),
			updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + todoColumns

	var priority, status sql.NullString
	if upd.Priority != nil {
		priority = sql.NullString{String: string(*upd.Priority), Valid: true}
	}
	if upd.Status != nil {
		status = sql.NullString{String: string(*upd.Status), Valid: true}
	}

	row := r.db.QueryRowContext(ctx, query, id, userID,
		nullString(upd.Title), nullString(upd.Description), nullTime(upd.DueDate), priority, status)

	t, err := scanTodo(row)
	if err != nil {
		return nil, wrapErr(err)
	}
	return t, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
