package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/todoapi/internal/common"
	"github.com/dmitrijs2005/todoapi/internal/dbx"
	"github.com/dmitrijs2005/todoapi/internal/server/models"
)

const profileColumns = `id, username, email, full_name, avatar_url, avatar_key, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner, u *models.User, extra ...any) error {
	dest := []any{&u.ID, &u.Username, &u.Email, &u.FullName, &u.Avatar.URL, &u.Avatar.Key, &u.CreatedAt, &u.UpdatedAt}
	return row.Scan(append(dest, extra...)...)
}

func wrapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}
	if _, ok := dbx.IsUniqueViolation(err); ok {
		return common.ErrorAlreadyExists
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (id, username, email, full_name, password_hash, avatar_url, avatar_key)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.FullName, user.PasswordHash, user.Avatar.URL, user.Avatar.Key,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return nil, wrapErr(err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + profileColumns + ` FROM users WHERE id = $1`

	user := &models.User{}
	if err := scanProfile(r.db.QueryRowContext(ctx, query, id), user); err != nil {
		return nil, wrapErr(err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + profileColumns + `, password_hash FROM users WHERE email = $1`

	user := &models.User{}
	if err := scanProfile(r.db.QueryRowContext(ctx, query, email), user, &user.PasswordHash); err != nil {
		return nil, wrapErr(err)
	}

	return user, nil
}

func (r *PostgresRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 OR username = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return exists, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	query :=
		`UPDATE users SET
		   username = COALESCE($2, username),
		   email = COALESCE($3, email),
		   full_name = COALESCE($4, full_name),
		   updated_at = now()
		 WHERE id = $1
		 RETURNING ` + profileColumns

	user := &models.User{}
	row := r.db.QueryRowContext(ctx, query, id, nullString(upd.Username), nullString(upd.Email), nullString(upd.FullName))
	if err := scanProfile(row, user); err != nil {
		return nil, wrapErr(err)
	}

	return user, nil
}

func (r *PostgresRepository) GetPasswordHash(ctx context.Context, id string) (string, error) {
	var hash string
	if err := r.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id = $1`, id).Scan(&hash); err != nil {
		return "", wrapErr(err)
	}
	return hash, nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id, passwordHash)
}

func (r *PostgresRepository) SetAvatar(ctx context.Context, id string, avatar models.Avatar) error {
	query := `UPDATE users SET avatar_url = $2, avatar_key = $3, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id, avatar.URL, avatar.Key)
}

func (r *PostgresRepository) GetRefreshToken(ctx context.Context, id string) (string, error) {
	query := `SELECT refresh_token FROM users WHERE id = $1`

	var token sql.NullString
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&token); err != nil {
		return "", wrapErr(err)
	}

	return token.String, nil
}

func (r *PostgresRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	query := `UPDATE users SET refresh_token = $2 WHERE id = $1`
	return r.execOne(ctx, query, id, token)
}

func (r *PostgresRepository) SwapRefreshToken(ctx context.Context, id, old, new string) (bool, error) {
	query := `UPDATE users SET refresh_token = $3 WHERE id = $1 AND refresh_token = $2`

	res, err := r.db.ExecContext(ctx, query, id, old, new)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return n == 1, nil
}

func (r *PostgresRepository) ClearRefreshToken(ctx context.Context, id string) error {
	query := `UPDATE users SET refresh_token = NULL WHERE id = $1`
	return r.execOne(ctx, query, id)
}

// execOne runs an UPDATE addressed by primary key and maps "no such row"
// to common.ErrorNotFound.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
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
