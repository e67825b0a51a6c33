package users

import (
	"context"

	"github.com/dmitrijs2005/todoapi/internal/server/models"
)

// Repository is the credential store. Read methods return a profile
// projection (no password hash, no refresh token) unless noted otherwise.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByEmail also loads PasswordHash for credential checks.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	GetPasswordHash(ctx context.Context, id string) (string, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetAvatar(ctx context.Context, id string, avatar models.Avatar) error

	GetRefreshToken(ctx context.Context, id string) (string, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	// SwapRefreshToken replaces the stored token only if it still equals
	// old. It reports false when another writer got there first.
	SwapRefreshToken(ctx context.Context, id, old, new string) (bool, error)
	ClearRefreshToken(ctx context.Context, id string) error
}
