// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, logout, profile changes
// and the access/refresh token lifecycle.
package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dmitrijs2005/todoapi/internal/common"
	"github.com/dmitrijs2005/todoapi/internal/logging"
	"github.com/dmitrijs2005/todoapi/internal/server/auth"
	"github.com/dmitrijs2005/todoapi/internal/server/metrics"
	"github.com/dmitrijs2005/todoapi/internal/server/models"
	"github.com/dmitrijs2005/todoapi/internal/server/ratelimit"
	"github.com/dmitrijs2005/todoapi/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/todoapi/internal/server/storage"
	"github.com/google/uuid"
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgInvalidRefresh     = "Invalid or expired refresh token"
	msgUnauthorized       = "Unauthorized request"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Session is what a successful login or refresh hands back to the client.
type Session struct {
	User   models.User
	Tokens TokenPair
}

// AvatarStore keeps avatar images outside the database.
type AvatarStore interface {
	Upload(ctx context.Context, userID string, img *storage.Image) (models.Avatar, error)
	Delete(ctx context.Context, key string) error
}

// LoginLimiter throttles failed logins.
type LoginLimiter interface {
	Check(ctx context.Context, email, ip string) error
	Fail(ctx context.Context, email, ip string) error
	Reset(ctx context.Context, email string) error
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

// UserService provides account and session operations. Tokens are minted
// by a single TokenIssuer; the current refresh token of each user lives on
// the user row and is rotated with compare-and-swap.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *auth.TokenIssuer
	hasher      *auth.PasswordHasher
	avatars     AvatarStore
	limiter     LoginLimiter
	metrics     *metrics.Registry
	log         logging.Logger
}

// NewUserService constructs a UserService. limiter and reg may be nil.
func NewUserService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	tokens *auth.TokenIssuer,
	hasher *auth.PasswordHasher,
	avatars AvatarStore,
	limiter LoginLimiter,
	reg *metrics.Registry,
	log logging.Logger,
) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		hasher:      hasher,
		avatars:     avatars,
		limiter:     limiter,
		metrics:     reg,
		log:         log,
	}
}

// Register creates an account with the given avatar. The avatar is stored
// first and removed again if the user row cannot be written.
func (s *UserService) Register(ctx context.Context, in RegisterInput, avatar *storage.Image) (*models.User, error) {
	if avatar == nil {
		return nil, common.ValidationError("Avatar file is required",
			common.FieldError{Field: "avatar", Message: "Avatar file is required"})
	}

	user := &models.User{
		ID:       uuid.NewString(),
		Username: common.NormalizeIdentifier(in.Username),
		Email:    common.NormalizeIdentifier(in.Email),
		FullName: strings.TrimSpace(in.FullName),
	}

	repo := s.repomanager.Users(s.db)

	exists, err := repo.ExistsByEmailOrUsername(ctx, user.Email, user.Username)
	if err != nil {
		return nil, common.WrapError(common.ErrorInternal, "Failed to register user", err)
	}
	if exists {
		return nil, common.NewError(common.ErrorAlreadyExists, "User with email or username already exists")
	}

	user.PasswordHash, err = s.hasher.Hash(in.Password)
	if err != nil {
		return nil, common.WrapError(common.ErrorInternal, "Failed to register user", err)
	}

	user.Avatar, err = s.avatars.Upload(ctx, user.ID, avatar)
	if err != nil {
		return nil, common.WrapError(common.ErrorInternal, "Failed to upload avatar", err)
	}

	created, err := repo.Create(ctx, user)
	if err != nil {
		if delErr := s.avatars.Delete(ctx, user.Avatar.Key); delErr != nil {
			s.log.Warn(ctx, "orphaned avatar", "key", user.Avatar.Key, "error", delErr)
		}
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.NewError(common.ErrorAlreadyExists, "User with email or username already exists")
		}
		return nil, common.WrapError(common.ErrorInternal, "Failed to register user", err)
	}

	s.metrics.AuthEvent(metrics.EventRegister, metrics.OutcomeSuccess)
	s.log.Info(ctx, "user registered", "user_id", created.ID)

	out := created.Sanitize()
	return &out, nil
}

// Login checks credentials and starts a new session. Any previously issued
// refresh token of the user stops working.
func (s *UserService) Login(ctx context.Context, email, password, clientIP string) (*Session, error) {
	email = common.NormalizeIdentifier(email)

	if err := s.limiterCheck(ctx, email, clientIP); err != nil {
		s.metrics.AuthEvent(metrics.EventLogin, metrics.OutcomeRateLimited)
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, s.loginFailed(ctx, email, clientIP)
		}
		return nil, common.WrapError(common.ErrorInternal, "Failed to log in", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, s.loginFailed(ctx, email, clientIP)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, email); err != nil {
			s.log.Warn(ctx, "login limiter reset failed", "error", err)
		}
	}

	pair, err := s.issueTokenPair(ctx, *user)
	if err != nil {
		return nil, err
	}

	s.metrics.AuthEvent(metrics.EventLogin, metrics.OutcomeSuccess)
	s.log.Info(ctx, "user logged in", "user_id", user.ID)

	return &Session{User: user.Sanitize(), Tokens: *pair}, nil
}

// Logout forgets the user's refresh token. Access tokens already handed out
// stay valid until they expire.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	err := s.repomanager.Users(s.db).ClearRefreshToken(ctx, userID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return common.WrapError(common.ErrorInternal, "Failed to log out", err)
	}

	s.metrics.AuthEvent(metrics.EventLogout, metrics.OutcomeSuccess)
	return nil
}

// RefreshToken exchanges a valid refresh token for a new pair. The presented
// token must match the one stored for the user; after rotation it can not
// be used again. Every failure is reported as unauthorized.
func (s *UserService) RefreshToken(ctx context.Context, presented string) (*Session, error) {
	session, err := s.refresh(ctx, presented)
	if err != nil {
		s.metrics.AuthEvent(metrics.EventRefresh, metrics.OutcomeFailure)
		if errors.Is(err, common.ErrorInternal) {
			s.log.Error(ctx, "refresh failed", "error", err)
		}
		return nil, common.WrapError(common.ErrorUnauthorized, msgInvalidRefresh, err)
	}

	s.metrics.AuthEvent(metrics.EventRefresh, metrics.OutcomeSuccess)
	return session, nil
}

func (s *UserService) refresh(ctx context.Context, presented string) (*Session, error) {
	if presented == "" {
		return nil, common.ErrorUnauthorized
	}

	claims, err := s.tokens.ParseRefreshToken(presented)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.WrapError(common.ErrorInternal, "load user", err)
	}

	stored, err := repo.GetRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, common.WrapError(common.ErrorInternal, "load refresh token", err)
	}
	if stored == "" || stored != presented {
		return nil, common.ErrRefreshTokenExpired
	}

	pair, err := s.mintPair(*user)
	if err != nil {
		return nil, err
	}

	swapped, err := repo.SwapRefreshToken(ctx, user.ID, presented, pair.RefreshToken)
	if err != nil {
		return nil, common.WrapError(common.ErrorInternal, "rotate refresh token", err)
	}
	if !swapped {
		return nil, common.ErrRefreshTokenExpired
	}

	return &Session{User: user.Sanitize(), Tokens: *pair}, nil
}

// Authenticate resolves an access token to the identity of a still
// existing user.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (models.Identity, error) {
	if accessToken == "" {
		return models.Identity{}, common.NewError(common.ErrorUnauthorized, msgUnauthorized)
	}

	claims, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return models.Identity{}, common.WrapError(common.ErrorUnauthorized, "Invalid access token", err)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return models.Identity{}, common.WrapError(common.ErrorUnauthorized, "Invalid access token", err)
		}
		return models.Identity{}, common.WrapError(common.ErrorInternal, "Failed to authenticate", err)
	}

	return user.Identity(), nil
}

func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, userLookupErr(err)
	}
	out := user.Sanitize()
	return &out, nil
}

// ChangePassword replaces the password hash after checking the old
// password. Existing sessions are not ended.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	repo := s.repomanager.Users(s.db)

	hash, err := repo.GetPasswordHash(ctx, userID)
	if err != nil {
		return userLookupErr(err)
	}

	if !s.hasher.Verify(oldPassword, hash) {
		return common.WrapError(common.ErrorValidation, "Old password is incorrect", common.ErrWrongOldPassword)
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return common.WrapError(common.ErrorInternal, "Failed to change password", err)
	}

	if err := repo.UpdatePassword(ctx, userID, newHash); err != nil {
		return userLookupErr(err)
	}

	s.log.Info(ctx, "password changed", "user_id", userID)
	return nil
}

// UpdateProfile changes any of username, email and full name.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.User, error) {
	if upd.Empty() {
		return nil, common.ValidationError("At least one field is required to update")
	}

	if upd.Username != nil {
		v := common.NormalizeIdentifier(*upd.Username)
		upd.Username = &v
	}
	if upd.Email != nil {
		v := common.NormalizeIdentifier(*upd.Email)
		upd.Email = &v
	}
	if upd.FullName != nil {
		v := strings.TrimSpace(*upd.FullName)
		upd.FullName = &v
	}

	user, err := s.repomanager.Users(s.db).UpdateProfile(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.NewError(common.ErrorAlreadyExists, "Username or email is already taken")
		}
		return nil, userLookupErr(err)
	}

	out := user.Sanitize()
	return &out, nil
}

// UpdateAvatar stores a new avatar and then removes the previous object.
func (s *UserService) UpdateAvatar(ctx context.Context, userID string, img *storage.Image) (*models.User, error) {
	if img == nil {
		return nil, common.ValidationError("Avatar file is required",
			common.FieldError{Field: "avatar", Message: "Avatar file is required"})
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return nil, userLookupErr(err)
	}

	avatar, err := s.avatars.Upload(ctx, userID, img)
	if err != nil {
		return nil, common.WrapError(common.ErrorInternal, "Failed to upload avatar", err)
	}

	if err := repo.SetAvatar(ctx, userID, avatar); err != nil {
		if delErr := s.avatars.Delete(ctx, avatar.Key); delErr != nil {
			s.log.Warn(ctx, "orphaned avatar", "key", avatar.Key, "error", delErr)
		}
		return nil, userLookupErr(err)
	}

	if old := user.Avatar.Key; old != "" {
		if err := s.avatars.Delete(ctx, old); err != nil {
			s.log.Warn(ctx, "old avatar not deleted", "key", old, "error", err)
		}
	}

	user.Avatar = avatar
	out := user.Sanitize()
	return &out, nil
}

func userLookupErr(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.NewError(common.ErrorNotFound, "User not found")
	}
	return common.WrapError(common.ErrorInternal, "Something went wrong", err)
}

// limiterCheck fails open when the limiter backend is down.
func (s *UserService) limiterCheck(ctx context.Context, email, ip string) error {
	if s.limiter == nil {
		return nil
	}
	err := s.limiter.Check(ctx, email, ip)
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrorRateLimited) {
		return common.NewError(common.ErrorRateLimited, "Too many login attempts, try again later")
	}
	if errors.Is(err, ratelimit.ErrUnavailable) {
		s.log.Warn(ctx, "login limiter unavailable", "error", err)
		return nil
	}
	return common.WrapError(common.ErrorInternal, "Failed to log in", err)
}

func (s *UserService) loginFailed(ctx context.Context, email, ip string) error {
	if s.limiter != nil {
		if err := s.limiter.Fail(ctx, email, ip); err != nil {
			s.log.Warn(ctx, "login limiter update failed", "error", err)
		}
	}
	s.metrics.AuthEvent(metrics.EventLogin, metrics.OutcomeFailure)
	return common.WrapError(common.ErrorUnauthorized, msgInvalidCredentials, common.ErrInvalidCredentials)
}

func (s *UserService) mintPair(user models.User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(user.Identity())
	if err != nil {
		return nil, common.WrapError(common.ErrorInternal, "issue access token", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, common.WrapError(common.ErrorInternal, "issue refresh token", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// issueTokenPair mints a pair and persists the refresh token. Nothing is
// returned unless the token was stored.
func (s *UserService) issueTokenPair(ctx context.Context, user models.User) (*TokenPair, error) {
	pair, err := s.mintPair(user)
	if err != nil {
		return nil, err
	}
	if err := s.repomanager.Users(s.db).SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, common.WrapError(common.ErrorInternal, "Something went wrong while generating tokens", err)
	}
	return pair, nil
}
