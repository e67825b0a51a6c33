// Package auth issues and verifies session tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/todoapi/internal/common"
	"github.com/dmitrijs2005/todoapi/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// RefreshClaims is the payload of a refresh token. It carries only the
// user id; the token itself is also stored on the user row.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"_id"`
}

// TokenIssuer mints and verifies access and refresh tokens. Each kind is
// signed with its own secret so one cannot be replayed as the other.
type TokenIssuer struct {
	accessSecret    []byte
	refreshSecret   []byte
	accessValidity  time.Duration
	refreshValidity time.Duration
	now             func() time.Time
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessValidity, refreshValidity time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:    []byte(accessSecret),
		refreshSecret:   []byte(refreshSecret),
		accessValidity:  accessValidity,
		refreshValidity: refreshValidity,
		now:             time.Now,
	}
}

func (i *TokenIssuer) registered(validity time.Duration) jwt.RegisteredClaims {
	now := i.now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
	}
}

func (i *TokenIssuer) IssueAccessToken(id models.Identity) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: i.registered(i.accessValidity),
		UserID:           id.ID,
		Username:         id.Username,
		Email:            id.Email,
		FullName:         id.FullName,
	})

	return token.SignedString(i.accessSecret)
}

func (i *TokenIssuer) IssueRefreshToken(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		RegisteredClaims: i.registered(i.refreshValidity),
		UserID:           userID,
	})

	return token.SignedString(i.refreshSecret)
}

// ParseAccessToken verifies signature and expiry of an access token.
// Expired tokens yield common.ErrTokenExpired, anything else
// common.ErrInvalidToken.
func (i *TokenIssuer) ParseAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(tokenString, claims, i.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *TokenIssuer) ParseRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(tokenString, claims, i.refreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *TokenIssuer) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return common.ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return common.ErrInvalidToken
	}

	var userID string
	switch c := claims.(type) {
	case *AccessClaims:
		userID = c.UserID
	case *RefreshClaims:
		userID = c.UserID
	}
	if userID == "" {
		return common.ErrInvalidToken
	}

	return nil
}
