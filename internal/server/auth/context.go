package auth

import (
	"context"

	"github.com/dmitrijs2005/todoapi/internal/server/models"
)

type userCtxKey struct{}

// WithUser returns a copy of ctx carrying the authenticated identity.
func WithUser(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, userCtxKey{}, id)
}

// UserFromContext returns the identity stored by WithUser.
func UserFromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(userCtxKey{}).(models.Identity)
	if !ok || id.ID == "" {
		return models.Identity{}, false
	}
	return id, true
}
