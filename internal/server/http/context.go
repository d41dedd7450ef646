package http

import (
	"context"

	"github.com/paperclip/paperclip/internal/server/models"
)

type ctxKey string

const userKey ctxKey = "user"

// WithUser stores the resolved user in ctx.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the user set by RequireUser or OptionalUser, or
// nil for an anonymous request.
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}
