package common

import (
	"context"
)

// UserContext holds the identity resolved for a request. It is populated by
// the HTTP middleware and read once by handlers, which then pass the owner id
// explicitly to every service call.
type UserContext struct {
	UserID string
	Source string // "token" or "header"
}

type contextKey int

const userContextKey contextKey = iota

// WithUserContext stores a UserContext in the request context.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, uc)
}

// UserContextFromContext retrieves the UserContext from context, or nil if absent.
func UserContextFromContext(ctx context.Context) *UserContext {
	uc, _ := ctx.Value(userContextKey).(*UserContext)
	return uc
}

// ResolveUserID returns the UserID from context, or "" when the request is
// anonymous. There is no default user: an empty id fails the ownership guard.
func ResolveUserID(ctx context.Context) string {
	if uc := UserContextFromContext(ctx); uc != nil {
		return uc.UserID
	}
	return ""
}
