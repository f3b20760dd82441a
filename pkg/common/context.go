package common

import "context"

type contextKey string

const (
	contextKeyUserID    contextKey = "userId"
	contextKeyUserRoles contextKey = "userRoles"
)

// WithUserID records the authenticated caller's id on the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// GetUserID extracts the caller's id from the context.
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKeyUserID).(string)
	return userID, ok
}

// WithUserRoles records the authenticated caller's roles on the context.
func WithUserRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, contextKeyUserRoles, roles)
}

// GetUserRoles extracts the caller's roles from the context.
func GetUserRoles(ctx context.Context) ([]string, bool) {
	roles, ok := ctx.Value(contextKeyUserRoles).([]string)
	return roles, ok
}

// HasRole reports whether the caller carries the given role.
func HasRole(ctx context.Context, role string) bool {
	roles, ok := GetUserRoles(ctx)
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
