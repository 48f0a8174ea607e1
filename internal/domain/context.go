package domain

import (
	"context"
	"strings"
)

// UnknownUser is recorded on audit events when no username was supplied.
const UnknownUser = "unknown"

type usernameKey struct{}

// WithUsername attaches the acting username to ctx.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey{}, strings.TrimSpace(username))
}

// UsernameFrom returns the acting username, or UnknownUser.
func UsernameFrom(ctx context.Context) string {
	if name, ok := ctx.Value(usernameKey{}).(string); ok && name != "" {
		return name
	}
	return UnknownUser
}
