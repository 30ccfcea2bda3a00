// context.go provides utilities for propagating the current user and goroutine
// name through Go context.Context, and the UserResolver port built on them.

package bytehot

import (
	"context"
	"fmt"
)

// Context key types (unexported to avoid collisions)
type userKey struct{}
type threadNameKey struct{}

// WithUser returns a context with the user attached.
func WithUser(ctx context.Context, user UserID) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext extracts the user from context.
// Returns false if not set or if the user is anonymous.
func UserFromContext(ctx context.Context) (UserID, bool) {
	v := ctx.Value(userKey{})
	user, ok := v.(UserID)
	return user, ok && !user.IsAnonymous()
}

// WithThreadName returns a context naming the logical thread of execution.
// Error contexts and snapshots captured under this context report the name
// instead of the raw goroutine id.
func WithThreadName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, threadNameKey{}, name)
}

// ThreadNameFromContext extracts the thread name from context.
func ThreadNameFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(threadNameKey{})
	name, ok := v.(string)
	return name, ok && name != ""
}

// UserResolver resolves the user the current operation runs for.
type UserResolver interface {
	// CurrentUser returns the current user, or false when there is none.
	CurrentUser(ctx context.Context) (UserID, bool)

	// HasUserContext reports whether a user is known for ctx.
	HasUserContext(ctx context.Context) bool

	// ContextDescription describes the user context for diagnostics.
	ContextDescription(ctx context.Context) string
}

// ContextUserResolver resolves users attached with WithUser.
type ContextUserResolver struct{}

// CurrentUser implements UserResolver.
func (ContextUserResolver) CurrentUser(ctx context.Context) (UserID, bool) {
	return UserFromContext(ctx)
}

// HasUserContext implements UserResolver.
func (ContextUserResolver) HasUserContext(ctx context.Context) bool {
	_, ok := UserFromContext(ctx)
	return ok
}

// ContextDescription implements UserResolver.
func (ContextUserResolver) ContextDescription(ctx context.Context) string {
	user, ok := UserFromContext(ctx)
	if !ok {
		return "No user context"
	}
	return fmt.Sprintf("User: %s", user.Name())
}
