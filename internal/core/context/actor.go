package context

import (
	"context"
)

// Actor identifies the caller of an operation, taken from a verified bearer token.
type Actor struct {
	Subject string
	Name    string
	Roles   []string
}

type actorContextKey struct{}

// WithActor adds Actor to context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns Actor from context.
func GetActor(ctx context.Context) *Actor {
	if v, ok := ctx.Value(actorContextKey{}).(*Actor); ok {
		return v
	}
	return nil
}

// GetSubject returns the actor subject or empty string.
func GetSubject(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.Subject
	}
	return ""
}
