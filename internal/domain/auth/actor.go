package auth

import "context"

// Actor is the already-resolved caller of an operation.
type Actor struct {
	UserID string
	Name   string
	TaxID  string
	Admin  bool
}

type actorKey struct{}

// WithActor stores the actor on the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
