package shared

import "context"

// Actor is the authenticated principal acting on a tenant. Identity is
// established upstream; this core never verifies credentials.
type Actor struct {
	ID       string
	Role     string
	TenantID string
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(actorContextKey{}).(*Actor)
	return actor
}
