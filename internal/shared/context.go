package shared

import "context"

// Actor is the authenticated caller as resolved by the identity
// collaborator: an id plus a role string the Permission Gate understands.
type Actor struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. The zero Actor means
// the request was not authenticated.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
