// Package scope carries the caller's owner identity through
// context.Context. The identity layer (an auth proxy, the HTTP adapter)
// attaches it with WithOwner; the engine reads it with Owner when an
// operation does not name an owner explicitly.
package scope

import "context"

type ownerKey struct{}

// WithOwner returns a copy of ctx carrying ownerID. An empty ownerID
// returns ctx unchanged.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	if ownerID == "" {
		return ctx
	}
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// Owner returns the owner attached to ctx, if any.
func Owner(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ownerKey{}).(string)
	return v, ok && v != ""
}

// OwnerOr returns the owner attached to ctx, or fallback when ctx carries
// none.
func OwnerOr(ctx context.Context, fallback string) string {
	if v, ok := Owner(ctx); ok {
		return v
	}
	return fallback
}
