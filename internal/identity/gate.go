// Package identity answers "who is calling". The lifecycle treats a missing
// identity as an unauthenticated caller.
package identity

import (
	"context"

	"slotbook/pkg/model"
)

type Gate interface {
	CurrentIdentity(ctx context.Context) (*model.Identity, bool)
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id *model.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (*model.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*model.Identity)
	return id, ok && id != nil
}

// ContextGate reads the identity placed on the request context by the
// authentication middleware.
type ContextGate struct{}

func (ContextGate) CurrentIdentity(ctx context.Context) (*model.Identity, bool) {
	return FromContext(ctx)
}
