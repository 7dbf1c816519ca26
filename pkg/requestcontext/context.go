// Package requestcontext holds request-scoped values set by HTTP middleware
// and read by services. It has no net/http dependency.
//
//	registrant := requestcontext.Registrant(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	registrantKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Registrant returns the authenticated registrant (the app or browser that
// submitted the registration), or "" when unauthenticated.
func Registrant(ctx context.Context) string {
	if v, ok := ctx.Value(registrantKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRegistrant injects the authenticated registrant.
func WithRegistrant(ctx context.Context, registrant string) context.Context {
	return context.WithValue(ctx, registrantKey{}, registrant)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() outside HTTP requests (runner passes, CLI).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
