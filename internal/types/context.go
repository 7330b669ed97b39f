package types

import (
	"context"
)

// ActorRole identifies the kind of authenticated entity making a request.
// The auth layer resolves the role before the core is invoked; core
// operations receive the actor explicitly and trust that authorization has
// already happened.
type ActorRole string

const (
	RoleVendor ActorRole = "vendor"
	RoleAdmin  ActorRole = "admin"
	RoleSystem ActorRole = "system"
)

// Actor represents the authenticated entity performing an operation.
// Every core call that mutates state takes the acting identity explicitly;
// nothing in the core reads ambient request state.
type Actor struct {
	ID   string
	Role ActorRole

	// VendorID is set for vendor actors; admin and system actors leave it
	// empty.
	VendorID string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Context Keys
type contextKey string

const (
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"
	loggerKey    contextKey = "logger"
)

// WithActor stores the Actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the Actor from the context.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithLogger stores a Logger in the context.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves the Logger from the context.
// The returned logger is expected to have been pre-enriched with
// request-scoped fields (RequestID, ActorID) by middleware before storage.
// Returns nil if no logger has been set.
func LoggerFromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return nil
}
