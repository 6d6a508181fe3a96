package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegistered           ActivityEventType = "auth.register"
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventPasswordChanged      ActivityEventType = "auth.password.changed"
	ActivityEventProfileUpdated       ActivityEventType = "auth.profile.updated"
	ActivityEventAdminCreated         ActivityEventType = "admin.bootstrap.created"
	ActivityEventAdminRoleCorrected   ActivityEventType = "admin.bootstrap.role_corrected"
	ActivityEventAdminProvisioned     ActivityEventType = "admin.provisioned"
	ActivityEventAccountStatusChanged ActivityEventType = "user.status.changed"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string
	Type string
}

const (
	ActorTypeUser    = "user"
	ActorTypeSystem  = "system"
	ActorTypeUnknown = "unknown"
)

// SystemActor is used for actions the service takes on its own, like bootstrap
var SystemActor = ActorRef{ID: "system", Type: ActorTypeSystem}

// ActorFromClaims builds an actor reference out of verified token claims
func ActorFromClaims(claims AuthClaims) ActorRef {
	if claims == nil {
		return ActorRef{}
	}
	return ActorRef{ID: claims.UserID(), Type: ActorTypeUser}
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// emitActivity records event on sink and logs, never fails the caller
func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, now func() time.Time, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now()
	}
	if event.Actor.Type == "" {
		event.Actor = SystemActor
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if err := sink.Record(ctx, event); err != nil && logger != nil {
		logger.Warn("activity sink record failed", "event", event.EventType, "error", err)
	}
}
