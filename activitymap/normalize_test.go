package activitymap_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/es-parfumerie/go-auth"
	"github.com/es-parfumerie/go-auth/activitymap"
)

func TestNormalizeStatusChange(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventAccountStatusChanged,
		Actor:     auth.ActorRef{ID: "admin-42", Type: auth.ActorTypeUser},
		UserID:    "user-100",
		Metadata: map[string]any{
			"is_active": false,
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "admin-42" {
		t.Fatalf("expected actor_id admin-42, got %q", out.ActorID)
	}
	if out.Verb != string(auth.ActivityEventAccountStatusChanged) {
		t.Fatalf("expected verb %q, got %q", auth.ActivityEventAccountStatusChanged, out.Verb)
	}
	if out.ObjectType != "account" {
		t.Fatalf("expected object_type account, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-100" {
		t.Fatalf("expected object_id user-100, got %q", out.ObjectID)
	}
	if out.Channel != "auth" {
		t.Fatalf("expected channel auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata[activitymap.MetadataKeyActorType] != auth.ActorTypeUser {
		t.Fatalf("expected actor_type user, got %#v", out.Metadata[activitymap.MetadataKeyActorType])
	}
	if out.Metadata[activitymap.MetadataKeyFromStatus] != activitymap.StatusActive {
		t.Fatalf("expected from_status active, got %#v", out.Metadata[activitymap.MetadataKeyFromStatus])
	}
	if out.Metadata[activitymap.MetadataKeyToStatus] != activitymap.StatusDisabled {
		t.Fatalf("expected to_status disabled, got %#v", out.Metadata[activitymap.MetadataKeyToStatus])
	}

	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeMasksLoginFailureEmail(t *testing.T) {
	t.Parallel()

	event := auth.ActivityEvent{
		EventType: auth.ActivityEventLoginFailure,
		Actor:     auth.ActorRef{Type: auth.ActorTypeUnknown},
		Metadata: map[string]any{
			"email": "jane@example.com",
			"error": "invalid credentials",
		},
	}

	out := activitymap.Normalize(event)
	if out.Metadata["email"] != "j***@example.com" {
		t.Fatalf("expected masked email, got %#v", out.Metadata["email"])
	}
	if out.ActorID != "system" {
		t.Fatalf("expected fallback actor system, got %q", out.ActorID)
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set when input is zero")
	}

	raw := activitymap.Normalize(event, activitymap.WithRawEmails(), activitymap.WithChannel("security"))
	if raw.Metadata["email"] != "jane@example.com" {
		t.Fatalf("expected raw email, got %#v", raw.Metadata["email"])
	}
	if raw.Channel != "security" {
		t.Fatalf("expected channel security, got %q", raw.Channel)
	}
}

func TestMaskEmail(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"admin@esparfumerie.com": "a***@esparfumerie.com",
		"  x@y.fr ":              "x***@y.fr",
		"not-an-email":           "***",
		"@nolocal.com":           "***",
	}

	for in, expect := range tests {
		if got := activitymap.MaskEmail(in); got != expect {
			t.Fatalf("MaskEmail(%q) = %q, expected %q", in, got, expect)
		}
	}
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  auth.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses actor id when present",
			event:  auth.ActivityEvent{Actor: auth.ActorRef{ID: "actor-1"}, UserID: "user-1"},
			expect: "actor-1",
		},
		{
			name:   "uses user id when actor id missing",
			event:  auth.ActivityEvent{Actor: auth.ActorRef{ID: ""}, UserID: "user-2"},
			expect: "user-2",
		},
		{
			name:   "uses default fallback when actor and user missing",
			event:  auth.ActivityEvent{},
			expect: "system",
		},
		{
			name:   "uses configured fallback when actor and user missing",
			event:  auth.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("bootstrap")},
			expect: "bootstrap",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := activitymap.Normalize(tc.event, tc.opts...)
			if out.ActorID != tc.expect {
				t.Fatalf("expected actor_id %q, got %q", tc.expect, out.ActorID)
			}
		})
	}
}

type captureLogger struct {
	auth.NopLogger
	msg  string
	args []any
}

func (c *captureLogger) Info(msg string, args ...any) {
	c.msg = msg
	c.args = args
}

func TestSinkLogsNormalizedRecord(t *testing.T) {
	t.Parallel()

	logger := &captureLogger{}
	sink := activitymap.Sink(logger)

	err := sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventAdminCreated,
		Actor:     auth.SystemActor,
		UserID:    "admin-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if logger.msg != string(auth.ActivityEventAdminCreated) {
		t.Fatalf("expected message %q, got %q", auth.ActivityEventAdminCreated, logger.msg)
	}
	if len(logger.args) < 2 || logger.args[0] != "actor_id" || logger.args[1] != "system" {
		t.Fatalf("expected actor_id system first, got %#v", logger.args)
	}
}
