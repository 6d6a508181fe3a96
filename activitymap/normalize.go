package activitymap

import (
	"context"
	"strings"
	"time"

	auth "github.com/es-parfumerie/go-auth"
)

const (
	// MetadataKeyActorType carries auth.ActorRef.Type
	MetadataKeyActorType = "actor_type"
	// MetadataKeyFromStatus and MetadataKeyToStatus describe activation toggles
	MetadataKeyFromStatus = "from_status"
	MetadataKeyToStatus   = "to_status"
)

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "account"
	defaultActorID    = "system"
)

// Record is the flat shape shipped to audit logs
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Fields flattens the record into key value pairs for auth.Logger
func (r Record) Fields() []any {
	fields := []any{
		"actor_id", r.ActorID,
		"object_type", r.ObjectType,
		"object_id", r.ObjectID,
		"channel", r.Channel,
		"occurred_at", r.OccurredAt.Format(time.RFC3339),
	}
	if len(r.Metadata) > 0 {
		fields = append(fields, "metadata", r.Metadata)
	}
	return fields
}

type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
	maskEmails    bool
}

// Normalize converts an auth.ActivityEvent into a Record
func Normalize(event auth.ActivityEvent, opts ...Option) Record {
	options := normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		maskEmails:    true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Record{
		ActorID: firstNonEmpty(
			strings.TrimSpace(event.Actor.ID),
			strings.TrimSpace(event.UserID),
			options.actorFallback,
		),
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event, options),
		OccurredAt: occurredAt,
	}
}

// WithChannel overrides the "auth" channel
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithActorFallback sets the actor id used when neither actor nor user is known
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithRawEmails keeps email addresses found in metadata as they are
func WithRawEmails() Option {
	return func(opts *normalizeOptions) {
		opts.maskEmails = false
	}
}

// Sink returns an ActivitySink writing normalized records to logger
func Sink(logger auth.Logger, opts ...Option) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		record := Normalize(event, opts...)
		logger.Info(record.Verb, record.Fields()...)
		return nil
	})
}

func normalizeMetadata(event auth.ActivityEvent, options normalizeOptions) map[string]any {
	metadata := make(map[string]any, len(event.Metadata)+1)
	for key, value := range event.Metadata {
		metadata[key] = value
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if _, exists := metadata[MetadataKeyActorType]; !exists {
			metadata[MetadataKeyActorType] = actorType
		}
	}

	if event.EventType == auth.ActivityEventAccountStatusChanged {
		if active, ok := metadata["is_active"].(bool); ok {
			metadata[MetadataKeyFromStatus], metadata[MetadataKeyToStatus] = StatusActive, StatusDisabled
			if active {
				metadata[MetadataKeyFromStatus], metadata[MetadataKeyToStatus] = StatusDisabled, StatusActive
			}
		}
	}

	if options.maskEmails {
		if email, ok := metadata["email"].(string); ok {
			metadata["email"] = MaskEmail(email)
		}
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

// MaskEmail keeps the first letter of the local part and the domain
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
