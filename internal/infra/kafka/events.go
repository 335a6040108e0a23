package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/media-admin/internal/core/domain"
	"github.com/arklim/media-admin/internal/core/port"
	"github.com/arklim/media-admin/internal/infra/config"
)

const schemaVersion = "1.0"

// Audit event types. The topic is the type with the configured prefix.
const (
	EventAdminLoginSucceeded        = "admin.login.succeeded"
	EventAdminLoginFailed           = "admin.login.failed"
	EventAdminMFAEnrolled           = "admin.mfa.enrolled"
	EventAdminMFAEnabled            = "admin.mfa.enabled"
	EventAdminMFAVerificationFailed = "admin.mfa.verification_failed"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	AdminID   string           `json:"admin_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType string, adminID int64, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	var key string
	if adminID > 0 {
		key = strconv.FormatInt(adminID, 10)
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		AdminID:   key,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(body),
	}
	if key != "" {
		message.Key = sarama.StringEncoder(key)
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAdminLogin publishes admin.login.succeeded or admin.login.failed events.
func (p *EventPublisher) PublishAdminLogin(ctx context.Context, event domain.AdminLoginEvent) error {
	payload := struct {
		AdminID     int64     `json:"admin_id,omitempty"`
		Username    string    `json:"username"`
		MFARequired bool      `json:"mfa_required"`
		Reason      string    `json:"reason,omitempty"`
		OccurredAt  time.Time `json:"occurred_at"`
	}{
		AdminID:     event.AdminID,
		Username:    event.Username,
		MFARequired: event.MFARequired,
		Reason:      event.Reason,
		OccurredAt:  event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, loginEventType(event), event.AdminID, event.OccurredAt, payload)
}

// PublishMFAEnrolled publishes admin.mfa.enrolled events.
func (p *EventPublisher) PublishMFAEnrolled(ctx context.Context, event domain.MFAEnrolledEvent) error {
	payload := struct {
		AdminID    int64     `json:"admin_id"`
		Username   string    `json:"username"`
		Reused     bool      `json:"reused"`
		EnrolledAt time.Time `json:"enrolled_at"`
	}{
		AdminID:    event.AdminID,
		Username:   event.Username,
		Reused:     event.Reused,
		EnrolledAt: event.EnrolledAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventAdminMFAEnrolled, event.AdminID, event.EnrolledAt, payload)
}

// PublishMFAEnabled publishes admin.mfa.enabled events.
func (p *EventPublisher) PublishMFAEnabled(ctx context.Context, event domain.MFAEnabledEvent) error {
	payload := struct {
		AdminID   int64     `json:"admin_id"`
		Username  string    `json:"username"`
		EnabledAt time.Time `json:"enabled_at"`
	}{
		AdminID:   event.AdminID,
		Username:  event.Username,
		EnabledAt: event.EnabledAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventAdminMFAEnabled, event.AdminID, event.EnabledAt, payload)
}

// PublishMFAVerificationFailed publishes admin.mfa.verification_failed events.
func (p *EventPublisher) PublishMFAVerificationFailed(ctx context.Context, event domain.MFAVerificationFailedEvent) error {
	payload := struct {
		AdminID  int64     `json:"admin_id,omitempty"`
		Username string    `json:"username"`
		Reason   string    `json:"reason"`
		FailedAt time.Time `json:"failed_at"`
	}{
		AdminID:  event.AdminID,
		Username: event.Username,
		Reason:   event.Reason,
		FailedAt: event.FailedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventAdminMFAVerificationFailed, event.AdminID, event.FailedAt, payload)
}

func loginEventType(event domain.AdminLoginEvent) string {
	if event.Succeeded {
		return EventAdminLoginSucceeded
	}
	return EventAdminLoginFailed
}

var _ port.EventPublisher = (*EventPublisher)(nil)
