package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/media-admin/internal/core/domain"
	"github.com/arklim/media-admin/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType string, adminID int64, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		append([]zap.Field{
			zap.String("event_type", eventType),
			zap.Int64("admin_id", adminID),
			zap.Time("timestamp", at.UTC()),
		}, fields...)...,
	)
}

// PublishAdminLogin logs admin.login.* events.
func (p *StubPublisher) PublishAdminLogin(_ context.Context, event domain.AdminLoginEvent) error {
	p.logEvent(loginEventType(event), event.AdminID, event.OccurredAt,
		zap.Bool("mfa_required", event.MFARequired),
		zap.String("reason", event.Reason),
	)
	return nil
}

// PublishMFAEnrolled logs admin.mfa.enrolled events.
func (p *StubPublisher) PublishMFAEnrolled(_ context.Context, event domain.MFAEnrolledEvent) error {
	p.logEvent(EventAdminMFAEnrolled, event.AdminID, event.EnrolledAt, zap.Bool("reused", event.Reused))
	return nil
}

// PublishMFAEnabled logs admin.mfa.enabled events.
func (p *StubPublisher) PublishMFAEnabled(_ context.Context, event domain.MFAEnabledEvent) error {
	p.logEvent(EventAdminMFAEnabled, event.AdminID, event.EnabledAt)
	return nil
}

// PublishMFAVerificationFailed logs admin.mfa.verification_failed events.
func (p *StubPublisher) PublishMFAVerificationFailed(_ context.Context, event domain.MFAVerificationFailedEvent) error {
	p.logEvent(EventAdminMFAVerificationFailed, event.AdminID, event.FailedAt, zap.String("reason", event.Reason))
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
