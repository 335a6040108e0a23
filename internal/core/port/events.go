package port

import (
	"context"

	"github.com/arklim/media-admin/internal/core/domain"
)

// EventPublisher publishes audit events to the message bus.
type EventPublisher interface {
	PublishAdminLogin(ctx context.Context, event domain.AdminLoginEvent) error
	PublishMFAEnrolled(ctx context.Context, event domain.MFAEnrolledEvent) error
	PublishMFAEnabled(ctx context.Context, event domain.MFAEnabledEvent) error
	PublishMFAVerificationFailed(ctx context.Context, event domain.MFAVerificationFailedEvent) error
}
