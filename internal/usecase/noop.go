package usecase

import (
	"context"

	"github.com/arklim/media-admin/internal/core/domain"
)

type noopEvents struct{}

func (noopEvents) PublishAdminLogin(context.Context, domain.AdminLoginEvent) error { return nil }

func (noopEvents) PublishMFAEnrolled(context.Context, domain.MFAEnrolledEvent) error { return nil }

func (noopEvents) PublishMFAEnabled(context.Context, domain.MFAEnabledEvent) error { return nil }

func (noopEvents) PublishMFAVerificationFailed(context.Context, domain.MFAVerificationFailedEvent) error {
	return nil
}

type noopMetrics struct{}

func (noopMetrics) LoginAttempt(string) {}

func (noopMetrics) MFAVerificationAttempt(string) {}

func (noopMetrics) MFAEnrolled(bool) {}
