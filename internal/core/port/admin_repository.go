package port

import (
	"context"

	"github.com/arklim/media-admin/internal/core/domain"
)

// AdminRepository exposes the admin directory operations consumed by the auth flows.
type AdminRepository interface {
	// FindByUsername returns repository.ErrNotFound when no admin has the exact username.
	FindByUsername(ctx context.Context, username string) (*domain.AdminIdentity, error)
	// UpdateMFASecret stores the secret only when none is set yet and returns
	// repository.ErrConflict otherwise.
	UpdateMFASecret(ctx context.Context, username, secret string) error
	SetMFAEnabled(ctx context.Context, username string, enabled bool) error
}
