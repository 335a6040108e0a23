package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arklim/media-admin/internal/core/domain"
	"github.com/arklim/media-admin/internal/core/port"
	"github.com/arklim/media-admin/internal/repository"
)

const adminUsersTable = "admin_users"

var adminColumns = []string{
	"id",
	"username",
	"email",
	"password_hash",
	"mfa_secret",
	"mfa_enabled",
	"role",
	"created_at",
}

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pinger interface {
	Ping(ctx context.Context) error
}

// AdminRepository implements port.AdminRepository on the admin_users table.
type AdminRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAdminRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAdminRepository(exec pgExecutor) *AdminRepository {
	return &AdminRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindByUsername looks an admin up by exact, case-sensitive username.
func (r *AdminRepository) FindByUsername(ctx context.Context, username string) (*domain.AdminIdentity, error) {
	stmt, args, err := r.builder.
		Select(adminColumns...).
		From(adminUsersTable).
		Where(squirrel.Eq{"username": username}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select admin sql: %w", err)
	}

	var (
		admin     domain.AdminIdentity
		email     sql.NullString
		secret    sql.NullString
		role      sql.NullString
		createdAt sql.NullTime
	)

	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&admin.ID,
		&admin.Username,
		&email,
		&admin.PasswordHash,
		&secret,
		&admin.MFAEnabled,
		&role,
		&createdAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, wrapQueryError("select admin", err)
	}

	if email.Valid {
		admin.Email = email.String
	}
	if secret.Valid && secret.String != "" {
		value := secret.String
		admin.MFASecret = &value
	}
	if createdAt.Valid {
		admin.CreatedAt = createdAt.Time.UTC()
	}

	parsedRole, err := domain.ParseAdminRole(role.String)
	if err != nil {
		return nil, fmt.Errorf("decode admin %d: %w", admin.ID, err)
	}
	admin.Role = parsedRole

	return &admin, nil
}

// UpdateMFASecret stores secret only if the admin has none yet. It returns
// repository.ErrConflict when a secret already exists or the admin is unknown.
func (r *AdminRepository) UpdateMFASecret(ctx context.Context, username, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return errors.New("mfa secret must not be empty")
	}

	stmt, args, err := r.builder.
		Update(adminUsersTable).
		Set("mfa_secret", secret).
		Set("mfa_enabled", false).
		Where(squirrel.Eq{"username": username}).
		Where(squirrel.Or{squirrel.Eq{"mfa_secret": nil}, squirrel.Eq{"mfa_secret": ""}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update mfa secret sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return wrapQueryError("update mfa secret", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}

	return nil
}

// SetMFAEnabled updates the MFA flag for username.
func (r *AdminRepository) SetMFAEnabled(ctx context.Context, username string, enabled bool) error {
	stmt, args, err := r.builder.
		Update(adminUsersTable).
		Set("mfa_enabled", enabled).
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update mfa enabled sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return wrapQueryError("update mfa enabled", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Ping reports whether the underlying pool can reach the database. Executors without
// a Ping method, such as transactions, are assumed healthy.
func (r *AdminRepository) Ping(ctx context.Context) error {
	p, ok := r.exec.(pinger)
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return wrapQueryError("ping", err)
	}
	return nil
}

// wrapQueryError tags connectivity failures with repository.ErrUnavailable so callers can
// tell an outage apart from a bad query.
func wrapQueryError(op string, err error) error {
	if isConnectivityError(err) {
		return fmt.Errorf("%w: %s: %w", repository.ErrUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConnectivityError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception, 57P covers server shutdown.
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P")
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded)
}

var _ port.AdminRepository = (*AdminRepository)(nil)
