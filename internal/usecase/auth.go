package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/media-admin/internal/core/domain"
	"github.com/arklim/media-admin/internal/core/port"
	"github.com/arklim/media-admin/internal/infra/config"
	"github.com/arklim/media-admin/internal/infra/logger"
	"github.com/arklim/media-admin/internal/infra/security"
	"github.com/arklim/media-admin/internal/repository"
)

const tracerName = "github.com/arklim/media-admin/internal/usecase"

const (
	replayScopeOTP       = "otp"
	replayScopeChallenge = "challenge"
)

var (
	// ErrInvalidCredentials indicates the username is unknown or the password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOTP indicates the submitted one-time code did not match.
	ErrInvalidOTP = errors.New("invalid otp")
	// ErrOTPReplayed indicates the code for this time-step was already used.
	ErrOTPReplayed = errors.New("otp already used")
	// ErrMFANotInitialized indicates the admin has no TOTP secret yet.
	ErrMFANotInitialized = errors.New("mfa not initialized")
	// ErrInvalidChallenge indicates the MFA challenge token is missing, invalid, used, or for another admin.
	ErrInvalidChallenge = errors.New("invalid mfa challenge")
	// ErrTooManyAttempts indicates the per-admin OTP failure limit is exhausted.
	ErrTooManyAttempts = errors.New("too many failed attempts")
	// ErrEnrollmentForbidden indicates the caller tried to enroll MFA for another admin.
	ErrEnrollmentForbidden = errors.New("mfa enrollment forbidden")
	// ErrAdminNotFound indicates no admin has the requested username.
	ErrAdminNotFound = errors.New("admin not found")
	// ErrUpstreamUnavailable indicates a backing store could not be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrTokenExpired indicates a well-signed access token whose expiry has passed.
	ErrTokenExpired = security.ErrTokenExpired
	// ErrTokenInvalid indicates a malformed, tampered or foreign access token.
	ErrTokenInvalid = security.ErrTokenInvalid
)

// AuthConfig carries the MFA policy knobs of the auth flows.
type AuthConfig struct {
	Issuer            string
	QRSize            int
	Skew              uint
	RequireChallenge  bool
	ReplayProtection  bool
	MaxFailedAttempts int
	FailureWindow     time.Duration
}

// AuthConfigFromSettings maps the mfa configuration section.
func AuthConfigFromSettings(cfg config.MFASettings) AuthConfig {
	return AuthConfig{
		Issuer:            cfg.Issuer,
		QRSize:            cfg.QRSize,
		Skew:              cfg.Skew,
		RequireChallenge:  cfg.RequireChallenge,
		ReplayProtection:  cfg.ReplayProtection,
		MaxFailedAttempts: cfg.MaxFailedAttempts,
		FailureWindow:     cfg.FailureWindow,
	}
}

// VerifyMFAInput is the second login step.
type VerifyMFAInput struct {
	Username       string
	Code           string
	ChallengeToken string
}

// AuthService drives the admin login state machine:
// Unauthenticated -> Authenticated, or Unauthenticated -> MFAChallenge -> Authenticated.
type AuthService struct {
	cfg       AuthConfig
	admins    port.AdminRepository
	hasher    port.PasswordHasher
	tokens    *security.TokenService
	totp      *security.TOTPEngine
	replay    port.ReplayStore
	failures  port.RateLimitStore
	events    port.EventPublisher
	metrics   port.AuthMetrics
	tracer    trace.Tracer
	now       func() time.Time
	dummyHash string
}

// NewAuthService constructs an AuthService. replay, failures, events and metrics may be nil,
// which disables the corresponding feature.
func NewAuthService(
	cfg AuthConfig,
	admins port.AdminRepository,
	hasher port.PasswordHasher,
	tokens *security.TokenService,
	totp *security.TOTPEngine,
	replay port.ReplayStore,
	failures port.RateLimitStore,
	events port.EventPublisher,
	metrics port.AuthMetrics,
) (*AuthService, error) {
	if admins == nil || hasher == nil || tokens == nil || totp == nil {
		return nil, errors.New("auth service: admins, hasher, tokens and totp are required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "Media Admin"
	}
	if events == nil {
		events = noopEvents{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	// Unknown usernames are verified against this hash so both login failures cost the same.
	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("auth service: prepare dummy hash: %w", err)
	}

	return &AuthService{
		cfg:       cfg,
		admins:    admins,
		hasher:    hasher,
		tokens:    tokens,
		totp:      totp,
		replay:    replay,
		failures:  failures,
		events:    events,
		metrics:   metrics,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		dummyHash: dummyHash,
	}, nil
}

// WithClock overrides the clock used for OTP checks and events. Intended for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// Login verifies the password and either issues an access token or, when MFA is enabled,
// a challenge that must be completed through VerifyMFA.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	admin, err := s.admins.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			s.loginFailed(ctx, 0, username, "invalid_credentials")
			return domain.AuthResult{}, ErrInvalidCredentials
		}
		s.metrics.LoginAttempt("error")
		return domain.AuthResult{}, s.fail(span, upstream("lookup admin", err))
	}

	span.SetAttributes(attribute.Int64("admin.id", admin.ID))

	if !s.hasher.Verify(password, admin.PasswordHash) {
		s.loginFailed(ctx, admin.ID, username, "invalid_credentials")
		return domain.AuthResult{}, ErrInvalidCredentials
	}
	if s.hasher.NeedsRehash(admin.PasswordHash) {
		logger.WithContext(ctx).Info("admin password hash uses outdated parameters",
			zap.Int64("admin_id", admin.ID),
			zap.String("email", logger.MaskEmail(admin.Email)),
		)
	}

	if admin.MFAEnabled {
		if !admin.HasMFASecret() {
			s.metrics.LoginAttempt("error")
			return domain.AuthResult{}, s.fail(span, fmt.Errorf("admin %d has mfa enabled without a secret", admin.ID))
		}

		challenge, _, err := s.tokens.IssueChallenge(admin.ID)
		if err != nil {
			s.metrics.LoginAttempt("error")
			return domain.AuthResult{}, s.fail(span, fmt.Errorf("issue mfa challenge: %w", err))
		}

		s.metrics.LoginAttempt("mfa_required")
		s.publish(ctx, "admin login", s.events.PublishAdminLogin(ctx, domain.AdminLoginEvent{
			EventID:     uuid.NewString(),
			AdminID:     admin.ID,
			Username:    admin.Username,
			Succeeded:   true,
			MFARequired: true,
			OccurredAt:  s.now().UTC(),
		}))

		return domain.AuthResult{
			State:          domain.AuthStateMFAChallenge,
			AdminID:        admin.ID,
			Username:       admin.Username,
			ChallengeToken: challenge,
		}, nil
	}

	token, expiresAt, err := s.tokens.Issue(admin.ID, string(admin.Role), 0)
	if err != nil {
		s.metrics.LoginAttempt("error")
		return domain.AuthResult{}, s.fail(span, fmt.Errorf("issue access token: %w", err))
	}

	s.metrics.LoginAttempt("success")
	s.publish(ctx, "admin login", s.events.PublishAdminLogin(ctx, domain.AdminLoginEvent{
		EventID:    uuid.NewString(),
		AdminID:    admin.ID,
		Username:   admin.Username,
		Succeeded:  true,
		OccurredAt: s.now().UTC(),
	}))

	return domain.AuthResult{
		State:       domain.AuthStateAuthenticated,
		AdminID:     admin.ID,
		Username:    admin.Username,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// EnrollMFA returns the admin's TOTP enrollment material, generating and storing a secret on
// first use. Repeated calls return the same secret. requesterID is the authenticated admin
// making the call; only that admin's own enrollment can be read or created.
func (s *AuthService) EnrollMFA(ctx context.Context, requesterID int64, username string) (domain.MFAEnrollment, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.EnrollMFA")
	defer span.End()

	if requesterID <= 0 {
		return domain.MFAEnrollment{}, ErrEnrollmentForbidden
	}

	admin, err := s.admins.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.MFAEnrollment{}, ErrAdminNotFound
		}
		return domain.MFAEnrollment{}, s.fail(span, upstream("lookup admin", err))
	}

	span.SetAttributes(attribute.Int64("admin.id", admin.ID))

	if admin.ID != requesterID {
		logger.WithContext(ctx).Warn("mfa enrollment for another admin rejected",
			zap.Int64("requester_id", requesterID),
			zap.Int64("admin_id", admin.ID),
		)
		return domain.MFAEnrollment{}, ErrEnrollmentForbidden
	}

	reused := admin.HasMFASecret()
	if !reused {
		admin, reused, err = s.storeNewSecret(ctx, admin)
		if err != nil {
			return domain.MFAEnrollment{}, s.fail(span, err)
		}
	}
	secret := *admin.MFASecret

	key, err := s.totp.ProvisioningKey(secret, admin.Username, s.cfg.Issuer)
	if err != nil {
		return domain.MFAEnrollment{}, s.fail(span, fmt.Errorf("build provisioning key: %w", err))
	}

	qr, err := security.RenderQRCode(key, s.cfg.QRSize)
	if err != nil {
		return domain.MFAEnrollment{}, s.fail(span, err)
	}

	s.metrics.MFAEnrolled(reused)
	s.publish(ctx, "mfa enrolled", s.events.PublishMFAEnrolled(ctx, domain.MFAEnrolledEvent{
		EventID:    uuid.NewString(),
		AdminID:    admin.ID,
		Username:   admin.Username,
		Reused:     reused,
		EnrolledAt: s.now().UTC(),
	}))

	return domain.MFAEnrollment{
		Username:        admin.Username,
		Secret:          secret,
		ProvisioningURI: key.URL(),
		QRCode:          qr,
		AlreadyEnabled:  admin.MFAEnabled,
	}, nil
}

// storeNewSecret generates a secret and stores it unless a concurrent enrollment got there
// first, in which case the stored secret wins and reused is true.
func (s *AuthService) storeNewSecret(ctx context.Context, admin *domain.AdminIdentity) (*domain.AdminIdentity, bool, error) {
	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return nil, false, fmt.Errorf("generate mfa secret: %w", err)
	}

	err = s.admins.UpdateMFASecret(ctx, admin.Username, secret)
	switch {
	case err == nil:
		updated := *admin
		updated.MFASecret = &secret
		updated.MFAEnabled = false
		return &updated, false, nil
	case errors.Is(err, repository.ErrConflict):
		winner, err := s.admins.FindByUsername(ctx, admin.Username)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, false, ErrAdminNotFound
			}
			return nil, false, upstream("reload admin after enrollment race", err)
		}
		if !winner.HasMFASecret() {
			return nil, false, ErrAdminNotFound
		}
		return winner, true, nil
	default:
		return nil, false, upstream("store mfa secret", err)
	}
}

// VerifyMFA checks a TOTP code. The first successful verification completes enrollment by
// enabling MFA. Success always yields an access token whose subject is the admin id.
func (s *AuthService) VerifyMFA(ctx context.Context, in VerifyMFAInput) (domain.AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.VerifyMFA")
	defer span.End()

	admin, err := s.admins.FindByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.verificationFailed(ctx, 0, in.Username, "invalid_otp")
			return domain.AuthResult{}, ErrInvalidOTP
		}
		s.metrics.MFAVerificationAttempt("error")
		return domain.AuthResult{}, s.fail(span, upstream("lookup admin", err))
	}

	span.SetAttributes(attribute.Int64("admin.id", admin.ID))

	if !admin.HasMFASecret() {
		s.metrics.MFAVerificationAttempt("not_initialized")
		return domain.AuthResult{}, ErrMFANotInitialized
	}

	now := s.now()
	failureKey := "otp:" + strconv.FormatInt(admin.ID, 10)

	if err := s.checkFailureBudget(ctx, failureKey, now); err != nil {
		if errors.Is(err, ErrTooManyAttempts) {
			s.verificationFailed(ctx, admin.ID, admin.Username, "too_many_attempts")
			return domain.AuthResult{}, err
		}
		s.metrics.MFAVerificationAttempt("error")
		return domain.AuthResult{}, s.fail(span, err)
	}

	var challenge *security.AccessClaims
	if s.cfg.RequireChallenge && admin.MFAEnabled {
		challenge, err = s.validateChallenge(in.ChallengeToken, admin.ID)
		if err != nil {
			s.verificationFailed(ctx, admin.ID, admin.Username, "invalid_challenge")
			return domain.AuthResult{}, err
		}
	}

	ok, counter := s.totp.Verify(*admin.MFASecret, in.Code, now, s.cfg.Skew)
	if !ok {
		if err := s.recordFailure(ctx, failureKey, now); err != nil {
			return domain.AuthResult{}, s.fail(span, err)
		}
		s.verificationFailed(ctx, admin.ID, admin.Username, "invalid_otp")
		return domain.AuthResult{}, ErrInvalidOTP
	}

	if s.cfg.ReplayProtection && s.replay != nil {
		first, err := s.replay.MarkUsed(ctx, replayScopeOTP, fmt.Sprintf("%d:%d", admin.ID, counter), s.otpReplayTTL())
		if err != nil {
			s.metrics.MFAVerificationAttempt("error")
			return domain.AuthResult{}, s.fail(span, upstream("mark otp used", err))
		}
		if !first {
			if err := s.recordFailure(ctx, failureKey, now); err != nil {
				return domain.AuthResult{}, s.fail(span, err)
			}
			s.verificationFailed(ctx, admin.ID, admin.Username, "replayed")
			return domain.AuthResult{}, ErrOTPReplayed
		}
	}

	if challenge != nil {
		if err := s.consumeChallenge(ctx, challenge, now); err != nil {
			if errors.Is(err, ErrInvalidChallenge) {
				s.verificationFailed(ctx, admin.ID, admin.Username, "invalid_challenge")
				return domain.AuthResult{}, err
			}
			s.metrics.MFAVerificationAttempt("error")
			return domain.AuthResult{}, s.fail(span, err)
		}
	}

	if !admin.MFAEnabled {
		if err := s.admins.SetMFAEnabled(ctx, admin.Username, true); err != nil {
			s.metrics.MFAVerificationAttempt("error")
			return domain.AuthResult{}, s.fail(span, upstream("enable mfa", err))
		}
		s.publish(ctx, "mfa enabled", s.events.PublishMFAEnabled(ctx, domain.MFAEnabledEvent{
			EventID:   uuid.NewString(),
			AdminID:   admin.ID,
			Username:  admin.Username,
			EnabledAt: now.UTC(),
		}))
	}

	if s.failures != nil && s.cfg.MaxFailedAttempts > 0 {
		if err := s.failures.Reset(ctx, failureKey); err != nil {
			logger.WithContext(ctx).Warn("reset otp failure counter", zap.Int64("admin_id", admin.ID), zap.Error(err))
		}
	}

	token, expiresAt, err := s.tokens.Issue(admin.ID, string(admin.Role), 0)
	if err != nil {
		s.metrics.MFAVerificationAttempt("error")
		return domain.AuthResult{}, s.fail(span, fmt.Errorf("issue access token: %w", err))
	}

	s.metrics.MFAVerificationAttempt("success")

	return domain.AuthResult{
		State:       domain.AuthStateAuthenticated,
		AdminID:     admin.ID,
		Username:    admin.Username,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// Authorize validates a bearer access token.
func (s *AuthService) Authorize(_ context.Context, token string) (*security.AccessClaims, error) {
	return s.tokens.Validate(token)
}

// AccessTTL returns the lifetime of issued access tokens.
func (s *AuthService) AccessTTL() time.Duration {
	return s.tokens.AccessTTL()
}

func (s *AuthService) validateChallenge(raw string, adminID int64) (*security.AccessClaims, error) {
	claims, err := s.tokens.ValidateChallenge(raw)
	if err != nil {
		return nil, ErrInvalidChallenge
	}
	subject, err := claims.AdminID()
	if err != nil || subject != adminID {
		return nil, ErrInvalidChallenge
	}
	return claims, nil
}

func (s *AuthService) consumeChallenge(ctx context.Context, claims *security.AccessClaims, now time.Time) error {
	if s.replay == nil {
		return nil
	}

	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Time.Sub(now); remaining > 0 {
			ttl = remaining + time.Second
		}
	}

	first, err := s.replay.MarkUsed(ctx, replayScopeChallenge, claims.ID, ttl)
	if err != nil {
		return upstream("consume mfa challenge", err)
	}
	if !first {
		return ErrInvalidChallenge
	}
	return nil
}

func (s *AuthService) checkFailureBudget(ctx context.Context, key string, now time.Time) error {
	if s.failures == nil || s.cfg.MaxFailedAttempts <= 0 {
		return nil
	}

	if err := s.failures.TrimWindow(ctx, key, s.cfg.FailureWindow, now); err != nil {
		return upstream("trim otp failures", err)
	}
	count, err := s.failures.CountAttempts(ctx, key, s.cfg.FailureWindow, now)
	if err != nil {
		return upstream("count otp failures", err)
	}
	if count >= s.cfg.MaxFailedAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

func (s *AuthService) recordFailure(ctx context.Context, key string, at time.Time) error {
	if s.failures == nil || s.cfg.MaxFailedAttempts <= 0 {
		return nil
	}
	if err := s.failures.RecordAttempt(ctx, key, at); err != nil {
		s.metrics.MFAVerificationAttempt("error")
		return upstream("record otp failure", err)
	}
	return nil
}

// otpReplayTTL covers every step in which a code can still be accepted.
func (s *AuthService) otpReplayTTL() time.Duration {
	return s.totp.Period() * time.Duration(2*s.cfg.Skew+2)
}

func (s *AuthService) loginFailed(ctx context.Context, adminID int64, username, reason string) {
	logger.WithContext(ctx).Warn("admin login rejected",
		zap.String("username", logger.MaskString(username)),
		zap.String("reason", reason),
	)
	s.metrics.LoginAttempt(reason)
	s.publish(ctx, "admin login", s.events.PublishAdminLogin(ctx, domain.AdminLoginEvent{
		EventID:    uuid.NewString(),
		AdminID:    adminID,
		Username:   username,
		Reason:     reason,
		OccurredAt: s.now().UTC(),
	}))
}

func (s *AuthService) verificationFailed(ctx context.Context, adminID int64, username, reason string) {
	s.metrics.MFAVerificationAttempt(reason)
	s.publish(ctx, "mfa verification failed", s.events.PublishMFAVerificationFailed(ctx, domain.MFAVerificationFailedEvent{
		EventID:  uuid.NewString(),
		AdminID:  adminID,
		Username: username,
		Reason:   reason,
		FailedAt: s.now().UTC(),
	}))
}

func (s *AuthService) publish(ctx context.Context, event string, err error) {
	if err != nil {
		logger.WithContext(ctx).Warn("publish audit event", zap.String("event", event), zap.Error(err))
	}
}

func (s *AuthService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func upstream(op string, err error) error {
	if errors.Is(err, repository.ErrUnavailable) {
		return fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
