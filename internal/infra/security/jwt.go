package security

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

var (
	// ErrTokenExpired indicates the token signature is valid but its expiry has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid indicates a malformed token, a signature mismatch, or an unexpected algorithm.
	ErrTokenInvalid = errors.New("token invalid")
)

const (
	defaultAccessTokenTTL    = 30 * time.Minute
	defaultChallengeTokenTTL = 5 * time.Minute
	defaultTokenIssuer       = "media-admin"

	accessTokenAudience    = "admin-api"
	challengeTokenAudience = "mfa-challenge"

	tokenTypeAccess    = "access"
	tokenTypeChallenge = "mfa_challenge"
)

// TokenConfig configures the HMAC token service.
type TokenConfig struct {
	Secret       []byte
	Algorithm    string
	Issuer       string
	AccessTTL    time.Duration
	ChallengeTTL time.Duration
}

// AccessClaims are carried by both access and MFA challenge tokens. The subject is
// always the decimal form of the admin's numeric id.
type AccessClaims struct {
	Role string `json:"role,omitempty"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// AdminID decodes the numeric admin identifier from the subject claim.
func (c *AccessClaims) AdminID() (int64, error) {
	if c == nil {
		return 0, ErrTokenInvalid
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrTokenInvalid
	}
	return id, nil
}

// TokenService issues and validates signed, expiring bearer tokens.
type TokenService struct {
	secret       []byte
	method       jwt.SigningMethod
	issuer       string
	accessTTL    time.Duration
	challengeTTL time.Duration
	now          func() time.Time
}

// NewTokenService constructs a TokenService. Only HMAC algorithms are accepted and the
// configured one is the only algorithm ever accepted during validation.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("jwt: signing secret is required")
	}

	alg := strings.ToUpper(strings.TrimSpace(cfg.Algorithm))
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("jwt: unsupported signing algorithm %q", cfg.Algorithm)
	}

	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultTokenIssuer
	}

	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTokenTTL
	}
	challengeTTL := cfg.ChallengeTTL
	if challengeTTL <= 0 {
		challengeTTL = defaultChallengeTokenTTL
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &TokenService{
		secret:       secret,
		method:       method,
		issuer:       issuer,
		accessTTL:    accessTTL,
		challengeTTL: challengeTTL,
		now:          time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// Algorithm returns the configured signing algorithm name.
func (s *TokenService) Algorithm() string {
	return s.method.Alg()
}

// AccessTTL returns the default access token lifetime.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// Issue signs an access token for subjectID. A non-positive ttl selects the configured default.
func (s *TokenService) Issue(subjectID int64, role string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = s.accessTTL
	}
	return s.sign(subjectID, role, tokenTypeAccess, accessTokenAudience, ttl)
}

// IssueChallenge signs a short-lived MFA challenge token for subjectID.
func (s *TokenService) IssueChallenge(subjectID int64) (string, time.Time, error) {
	return s.sign(subjectID, "", tokenTypeChallenge, challengeTokenAudience, s.challengeTTL)
}

// Validate verifies an access token and returns its claims.
func (s *TokenService) Validate(raw string) (*AccessClaims, error) {
	return s.parse(raw, accessTokenAudience, tokenTypeAccess)
}

// ValidateChallenge verifies an MFA challenge token and returns its claims.
func (s *TokenService) ValidateChallenge(raw string) (*AccessClaims, error) {
	return s.parse(raw, challengeTokenAudience, tokenTypeChallenge)
}

func (s *TokenService) sign(subjectID int64, role, tokenType, audience string, ttl time.Duration) (string, time.Time, error) {
	if subjectID <= 0 {
		return "", time.Time{}, fmt.Errorf("jwt: subject id must be positive")
	}

	now := s.now().UTC()
	expiresAt := now.Add(ttl)

	claims := AccessClaims{
		Role: role,
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, expiresAt, nil
}

func (s *TokenService) parse(raw, audience, tokenType string) (*AccessClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if parsed == nil || !parsed.Valid || claims.Type != tokenType {
		return nil, ErrTokenInvalid
	}
	if _, err := claims.AdminID(); err != nil {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
