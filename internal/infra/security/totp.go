package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	defaultTOTPPeriod     = 30 * time.Second
	defaultTOTPDigits     = 6
	defaultTOTPSkew       = 1
	defaultTOTPSecretSize = 20
)

// ErrMissingSecret is returned when secret is empty.
var ErrMissingSecret = errors.New("totp secret is required")

var b32NoPadding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTPConfig configures the time-step, code length and drift window for one-time codes.
type TOTPConfig struct {
	Period     time.Duration
	Digits     int
	Skew       uint
	SecretSize int
}

// DefaultTOTPConfig returns RFC 6238 defaults: 30 second steps, 6 digits, one step of drift.
func DefaultTOTPConfig() TOTPConfig {
	return TOTPConfig{
		Period:     defaultTOTPPeriod,
		Digits:     defaultTOTPDigits,
		Skew:       defaultTOTPSkew,
		SecretSize: defaultTOTPSecretSize,
	}
}

// TOTPEngine generates and verifies time-based one-time passwords (RFC 6238, SHA-1).
type TOTPEngine struct {
	period     uint
	digits     otp.Digits
	skew       uint
	secretSize int
}

// NewTOTPEngine validates cfg and builds an engine. Zero values fall back to defaults.
func NewTOTPEngine(cfg TOTPConfig) (*TOTPEngine, error) {
	defaults := DefaultTOTPConfig()

	period := cfg.Period
	if period <= 0 {
		period = defaults.Period
	}
	if period < time.Second || period%time.Second != 0 {
		return nil, fmt.Errorf("totp: period must be a whole number of seconds, got %s", period)
	}

	digits := cfg.Digits
	if digits == 0 {
		digits = defaults.Digits
	}
	if digits != 6 && digits != 8 {
		return nil, fmt.Errorf("totp: digits must be 6 or 8, got %d", digits)
	}

	secretSize := cfg.SecretSize
	if secretSize == 0 {
		secretSize = defaults.SecretSize
	}
	if secretSize < 10 {
		return nil, fmt.Errorf("totp: secret size must be at least 10 bytes, got %d", secretSize)
	}

	return &TOTPEngine{
		period:     uint(period / time.Second),
		digits:     otp.Digits(digits),
		skew:       cfg.Skew,
		secretSize: secretSize,
	}, nil
}

// Period returns the length of one time-step.
func (e *TOTPEngine) Period() time.Duration {
	return time.Duration(e.period) * time.Second
}

// Skew returns the default number of adjacent steps accepted on each side.
func (e *TOTPEngine) Skew() uint {
	return e.skew
}

// GenerateSecret returns a cryptographically random secret encoded as unpadded base32.
func (e *TOTPEngine) GenerateSecret() (string, error) {
	buf := make([]byte, e.secretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("totp: generate secret: %w", err)
	}
	return b32NoPadding.EncodeToString(buf), nil
}

// ProvisioningKey builds the otpauth key for secret so that it can be rendered or shared.
func (e *TOTPEngine) ProvisioningKey(secret, account, issuer string) (*otp.Key, error) {
	raw, err := decodeSecret(secret)
	if err != nil {
		return nil, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      e.period,
		Secret:      raw,
		Digits:      e.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("totp: build provisioning key: %w", err)
	}
	return key, nil
}

// ProvisioningURI returns the otpauth:// URI used for QR-code enrollment.
func (e *TOTPEngine) ProvisioningURI(secret, account, issuer string) (string, error) {
	key, err := e.ProvisioningKey(secret, account, issuer)
	if err != nil {
		return "", err
	}
	return key.URL(), nil
}

// Code returns the one-time code for secret at t.
func (e *TOTPEngine) Code(secret string, t time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", ErrMissingSecret
	}
	code, err := totp.GenerateCodeCustom(secret, t, e.opts())
	if err != nil {
		return "", fmt.Errorf("totp: generate code: %w", err)
	}
	return code, nil
}

// Verify checks code against the steps t-window..t+window and returns the matched
// step counter. Malformed input is reported as a mismatch.
func (e *TOTPEngine) Verify(secret, code string, t time.Time, window uint) (bool, uint64) {
	code = strings.TrimSpace(code)
	if strings.TrimSpace(secret) == "" || len(code) != e.digits.Length() {
		return false, 0
	}

	counter := e.Counter(t)
	matched := false
	var matchedCounter uint64

	for offset := -int64(window); offset <= int64(window); offset++ {
		candidateCounter := int64(counter) + offset
		if candidateCounter < 0 {
			continue
		}
		at := t.Add(time.Duration(offset) * e.Period())
		expected, err := totp.GenerateCodeCustom(secret, at, e.opts())
		if err != nil {
			return false, 0
		}
		// No early return: all offsets are computed.
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 && !matched {
			matched = true
			matchedCounter = uint64(candidateCounter)
		}
	}

	return matched, matchedCounter
}

// Counter returns the time-step index containing t.
func (e *TOTPEngine) Counter(t time.Time) uint64 {
	return uint64(t.Unix()) / uint64(e.period)
}

func (e *TOTPEngine) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    e.period,
		Skew:      0,
		Digits:    e.digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func decodeSecret(secret string) ([]byte, error) {
	secret = strings.ToUpper(strings.TrimSpace(secret))
	if secret == "" {
		return nil, ErrMissingSecret
	}
	raw, err := b32NoPadding.DecodeString(strings.TrimRight(secret, "="))
	if err != nil {
		return nil, fmt.Errorf("totp: decode secret: %w", err)
	}
	return raw, nil
}
