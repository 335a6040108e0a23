package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "MEDIA_ADMIN"

	// EnvDevelopment relaxes secret validation for local runs.
	EnvDevelopment = "development"

	minJWTSecretLength = 32
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	MFA       MFASettings       `mapstructure:"mfa"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
}

type AppSettings struct {
	Name        string   `mapstructure:"name"`
	Env         string   `mapstructure:"env"`
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	Schema            string        `mapstructure:"schema"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection, TLS and key namespaces.
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// KafkaSettings configures the audit event producer. No brokers means events are only logged.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// RateLimitSettings configures per-IP windows for the credential endpoints.
type RateLimitSettings struct {
	WindowDuration       time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts     int           `mapstructure:"login_max_attempts"`
	MFAVerifyMaxAttempts int           `mapstructure:"mfa_verify_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type JWTSettings struct {
	Secret         string        `mapstructure:"secret"`
	Algorithm      string        `mapstructure:"algorithm"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	ChallengeTTL   time.Duration `mapstructure:"challenge_ttl"`
}

// MFASettings configures TOTP enrollment and the verification step.
type MFASettings struct {
	Issuer            string        `mapstructure:"issuer"`
	Period            time.Duration `mapstructure:"period"`
	Digits            int           `mapstructure:"digits"`
	Skew              uint          `mapstructure:"skew"`
	RequireChallenge  bool          `mapstructure:"require_challenge"`
	ReplayProtection  bool          `mapstructure:"replay_protection"`
	MaxFailedAttempts int           `mapstructure:"max_failed_attempts"`
	FailureWindow     time.Duration `mapstructure:"failure_window"`
	QRSize            int           `mapstructure:"qr_size"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// IsDevelopment reports whether the service runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.App.Env), EnvDevelopment)
}

// Validate rejects configurations the service cannot safely start with.
func (c *AppConfig) Validate() error {
	var errs []error

	secret := strings.TrimSpace(c.JWT.Secret)
	switch {
	case secret == "" && !c.IsDevelopment():
		errs = append(errs, errors.New("jwt.secret is required"))
	case len(secret) < minJWTSecretLength && !c.IsDevelopment():
		errs = append(errs, fmt.Errorf("jwt.secret must be at least %d characters", minJWTSecretLength))
	}

	switch strings.ToUpper(strings.TrimSpace(c.JWT.Algorithm)) {
	case "", "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("jwt.algorithm %q is not supported", c.JWT.Algorithm))
	}

	if c.JWT.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("jwt.access_token_ttl must be positive"))
	}
	if c.JWT.ChallengeTTL <= 0 {
		errs = append(errs, errors.New("jwt.challenge_ttl must be positive"))
	}

	if c.MFA.Digits != 6 && c.MFA.Digits != 8 {
		errs = append(errs, fmt.Errorf("mfa.digits must be 6 or 8, got %d", c.MFA.Digits))
	}
	if c.MFA.Period < time.Second {
		errs = append(errs, errors.New("mfa.period must be at least one second"))
	}
	if c.MFA.MaxFailedAttempts < 0 {
		errs = append(errs, errors.New("mfa.max_failed_attempts must not be negative"))
	}
	if c.MFA.MaxFailedAttempts > 0 && c.MFA.FailureWindow <= 0 {
		errs = append(errs, errors.New("mfa.failure_window must be positive when a failure limit is set"))
	}

	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port %d is out of range", c.App.Port))
	}

	return errors.Join(errs...)
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.cors_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.schema",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.key_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"jwt.secret",
		"jwt.algorithm",
		"jwt.issuer",
		"jwt.access_token_ttl",
		"jwt.challenge_ttl",
		"mfa.issuer",
		"mfa.period",
		"mfa.digits",
		"mfa.skew",
		"mfa.require_challenge",
		"mfa.replay_protection",
		"mfa.max_failed_attempts",
		"mfa.failure_window",
		"mfa.qr_size",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"rate_limit.mfa_verify_max_attempts",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "media-admin")
	v.SetDefault("app.env", EnvDevelopment)
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8000)
	v.SetDefault("app.cors_origins", []string{"http://localhost:5173"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "media")
	v.SetDefault("postgres.password", "media_password")
	v.SetDefault("postgres.database", "media")
	v.SetDefault("postgres.schema", "public")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "media_admin")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "media")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.issuer", "media-admin")
	v.SetDefault("jwt.access_token_ttl", "30m")
	v.SetDefault("jwt.challenge_ttl", "5m")

	v.SetDefault("mfa.issuer", "Media Admin")
	v.SetDefault("mfa.period", "30s")
	v.SetDefault("mfa.digits", 6)
	v.SetDefault("mfa.skew", 1)
	v.SetDefault("mfa.require_challenge", true)
	v.SetDefault("mfa.replay_protection", true)
	v.SetDefault("mfa.max_failed_attempts", 5)
	v.SetDefault("mfa.failure_window", "5m")
	v.SetDefault("mfa.qr_size", 256)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "media-admin")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 5)
	v.SetDefault("rate_limit.mfa_verify_max_attempts", 10)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
