package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/media-admin/internal/core/port"
	"github.com/arklim/media-admin/internal/infra/config"
	"github.com/arklim/media-admin/internal/infra/database"
	kafkainfra "github.com/arklim/media-admin/internal/infra/kafka"
	"github.com/arklim/media-admin/internal/infra/logger"
	redisinfra "github.com/arklim/media-admin/internal/infra/redis"
	"github.com/arklim/media-admin/internal/infra/security"
	"github.com/arklim/media-admin/internal/infra/telemetry"
	postgresrepo "github.com/arklim/media-admin/internal/repository/postgres"
	redisrepo "github.com/arklim/media-admin/internal/repository/redis"
	"github.com/arklim/media-admin/internal/transport/http/middleware"
	"github.com/arklim/media-admin/internal/transport/http/routes"
	"github.com/arklim/media-admin/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	cfg     *config.AppConfig
	engine  *gin.Engine
	logger  *zap.Logger
	pool    *pgxpool.Pool
	redis   *redisinfra.Client
	tracer  *telemetry.TracerProvider
	closers []io.Closer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env, cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	application := &Application{
		cfg:    cfg,
		logger: log,
		tracer: tracer,
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		application.close()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	application.pool = pool

	redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		application.close()
		return nil, fmt.Errorf("init redis: %w", err)
	}
	application.redis = redisClient

	authService, err := application.buildAuthService(cfg, pool, redisClient)
	if err != nil {
		application.close()
		return nil, err
	}

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: redisClient.KeyPrefix() + ":rate-limit",
		TTL:       rateLimitWindow * 2,
	})

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		application.close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	application.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log),
		Metrics:     httpMetrics,
		Gatherer:    prometheus.DefaultGatherer,
		Auth:        authService,
		Database:    postgresrepo.NewAdminRepository(pool),
		Cache:       redisClient,
	})

	return application, nil
}

func (a *Application) buildAuthService(cfg *config.AppConfig, pool *pgxpool.Pool, redisClient *redisinfra.Client) (*usecase.AuthService, error) {
	log := a.logger

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}
	params := hasher.Parameters()
	log.Info("password hasher configured",
		zap.Uint32("argon2_memory_kib", params.Memory),
		zap.Uint32("argon2_iterations", params.Iterations),
		zap.Uint8("argon2_parallelism", params.Parallelism),
	)

	secret, err := signingSecret(cfg, log)
	if err != nil {
		return nil, err
	}
	tokens, err := security.NewTokenService(security.TokenConfig{
		Secret:       secret,
		Algorithm:    cfg.JWT.Algorithm,
		Issuer:       cfg.JWT.Issuer,
		AccessTTL:    cfg.JWT.AccessTokenTTL,
		ChallengeTTL: cfg.JWT.ChallengeTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init token service: %w", err)
	}

	totp, err := security.NewTOTPEngine(security.TOTPConfig{
		Period: cfg.MFA.Period,
		Digits: cfg.MFA.Digits,
		Skew:   cfg.MFA.Skew,
	})
	if err != nil {
		return nil, fmt.Errorf("init totp engine: %w", err)
	}

	replay := redisrepo.NewReplayRepository(redisClient.Client(), redisClient.KeyPrefix()+":replay")
	failures := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: redisClient.KeyPrefix() + ":mfa-failures",
		TTL:       cfg.MFA.FailureWindow * 2,
	})

	authMetrics, err := telemetry.NewAuthMetrics(telemetry.AuthMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init auth metrics: %w", err)
	}

	authService, err := usecase.NewAuthService(
		usecase.AuthConfigFromSettings(cfg.MFA),
		postgresrepo.NewAdminRepository(pool),
		hasher,
		tokens,
		totp,
		replay,
		failures,
		a.eventPublisher(cfg),
		authMetrics,
	)
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	return authService, nil
}

func (a *Application) eventPublisher(cfg *config.AppConfig) port.EventPublisher {
	log := a.logger

	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(log)
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log)
	}

	a.closers = append(a.closers, producer)
	log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App, log)
}

// signingSecret returns the configured JWT secret. Development may run without one, in which
// case a random secret is generated and tokens do not survive a restart.
func signingSecret(cfg *config.AppConfig, log *zap.Logger) ([]byte, error) {
	if secret := strings.TrimSpace(cfg.JWT.Secret); secret != "" {
		return []byte(secret), nil
	}
	if !cfg.IsDevelopment() {
		return nil, errors.New("jwt secret is required")
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate ephemeral jwt secret: %w", err)
	}
	log.Warn("jwt secret not configured, using an ephemeral secret for development")
	return []byte(hex.EncodeToString(buf)), nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting media admin API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func (a *Application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close resource", zap.Error(err))
		}
	}
	a.closers = nil

	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer provider", zap.Error(err))
		}
		a.tracer = nil
	}
}
