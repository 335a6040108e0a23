package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/media-admin/internal/core/port"
)

const defaultNamespace = "media_admin"

// AuthMetricsOptions configures the auth outcome collectors.
type AuthMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
}

// AuthMetrics counts outcomes of the login and MFA transitions.
type AuthMetrics struct {
	Logins          *prometheus.CounterVec
	MFAVerification *prometheus.CounterVec
	MFAEnrollment   *prometheus.CounterVec
}

// NewAuthMetrics constructs and registers the auth collectors. Collectors that are already
// registered are reused.
func NewAuthMetrics(opts AuthMetricsOptions) (*AuthMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	logins, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Admin login attempts partitioned by outcome.",
	}, "outcome")
	if err != nil {
		return nil, err
	}

	verifications, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "mfa_verifications_total",
		Help:      "TOTP verification attempts partitioned by outcome.",
	}, "outcome")
	if err != nil {
		return nil, err
	}

	enrollments, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "mfa_enrollments_total",
		Help:      "TOTP enrollment requests partitioned by whether an existing secret was reused.",
	}, "result")
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		Logins:          logins,
		MFAVerification: verifications,
		MFAEnrollment:   enrollments,
	}, nil
}

// LoginAttempt records one login outcome.
func (m *AuthMetrics) LoginAttempt(outcome string) {
	if m == nil || m.Logins == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

// MFAVerificationAttempt records one verification outcome.
func (m *AuthMetrics) MFAVerificationAttempt(outcome string) {
	if m == nil || m.MFAVerification == nil {
		return
	}
	m.MFAVerification.WithLabelValues(outcome).Inc()
}

// MFAEnrolled records an enrollment request.
func (m *AuthMetrics) MFAEnrolled(reused bool) {
	if m == nil || m.MFAEnrollment == nil {
		return
	}
	result := "created"
	if reused {
		result = "reused"
	}
	m.MFAEnrollment.WithLabelValues(result).Inc()
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) (*prometheus.CounterVec, error) {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("register %s collector: %w", opts.Name, err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing %s collector has unexpected type %T", opts.Name, already.ExistingCollector)
		}
		return existing, nil
	}
	return collector, nil
}

var _ port.AuthMetrics = (*AuthMetrics)(nil)
