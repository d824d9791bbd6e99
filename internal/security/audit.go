package security

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eventnest/eventnest/internal/app"
	iauth "github.com/eventnest/eventnest/internal/auth"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// AuditService evaluates the deployment configuration at startup.
type AuditService struct {
	jwt *iauth.JWTService
	cfg *app.Config
	now func() time.Time
}

// NewAuditService constructs the audit service. Missing inputs degrade the
// affected checks to warnings.
func NewAuditService(jwt *iauth.JWTService, cfg *app.Config) *AuditService {
	return &AuditService{jwt: jwt, cfg: cfg, now: time.Now}
}

// WithClock overrides the clock used in results.
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks.
func (s *AuditService) Run() Result {
	checks := []Check{s.checkJWTSecret()}
	if s.cfg == nil {
		checks = append(checks, Check{
			ID:          "configuration",
			Status:      StatusWarn,
			Message:     "Configuration not loaded",
			Remediation: "Load configuration before running the security audit.",
		})
	} else {
		checks = append(checks,
			s.checkTokenTTL(),
			s.checkCORS(),
			s.checkBaseURL(),
			s.checkMailDelivery(),
		)
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{CheckedAt: s.now().UTC(), Checks: checks, Summary: summary}
}

// Log writes every non-passing check to log.
func (r Result) Log(log *zap.Logger) {
	for _, check := range r.Checks {
		fields := []zap.Field{zap.String("check", check.ID), zap.String("remediation", check.Remediation)}
		switch check.Status {
		case StatusFail:
			log.Error(check.Message, fields...)
		case StatusWarn:
			log.Warn(check.Message, fields...)
		}
	}
}

func (s *AuditService) checkJWTSecret() Check {
	const id = "jwt_secret_strength"
	if s.jwt == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "JWT service not initialised",
			Remediation: "Initialise the JWT service with a strong secret.",
		}
	}

	switch length := s.jwt.SecretLength(); {
	case length < 32:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes)", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
		}
	case length < 48:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes", length),
			Remediation: "Increase EVENTNEST_AUTH_JWT_SECRET to at least 48 bytes.",
		}
	default:
		return Check{ID: id, Status: StatusPass, Message: fmt.Sprintf("JWT signing secret length is %d bytes", length)}
	}
}

func (s *AuditService) checkTokenTTL() Check {
	const (
		id             = "access_token_ttl"
		maxRecommended = 7 * 24 * time.Hour
	)
	ttl := s.cfg.Auth.JWT.TTL
	if ttl > maxRecommended {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Access token TTL (%s) exceeds %s", ttl, maxRecommended),
			Remediation: "Lower auth.jwt.access_token_ttl to limit credential exposure.",
		}
	}
	return Check{ID: id, Status: StatusPass, Message: fmt.Sprintf("Access token TTL is %s", ttl)}
}

func (s *AuditService) checkCORS() Check {
	const id = "cors_origins"
	for _, origin := range s.cfg.Server.CORS.AllowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			return Check{
				ID:          id,
				Status:      StatusWarn,
				Message:     "CORS allows every origin",
				Remediation: "List the frontend origins in server.cors.allowed_origins.",
			}
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "CORS origins restricted"}
}

func (s *AuditService) checkBaseURL() Check {
	const id = "base_url_scheme"
	parsed, err := url.Parse(strings.TrimSpace(s.cfg.Server.BaseURL))
	if err != nil || parsed.Host == "" {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "Base URL is not an absolute URL",
			Remediation: "Set server.base_url to the public frontend address used in invitation links.",
		}
	}
	if parsed.Scheme != "https" && !isLoopback(parsed.Hostname()) {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Invitation links are served over plain HTTP",
			Remediation: "Use an https base URL outside local development.",
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "Base URL is " + parsed.String()}
}

func (s *AuditService) checkMailDelivery() Check {
	const id = "smtp_delivery"
	if !s.cfg.Email.SMTP.Enabled {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "SMTP delivery is disabled; invitation and notification emails will not be sent",
			Remediation: "Configure email.smtp to deliver invitations.",
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "SMTP delivery enabled"}
}

func isLoopback(host string) bool {
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
