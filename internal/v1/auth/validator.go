// Package auth validates player bearer tokens against an external auth
// service and extracts unverified claims for logging/rate-limit keys.
// Grounded on original_source's services/auth.py: validation is a single
// HTTP call, never a local signature check.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/logging"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/metrics"
)

// ErrTokenInvalid is returned when the auth service rejects a token, or
// when every retry attempt is exhausted without a definitive answer.
var ErrTokenInvalid = errors.New("auth: token is not valid")

// CustomClaims is read without signature verification, purely for logging
// and rate-limit keys; authorization is decided by the external service.
type CustomClaims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ExtractUnverifiedClaims parses the JWT payload without checking its
// signature. Used only to enrich logs and rate-limit keys; never for an
// authorization decision.
func ExtractUnverifiedClaims(tokenString string) (*CustomClaims, error) {
	parser := jwt.NewParser()
	claims := &CustomClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("auth: parse unverified claims: %w", err)
	}
	return claims, nil
}

// SubjectFromToken extracts an unverified subject claim for use as a
// rate-limit key, falling back to empty on any parse failure.
func SubjectFromToken(tokenString string) string {
	claims, err := ExtractUnverifiedClaims(tokenString)
	if err != nil {
		return ""
	}
	return claims.Subject
}

// Validator calls the external auth service to validate a bearer token,
// retrying transient failures with exponential backoff.
type Validator struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint
}

// NewValidator constructs a Validator against baseURL (the configured
// AUTH_SERVICE_URL), matching services/auth.py's retry policy: 5 attempts,
// 1s to 10s backoff.
func NewValidator(baseURL string) *Validator {
	return &Validator{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		maxRetries: 5,
	}
}

// ValidateToken calls GET {baseURL}/api/v1/auth/token/validate/ with the
// bearer token attached. A 200 response means valid; any other status, or
// a transport error that survives every retry, means invalid.
func (v *Validator) ValidateToken(ctx context.Context, token string) error {
	metrics.AuthValidationAttempts.WithLabelValues("start").Inc()

	op := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			v.baseURL+"/api/v1/auth/token/validate/", nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := v.httpClient.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer func() {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}()

		switch {
		case resp.StatusCode == http.StatusOK:
			return struct{}{}, nil
		case resp.StatusCode >= http.StatusInternalServerError:
			return struct{}{}, fmt.Errorf("auth: validate returned %d", resp.StatusCode)
		default:
			return struct{}{}, backoff.Permanent(ErrTokenInvalid)
		}
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = time.Second
	expBackoff.MaxInterval = 10 * time.Second
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(v.maxRetries),
	)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			metrics.AuthValidationAttempts.WithLabelValues("rejected").Inc()
		} else {
			logging.Warn(ctx, "auth service validation exhausted retries")
			metrics.AuthValidationAttempts.WithLabelValues("error").Inc()
		}
		return ErrTokenInvalid
	}

	metrics.AuthValidationAttempts.WithLabelValues("ok").Inc()
	return nil
}

// GetAllowedOriginsFromEnv reads a comma-separated list of allowed CORS
// origins, falling back to defaultEnvs for local development.
func GetAllowedOriginsFromEnv(envVarName string, defaultEnvs []string) []string {
	originsStr := os.Getenv(envVarName)
	if originsStr == "" {
		logging.Warn(context.Background(), fmt.Sprintf("%s not set, using default origins", envVarName))
		return defaultEnvs
	}
	return strings.Split(originsStr, ",")
}
