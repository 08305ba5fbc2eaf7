// Package session owns the single logical authenticated session to the
// upstream quote provider.
//
// The Manager performs TOTP-based login, tracks session freshness, and hands
// out the live client handle to callers. Authentication is serialized: when
// many requests find the session stale at once, exactly one login round-trip
// happens and the rest wait for its outcome.
package session

import (
	"context"
	"fmt"

	"groww-gateway/pkg/types"
)

// Client is an authenticated handle to the provider's market-data
// operations. A handle stays valid until the session it belongs to is
// replaced or torn down.
type Client interface {
	Quote(ctx context.Context, inst types.Instrument) (types.QuotePayload, error)
	LTP(ctx context.Context, inst types.Instrument) (types.LTPPayload, error)
	HistoricalCandles(ctx context.Context, req types.HistoricalRequest) ([]types.RawCandle, error)
}

// Login carries one login attempt's credentials. TOTPCode is empty when no
// seed is configured.
type Login struct {
	APIKey    string
	APISecret string
	TOTPCode  string
}

// LoginResult is the provider's answer to a login attempt. A rejected
// credential set is a result (non-success Status), not a Go error; errors
// are reserved for transport failures.
type LoginResult struct {
	Status       string
	ErrorMessage string
	Metadata     map[string]any
	Client       Client
}

// Provider is the upstream capability the session manager depends on.
type Provider interface {
	Login(ctx context.Context, creds Login) (LoginResult, error)
}

// AuthErrorKind separates credential rejections from transport failures so
// callers can choose not to retry the former.
type AuthErrorKind int

const (
	// KindCredentialsRejected means the provider answered and refused the
	// credentials. Retrying with the same credentials will not help.
	KindCredentialsRejected AuthErrorKind = iota
	// KindTransport means the login round-trip itself failed (network,
	// timeout, unexpected response). Retrying may succeed.
	KindTransport
)

// AuthError reports a failed authentication attempt.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case KindCredentialsRejected:
		return fmt.Sprintf("authentication rejected: %s", e.Message)
	default:
		return fmt.Sprintf("authentication failed: %s", e.Message)
	}
}

func (e *AuthError) Unwrap() error { return e.Err }

// Retryable reports whether a later attempt with the same credentials could
// plausibly succeed.
func (e *AuthError) Retryable() bool { return e.Kind == KindTransport }
