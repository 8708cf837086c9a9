// Package auth bridges long-lived credentials (a candid macaroon agent key
// or a Google service-account key) into short-lived authorization headers for
// outbound Temporal RPCs.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Provider names accepted in Options.Provider.
const (
	ProviderCandid = "candid"
	ProviderGoogle = "google"
)

// Credential is an opaque authorization value ready to be used as the
// "authorization" header of an outbound RPC. A zero Expiry means the
// credential carries no stated lifetime.
type Credential struct {
	Value  string
	Expiry time.Time
}

// Expired reports whether the credential is past its stated lifetime at t.
// Credentials without an expiry never report expired.
func (c Credential) Expired(t time.Time) bool {
	return !c.Expiry.IsZero() && !t.Before(c.Expiry)
}

// TokenProvider produces a fresh Credential by talking to an external
// identity endpoint. Implementations must be safe for concurrent use and must
// not assume exclusivity; de-duplication of concurrent fetches is the
// TokenCache's job.
type TokenProvider interface {
	FetchToken(ctx context.Context) (Credential, error)
}

// Options selects exactly one credential source for a connection. Provider
// must match the populated branch.
type Options struct {
	Provider string          `yaml:"provider" mapstructure:"provider"`
	Macaroon *MacaroonConfig `yaml:"macaroon,omitempty" mapstructure:"macaroon"`
	Google   *GoogleConfig   `yaml:"google,omitempty" mapstructure:"google"`
}

// TokenProvider resolves the configured variant into a concrete provider,
// failing fast on a provider/config mismatch. The HTTP client is used for the
// identity endpoint calls; pass nil for http.DefaultClient.
func (o *Options) TokenProvider(httpClient *http.Client) (TokenProvider, error) {
	switch o.Provider {
	case ProviderCandid:
		if o.Macaroon == nil {
			return nil, fmt.Errorf("auth provider %q requires a macaroon config", o.Provider)
		}
		if o.Google != nil {
			return nil, fmt.Errorf("auth provider %q does not accept a google config", o.Provider)
		}
		return NewMacaroonProvider(*o.Macaroon, httpClient)
	case ProviderGoogle:
		if o.Google == nil {
			return nil, fmt.Errorf("auth provider %q requires a google config", o.Provider)
		}
		if o.Macaroon != nil {
			return nil, fmt.Errorf("auth provider %q does not accept a macaroon config", o.Provider)
		}
		return NewGoogleProvider(*o.Google), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", o.Provider)
	}
}

// FetchError reports a failure to obtain a credential from the configured
// identity endpoint.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth: %s", e.Op)
	}
	return fmt.Sprintf("auth: %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func fetchErrorf(err error, format string, args ...any) *FetchError {
	return &FetchError{Op: fmt.Sprintf(format, args...), Err: err}
}
