package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-macaroon-bakery/macaroon-bakery/v3/bakery"
	"github.com/go-macaroon-bakery/macaroon-bakery/v3/bakery/checkers"
	"github.com/go-macaroon-bakery/macaroon-bakery/v3/httpbakery"
	"github.com/go-macaroon-bakery/macaroon-bakery/v3/httpbakery/agent"
	macaroon "gopkg.in/macaroon.v2"
)

// KeyPair holds the base64 encoded agent keys used to satisfy third-party
// caveats during macaroon discharge.
type KeyPair struct {
	Private string `yaml:"private" mapstructure:"private"`
	Public  string `yaml:"public" mapstructure:"public"`
}

// MacaroonConfig defines the parameters for authenticating against a
// candid-backed Temporal server.
type MacaroonConfig struct {
	MacaroonURL string  `yaml:"macaroon_url" mapstructure:"macaroon_url"`
	Username    string  `yaml:"username" mapstructure:"username"`
	Keys        KeyPair `yaml:"keys" mapstructure:"keys"`
}

type macaroonProvider struct {
	cfg        MacaroonConfig
	key        bakery.KeyPair
	httpClient *http.Client

	// dischargeAll is swapped out in tests to avoid a live identity service.
	dischargeAll func(ctx context.Context, m *bakery.Macaroon, client *httpbakery.Client) (macaroon.Slice, error)
}

// NewMacaroonProvider creates a TokenProvider that requests a macaroon from
// the configured endpoint, discharges its third-party caveats with the agent
// keypair and serializes the bound bundle into an authorization header value.
// Key material is validated up front so a misconfigured connection fails
// before any RPC is attempted.
func NewMacaroonProvider(cfg MacaroonConfig, httpClient *http.Client) (TokenProvider, error) {
	if cfg.MacaroonURL == "" {
		return nil, fmt.Errorf("macaroon auth requires a macaroon_url")
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("macaroon auth requires a username")
	}
	var key bakery.KeyPair
	if err := key.Private.UnmarshalText([]byte(cfg.Keys.Private)); err != nil {
		return nil, fmt.Errorf("failed to decode agent private key: %w", err)
	}
	if cfg.Keys.Public != "" {
		if err := key.Public.UnmarshalText([]byte(cfg.Keys.Public)); err != nil {
			return nil, fmt.Errorf("failed to decode agent public key: %w", err)
		}
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &macaroonProvider{
		cfg:        cfg,
		key:        key,
		httpClient: httpClient,
		dischargeAll: func(ctx context.Context, m *bakery.Macaroon, client *httpbakery.Client) (macaroon.Slice, error) {
			return bakery.DischargeAll(ctx, m, client.AcquireDischarge)
		},
	}, nil
}

func (p *macaroonProvider) FetchToken(ctx context.Context) (Credential, error) {
	m, err := p.requestMacaroon(ctx)
	if err != nil {
		return Credential{}, err
	}

	identityURL, err := identityLocation(m)
	if err != nil {
		return Credential{}, err
	}

	bclient := httpbakery.NewClient()
	bclient.Client = p.httpClient
	err = agent.SetUpAuth(bclient, &agent.AuthInfo{
		Key: &p.key,
		Agents: []agent.Agent{{
			URL:      identityURL,
			Username: p.cfg.Username,
		}},
	})
	if err != nil {
		return Credential{}, fetchErrorf(err, "failed to set up agent authentication")
	}

	ms, err := p.dischargeAll(ctx, m, bclient)
	if err != nil {
		return Credential{}, fetchErrorf(err, "failed to discharge macaroon from %s", identityURL)
	}

	bundle, err := json.Marshal(ms)
	if err != nil {
		return Credential{}, fetchErrorf(err, "failed to serialize discharged macaroons")
	}

	cred := Credential{
		Value: "Macaroon " + base64.StdEncoding.EncodeToString(bundle),
	}
	if expiry, ok := checkers.MacaroonsExpiryTime(checkers.New(nil).Namespace(), ms); ok {
		cred.Expiry = expiry
	}
	return cred, nil
}

// requestMacaroon fetches the root macaroon for the configured user from the
// Temporal server's macaroon endpoint.
func (p *macaroonProvider) requestMacaroon(ctx context.Context) (*bakery.Macaroon, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.MacaroonURL, nil)
	if err != nil {
		return nil, fetchErrorf(err, "invalid macaroon endpoint %s", p.cfg.MacaroonURL)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fetchErrorf(err, "failed to reach macaroon endpoint %s", p.cfg.MacaroonURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fetchErrorf(nil, "macaroon endpoint %s returned status %d", p.cfg.MacaroonURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetchErrorf(err, "failed to read macaroon endpoint response")
	}

	raw, err := decodeBase64(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fetchErrorf(err, "macaroon endpoint returned a malformed response")
	}
	var m bakery.Macaroon
	if err := m.UnmarshalJSON(raw); err != nil {
		return nil, fetchErrorf(err, "failed to decode macaroon")
	}
	return &m, nil
}

// identityLocation extracts the discharge location from the macaroon's first
// third-party caveat.
func identityLocation(m *bakery.Macaroon) (string, error) {
	for _, cav := range m.M().Caveats() {
		if cav.Location != "" {
			return cav.Location, nil
		}
	}
	return "", fetchErrorf(nil, "retrieved macaroon has no third-party caveats")
}

// decodeBase64 accepts both the url-safe unpadded encoding used by candid and
// plain std encoding.
func decodeBase64(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "=")); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
