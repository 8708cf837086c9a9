package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsTokenProvider(t *testing.T) {
	macaroonCfg := &MacaroonConfig{
		MacaroonURL: "https://temporal.example.com/macaroon",
		Username:    "test-agent",
		Keys:        KeyPair{Private: testAgentKey},
	}
	googleCfg := &GoogleConfig{Type: "service_account", ProjectID: "test-project"}

	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{
			name: "candid",
			opts: Options{Provider: ProviderCandid, Macaroon: macaroonCfg},
		},
		{
			name: "google",
			opts: Options{Provider: ProviderGoogle, Google: googleCfg},
		},
		{
			name:    "candid without macaroon config",
			opts:    Options{Provider: ProviderCandid},
			wantErr: "requires a macaroon config",
		},
		{
			name:    "google without google config",
			opts:    Options{Provider: ProviderGoogle},
			wantErr: "requires a google config",
		},
		{
			name:    "candid with google config",
			opts:    Options{Provider: ProviderCandid, Macaroon: macaroonCfg, Google: googleCfg},
			wantErr: "does not accept a google config",
		},
		{
			name:    "google with macaroon config",
			opts:    Options{Provider: ProviderGoogle, Google: googleCfg, Macaroon: macaroonCfg},
			wantErr: "does not accept a macaroon config",
		},
		{
			name:    "unknown provider",
			opts:    Options{Provider: "ldap"},
			wantErr: "unknown auth provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := tt.opts.TokenProvider(nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, provider)
		})
	}
}

func TestCredentialExpired(t *testing.T) {
	now := time.Now()

	noExpiry := Credential{Value: "Bearer token"}
	assert.False(t, noExpiry.Expired(now))

	expired := Credential{Value: "Bearer token", Expiry: now.Add(-time.Second)}
	assert.True(t, expired.Expired(now))

	fresh := Credential{Value: "Bearer token", Expiry: now.Add(time.Hour)}
	assert.False(t, fresh.Expired(now))
}
