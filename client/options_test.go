package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/temporalkit/auth"
)

const optionsYAML = `
host: temporal.example.com:7233
namespace: production
queue: main-queue
auth:
  provider: candid
  macaroon:
    macaroon_url: https://temporal.example.com/macaroon
    username: test-agent
    keys:
      private: MTIzNDU2NzgxMjM0NTY3ODEyMzQ1Njc4MTIzNDU2Nzg=
      public: ODc2NTQzMjE4NzY1NDMyMTg3NjU0MzIxODc2NTQzMjE=
encryption:
  key: MTIzNDU2NzgxMjM0NTY3ODEyMzQ1Njc4MTIzNDU2Nzg=
`

func TestParseOptions(t *testing.T) {
	opts, err := ParseOptions([]byte(optionsYAML))
	require.NoError(t, err)

	assert.Equal(t, "temporal.example.com:7233", opts.Host)
	assert.Equal(t, "production", opts.Namespace)
	assert.Equal(t, "main-queue", opts.Queue)

	require.NotNil(t, opts.Auth)
	assert.Equal(t, auth.ProviderCandid, opts.Auth.Provider)
	require.NotNil(t, opts.Auth.Macaroon)
	assert.Equal(t, "test-agent", opts.Auth.Macaroon.Username)
	assert.Equal(t, "https://temporal.example.com/macaroon", opts.Auth.Macaroon.MacaroonURL)

	require.NotNil(t, opts.Encryption)
	assert.Equal(t, "MTIzNDU2NzgxMjM0NTY3ODEyMzQ1Njc4MTIzNDU2Nzg=", opts.Encryption.Key)
}

func TestParseOptionsMalformed(t *testing.T) {
	_, err := ParseOptions([]byte("host: [broken"))
	require.Error(t, err)
}

func TestLoadOptionsFromEnv(t *testing.T) {
	t.Setenv("TEMPORAL_HOST", "temporal.example.com:7233")
	t.Setenv("TEMPORAL_NAMESPACE", "staging")
	t.Setenv("TEMPORAL_QUEUE", "env-queue")
	t.Setenv("TEMPORAL_AUTH_PROVIDER", "google")
	t.Setenv("TEMPORAL_AUTH_GOOGLE_TYPE", "service_account")
	t.Setenv("TEMPORAL_AUTH_GOOGLE_PROJECT_ID", "test-project")
	t.Setenv("TEMPORAL_ENCRYPTION_KEY", "MTIzNDU2NzgxMjM0NTY3ODEyMzQ1Njc4MTIzNDU2Nzg=")

	opts, err := LoadOptions("")
	require.NoError(t, err)

	assert.Equal(t, "temporal.example.com:7233", opts.Host)
	assert.Equal(t, "staging", opts.Namespace)
	assert.Equal(t, "env-queue", opts.Queue)
	require.NotNil(t, opts.Auth)
	assert.Equal(t, auth.ProviderGoogle, opts.Auth.Provider)
	require.NotNil(t, opts.Auth.Google)
	assert.Equal(t, "test-project", opts.Auth.Google.ProjectID)
	require.NotNil(t, opts.Encryption)
	assert.Equal(t, "MTIzNDU2NzgxMjM0NTY3ODEyMzQ1Njc4MTIzNDU2Nzg=", opts.Encryption.Key)
}

func TestLoadOptionsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temporal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(optionsYAML), 0o600))

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, "temporal.example.com:7233", opts.Host)
	require.NotNil(t, opts.Auth)
	assert.Equal(t, auth.ProviderCandid, opts.Auth.Provider)
}

func TestLoadOptionsEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temporal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(optionsYAML), 0o600))
	t.Setenv("TEMPORAL_NAMESPACE", "override")

	opts, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, "override", opts.Namespace)
}

func TestLoadOptionsMissingFile(t *testing.T) {
	_, err := LoadOptions(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadOptionsEmptyEnvironment(t *testing.T) {
	opts, err := LoadOptions("")
	require.NoError(t, err)
	assert.Nil(t, opts.Auth)
	assert.Nil(t, opts.Encryption)
}
