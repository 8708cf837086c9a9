// Package client wraps go.temporal.io/sdk/client connection setup with
// pluggable authentication, transparent payload encryption and TLS root CA
// configuration.
package client

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/canopyhq/temporalkit/auth"
	"github.com/canopyhq/temporalkit/encryption"
)

// Options defines the connection parameters on top of the plain Temporal
// client options: the auth variant, an optional encryption key and optional
// TLS root CAs.
type Options struct {
	Host       string              `yaml:"host" mapstructure:"host"`
	Namespace  string              `yaml:"namespace" mapstructure:"namespace"`
	Queue      string              `yaml:"queue" mapstructure:"queue"`
	TLSRootCAs string              `yaml:"tls_root_cas,omitempty" mapstructure:"tls_root_cas"`
	Auth       *auth.Options       `yaml:"auth,omitempty" mapstructure:"auth"`
	Encryption *encryption.Options `yaml:"encryption,omitempty" mapstructure:"encryption"`
}

// ParseOptions decodes Options from a YAML document.
func ParseOptions(data []byte) (*Options, error) {
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode options document: %w", err)
	}
	return &opts, nil
}

// envKeys are the viper keys bound to TEMPORAL_* environment variables, with
// dots replaced by underscores (e.g. auth.provider -> TEMPORAL_AUTH_PROVIDER).
var envKeys = []string{
	"host",
	"namespace",
	"queue",
	"tls_root_cas",
	"auth.provider",
	"auth.macaroon.macaroon_url",
	"auth.macaroon.username",
	"auth.macaroon.keys.private",
	"auth.macaroon.keys.public",
	"auth.google.type",
	"auth.google.project_id",
	"auth.google.private_key_id",
	"auth.google.private_key",
	"auth.google.client_email",
	"auth.google.client_id",
	"auth.google.auth_uri",
	"auth.google.token_uri",
	"encryption.key",
	"encryption.key_id",
}

// LoadOptions loads connection options from an optional YAML config file and
// TEMPORAL_-prefixed environment variables, environment taking precedence.
// configFile may be empty.
func LoadOptions(configFile string) (*Options, error) {
	v := viper.New()
	v.SetEnvPrefix("TEMPORAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("loaded temporal connection options")
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	normalize(&opts)
	return &opts, nil
}

// normalize drops empty sub-configs so a partially bound environment does not
// masquerade as a configured auth variant or encryption key.
func normalize(opts *Options) {
	if opts.Auth != nil && opts.Auth.Provider == "" {
		opts.Auth = nil
	}
	if opts.Auth != nil {
		if opts.Auth.Macaroon != nil && *opts.Auth.Macaroon == (auth.MacaroonConfig{}) {
			opts.Auth.Macaroon = nil
		}
		if opts.Auth.Google != nil && *opts.Auth.Google == (auth.GoogleConfig{}) {
			opts.Auth.Google = nil
		}
	}
	if opts.Encryption != nil && opts.Encryption.Key == "" {
		opts.Encryption = nil
	}
}
