// Package worker builds Temporal workers decorated with failure telemetry.
package worker

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	sdkclient "go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"
)

// SentryOptions defines the parameters for reporting workflow and activity
// failures to Sentry. RedactParams replaces captured call parameters with a
// fixed marker before transmission.
type SentryOptions struct {
	DSN          string  `yaml:"dsn" mapstructure:"dsn"`
	Release      string  `yaml:"release,omitempty" mapstructure:"release"`
	Environment  string  `yaml:"environment,omitempty" mapstructure:"environment"`
	SampleRate   float64 `yaml:"sample_rate,omitempty" mapstructure:"sample_rate"`
	RedactParams bool    `yaml:"redact_params,omitempty" mapstructure:"redact_params"`
}

// Options defines the worker decorations on top of the plain Temporal worker
// options.
type Options struct {
	Sentry *SentryOptions `yaml:"sentry,omitempty" mapstructure:"sentry"`
}

// LoadSentryOptions loads Sentry reporting options from TEMPORAL_SENTRY_*
// environment variables. A nil result means reporting is not configured.
func LoadSentryOptions() (*SentryOptions, error) {
	v := viper.New()
	v.SetEnvPrefix("TEMPORAL_SENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"dsn", "release", "environment", "sample_rate", "redact_params"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}
	var opts SentryOptions
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("failed to decode sentry options: %w", err)
	}
	if opts.DSN == "" {
		return nil, nil
	}
	return &opts, nil
}

// New creates a Temporal worker on the given connection with the configured
// telemetry interceptor appended. Other worker options pass through
// unchanged.
func New(c sdkclient.Client, taskQueue string, opts Options, workerOpts sdkworker.Options) (sdkworker.Worker, error) {
	if opts.Sentry != nil {
		ti, err := NewTelemetryInterceptor(*opts.Sentry)
		if err != nil {
			return nil, fmt.Errorf("failed to configure failure telemetry: %w", err)
		}
		workerOpts.Interceptors = append(workerOpts.Interceptors, ti)
	}
	return sdkworker.New(c, taskQueue, workerOpts), nil
}
