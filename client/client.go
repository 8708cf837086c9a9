package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	sdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"google.golang.org/grpc"

	"github.com/canopyhq/temporalkit/auth"
	"github.com/canopyhq/temporalkit/encryption"
)

// Dial connects to the Temporal server described by opts, decorating the base
// client options with an authorization headers provider, a payload encryption
// codec and TLS root CAs as configured. Misconfigured auth or key material
// fails here, before any RPC is attempted.
func Dial(ctx context.Context, opts Options, base sdkclient.Options) (sdkclient.Client, error) {
	cfg, err := configure(opts, base)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("host", cfg.HostPort).
		Str("namespace", cfg.Namespace).
		Bool("auth", opts.Auth != nil).
		Bool("encryption", opts.Encryption != nil).
		Msg("dialing temporal server")
	return sdkclient.DialContext(ctx, cfg)
}

// configure resolves Options into concrete Temporal client options.
func configure(opts Options, base sdkclient.Options) (sdkclient.Options, error) {
	if opts.Host != "" {
		base.HostPort = opts.Host
	}
	if base.Namespace == "" {
		base.Namespace = opts.Namespace
	}
	if base.Namespace == "" {
		base.Namespace = "default"
	}

	if opts.Auth != nil {
		provider, err := opts.Auth.TokenProvider(nil)
		if err != nil {
			return sdkclient.Options{}, fmt.Errorf("failed to configure auth provider: %w", err)
		}
		cache := auth.NewTokenCache(provider)
		base.HeadersProvider = auth.NewHeadersProvider(cache)
		base.ConnectionOptions.DialOptions = append(
			base.ConnectionOptions.DialOptions,
			grpc.WithChainUnaryInterceptor(auth.UnaryClientInterceptor(cache)),
		)
	}

	if opts.Encryption != nil && opts.Encryption.Key != "" {
		codec, err := encryption.NewCodec(*opts.Encryption)
		if err != nil {
			return sdkclient.Options{}, fmt.Errorf("failed to configure payload encryption: %w", err)
		}
		parent := base.DataConverter
		if parent == nil {
			parent = converter.GetDefaultDataConverter()
		}
		base.DataConverter = converter.NewCodecDataConverter(parent, codec)
	}

	if opts.TLSRootCAs != "" {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(opts.TLSRootCAs)) {
			return sdkclient.Options{}, fmt.Errorf("failed to parse tls root CA certificates")
		}
		serverName, _, _ := strings.Cut(opts.Host, ":")
		base.ConnectionOptions.TLS = &tls.Config{
			RootCAs:    pool,
			ServerName: serverName,
		}
	}

	return base, nil
}
