package auth

import (
	"context"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AuthorizationHeader is the metadata key carrying the credential on every
// outbound RPC.
const AuthorizationHeader = "authorization"

// HeadersProvider resolves a current credential from the cache for every
// outbound Temporal RPC. It satisfies the Temporal client's HeadersProvider
// contract: a fetch failure fails the call before any RPC is attempted.
type HeadersProvider struct {
	cache *TokenCache
}

// NewHeadersProvider creates a HeadersProvider backed by the given cache.
func NewHeadersProvider(cache *TokenCache) *HeadersProvider {
	return &HeadersProvider{cache: cache}
}

// GetHeaders implements go.temporal.io/sdk/client.HeadersProvider.
func (p *HeadersProvider) GetHeaders(ctx context.Context) (map[string]string, error) {
	cred, err := p.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{AuthorizationHeader: cred.Value}, nil
}

// UnaryClientInterceptor returns a gRPC interceptor that invalidates the
// cached credential when the server rejects it. The RPC itself is not
// retried here; the caller's own retry picks up a freshly fetched credential,
// so non-auth failures are never masked as retries.
func UnaryClientInterceptor(cache *TokenCache) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		err := invoker(ctx, method, req, reply, cc, opts...)
		if status.Code(err) == codes.Unauthenticated {
			log.Debug().Str("method", method).Msg("credential rejected by server, invalidating cached token")
			cache.Invalidate()
		}
		return err
	}
}
