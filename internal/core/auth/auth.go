// Package auth provides HMAC-based API key authentication for the graph service.
//
// Keys are self-verifying: the trailing MAC is HMAC-SHA256 over the rest of
// the key under the secret named by its secret id, so no key table is kept.
package auth

import (
	"context"
	"encoding/hex"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// secretIDKey is the context key for storing the authenticated secret id.
const secretIDKey = contextKey("secret_id")

const apiKeyHeader = "x-api-key"

// healthPrefix exempts the standard health service from authentication.
const healthPrefix = "/grpc.health.v1.Health/"

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup.
type Authenticator struct {
	secrets map[string][]byte
	logger  *zap.Logger
}

// NewAuthenticator creates an authenticator over HMAC secrets keyed by secret id.
func NewAuthenticator(secrets map[string][]byte, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		secrets: secrets,
		logger:  logger,
	}
}

// Authenticate validates an API key and returns its secret id on success.
func (a *Authenticator) Authenticate(apiKey string) (string, error) {
	secretID, randomData, mac, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	expected, err := hex.DecodeString(mac)
	if err != nil {
		return "", ErrInvalidKeyFormat
	}
	if !VerifyHMAC(expected, ComputeHMAC(secret, signedPart(secretID, randomData))) {
		return "", ErrInvalidKey
	}

	return secretID, nil
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, healthPrefix) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get(apiKeyHeader)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		secretID, err := a.Authenticate(apiKeys[0])
		if err != nil {
			a.logger.Debug("rejected request", zap.String("method", info.FullMethod), zap.Error(err))
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		ctx = context.WithValue(ctx, secretIDKey, secretID)
		return handler(ctx, req)
	}
}

// SecretIDFromContext extracts the authenticated secret id from context.
// Returns empty string if not found.
func SecretIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(secretIDKey).(string); ok {
		return id
	}
	return ""
}
