// Package auth provides stateless HMAC API key authentication for gRPC services.
package auth

import (
	"context"
	"encoding/hex"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// secretIDKey is the context key for the secret ID of the authenticated key.
const secretIDKey = contextKey("secret_id")

// Authenticator validates API keys against in-memory HMAC secrets.
// Keys carry their own signature, so no key store is consulted.
type Authenticator struct {
	secrets map[string][]byte
	logger  *slog.Logger
}

// NewAuthenticator creates an authenticator. A nil logger means slog.Default().
func NewAuthenticator(secrets map[string][]byte, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{secrets: secrets, logger: logger}
}

// Enabled reports whether any secret is configured.
func (a *Authenticator) Enabled() bool { return len(a.secrets) > 0 }

// Authenticate validates apiKey and returns its secret ID on success.
func (a *Authenticator) Authenticate(apiKey string) (string, error) {
	secretID, randomData, mac, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	given, err := hex.DecodeString(mac)
	if err != nil {
		return "", ErrInvalidKeyFormat
	}
	if !VerifyHMAC(ComputeHMAC(secret, secretID, randomData), given) {
		return "", ErrInvalidKey
	}
	return secretID, nil
}

// UnaryInterceptor returns a gRPC interceptor that authenticates requests.
// With no secrets configured every request passes. exempt lists full method
// names that skip authentication, such as the health check.
func (a *Authenticator) UnaryInterceptor(exempt ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]bool, len(exempt))
	for _, m := range exempt {
		skip[m] = true
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !a.Enabled() || skip[info.FullMethod] {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}
		apiKeys := md.Get("x-api-key")
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		secretID, err := a.Authenticate(apiKeys[0])
		if err != nil {
			a.logger.Warn("Authentication failed", "method", info.FullMethod, "error", err)
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(context.WithValue(ctx, secretIDKey, secretID), req)
	}
}

// SecretIDFromContext returns the secret ID of the authenticated caller,
// or an empty string.
func SecretIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(secretIDKey).(string); ok {
		return id
	}
	return ""
}
