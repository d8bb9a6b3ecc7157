package auth

import (
	"context"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

var testSecret = []byte("testsecret1234567890abcdefghijklmnop")

func TestGenerateAndAuthenticate(t *testing.T) {
	a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, nil)

	key, err := GenerateAPIKey(testSecretID, testSecret)
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v, want nil", err)
	}
	if !strings.HasPrefix(key, "sb-v1-"+testSecretID+"-") {
		t.Errorf("GenerateAPIKey() = %q, want sb-v1-<secret_id>- prefix", key)
	}

	got, err := a.Authenticate(key)
	if err != nil {
		t.Fatalf("Authenticate() error = %v, want nil", err)
	}
	if got != testSecretID {
		t.Errorf("Authenticate() = %q, want %q", got, testSecretID)
	}
}

func TestAuthenticate_Failures(t *testing.T) {
	a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, nil)
	good, err := GenerateAPIKey(testSecretID, testSecret)
	if err != nil {
		t.Fatal(err)
	}
	other, err := GenerateAPIKey("fedcba9876543210fedcba9876543210", testSecret)
	if err != nil {
		t.Fatal(err)
	}
	forged, err := GenerateAPIKey(testSecretID, []byte("another-secret-of-at-least-32-bytes!"))
	if err != nil {
		t.Fatal(err)
	}
	// Flip the last MAC character.
	last := good[len(good)-1]
	flip := byte('0')
	if last == '0' {
		flip = '1'
	}
	tampered := good[:len(good)-1] + string(flip)

	tests := []struct {
		name string
		key  string
		want error
	}{
		{"empty", "", ErrInvalidKeyFormat},
		{"wrong prefix", "tk" + good[2:], ErrInvalidKeyFormat},
		{"upper case hex", strings.ToUpper(good), ErrInvalidKeyFormat},
		{"missing mac", good[:strings.LastIndex(good, "-")], ErrInvalidKeyFormat},
		{"unknown secret", other, ErrUnknownKey},
		{"forged", forged, ErrInvalidKey},
		{"tampered", tampered, ErrInvalidKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Authenticate(tt.key); err != tt.want {
				t.Errorf("Authenticate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerateAPIKey_InvalidSecretID(t *testing.T) {
	if _, err := GenerateAPIKey("short", testSecret); err == nil {
		t.Error("GenerateAPIKey() error = nil, want error")
	}
}

func TestUnaryInterceptor(t *testing.T) {
	key, err := GenerateAPIKey(testSecretID, testSecret)
	if err != nil {
		t.Fatal(err)
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/svc/Method"}
	var seen string
	handler := func(ctx context.Context, req any) (any, error) {
		seen = SecretIDFromContext(ctx)
		return "ok", nil
	}

	tests := []struct {
		name     string
		secrets  map[string][]byte
		md       metadata.MD
		exempt   []string
		wantCode codes.Code
		wantID   string
	}{
		{"disabled", nil, nil, nil, codes.OK, ""},
		{"valid key", map[string][]byte{testSecretID: testSecret}, metadata.Pairs("x-api-key", key), nil, codes.OK, testSecretID},
		{"no metadata", map[string][]byte{testSecretID: testSecret}, nil, nil, codes.Unauthenticated, ""},
		{"no key", map[string][]byte{testSecretID: testSecret}, metadata.Pairs("other", "x"), nil, codes.Unauthenticated, ""},
		{"bad key", map[string][]byte{testSecretID: testSecret}, metadata.Pairs("x-api-key", "sb-v1-x"), nil, codes.Unauthenticated, ""},
		{"exempt method", map[string][]byte{testSecretID: testSecret}, nil, []string{"/svc/Method"}, codes.OK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}
			a := NewAuthenticator(tt.secrets, nil)
			_, err := a.UnaryInterceptor(tt.exempt...)(ctx, nil, info, handler)
			if got := status.Code(err); got != tt.wantCode {
				t.Fatalf("interceptor code = %v, want %v (%v)", got, tt.wantCode, err)
			}
			if seen != tt.wantID {
				t.Errorf("SecretIDFromContext() = %q, want %q", seen, tt.wantID)
			}
		})
	}
}
