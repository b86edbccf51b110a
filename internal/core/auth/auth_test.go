package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

var testSecret = []byte("testsecret1234567890abcdefghijklmnop")

func TestNewAPIKeyRoundTrip(t *testing.T) {
	key, err := NewAPIKey(testSecret, testSecretID)
	if err != nil {
		t.Fatalf("NewAPIKey failed: %v", err)
	}
	if !strings.HasPrefix(key, "st-v1-"+testSecretID+"-") {
		t.Errorf("unexpected key prefix: %s", key)
	}

	a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, nil)
	id, err := a.Authenticate(key)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if id != testSecretID {
		t.Errorf("secret id = %s, want %s", id, testSecretID)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, nil)
	valid := FormatAPIKey(testSecret, testSecretID, strings.Repeat("ab", 32))

	tampered := []byte(valid)
	last := len(tampered) - 1
	if tampered[last] == '0' {
		tampered[last] = '1'
	} else {
		tampered[last] = '0'
	}

	otherSecret := FormatAPIKey([]byte("another-secret-that-is-long-enough-0000"), testSecretID, strings.Repeat("ab", 32))
	unknownID := FormatAPIKey(testSecret, strings.Repeat("f", 32), strings.Repeat("ab", 32))

	tests := []struct {
		name string
		key  string
		want error
	}{
		{"empty", "", ErrInvalidKeyFormat},
		{"wrong prefix", strings.Replace(valid, "st-", "tk-", 1), ErrInvalidKeyFormat},
		{"uppercase hex", strings.ToUpper(valid), ErrInvalidKeyFormat},
		{"tampered mac", string(tampered), ErrInvalidKey},
		{"signed with other secret", otherSecret, ErrInvalidKey},
		{"unknown secret id", unknownID, ErrUnknownKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Authenticate(tt.key)
			if !errors.Is(err, tt.want) {
				t.Errorf("Authenticate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNewAPIKeyRejectsBadSecretID(t *testing.T) {
	if _, err := NewAPIKey(testSecret, "short"); !errors.Is(err, ErrInvalidKeyFormat) {
		t.Errorf("expected ErrInvalidKeyFormat, got %v", err)
	}
}

func TestUnaryInterceptor(t *testing.T) {
	a := NewAuthenticator(map[string][]byte{testSecretID: testSecret}, nil)
	interceptor := a.UnaryInterceptor()
	key, err := NewAPIKey(testSecret, testSecretID)
	if err != nil {
		t.Fatal(err)
	}

	var seen string
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = SecretIDFromContext(ctx)
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/searchtrace.graph.v1.GraphService/Root"}

	t.Run("valid key", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", key))
		if _, err := interceptor(ctx, nil, info, handler); err != nil {
			t.Fatalf("interceptor error: %v", err)
		}
		if seen != testSecretID {
			t.Errorf("secret id in context = %q", seen)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.MD{})
		_, err := interceptor(ctx, nil, info, handler)
		if status.Code(err) != codes.Unauthenticated {
			t.Errorf("expected Unauthenticated, got %v", err)
		}
	})

	t.Run("health exempt", func(t *testing.T) {
		health := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
		if _, err := interceptor(context.Background(), nil, health, handler); err != nil {
			t.Errorf("health check should bypass auth: %v", err)
		}
	})
}
