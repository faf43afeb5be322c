package spaceport

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// signTestToken builds a signed JWT carrying the given claims. The signing
// key is irrelevant because the client never verifies signatures.
func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

type failingTokenSource struct{}

func (failingTokenSource) Token() (string, error) {
	return "", errors.New("keychain locked")
}

func TestGenerateChannelAuth(t *testing.T) {
	token := signTestToken(t, jwt.MapClaims{"id": "u-1", "exp": 4102444800})
	provider := newChannelAuthProvider(StaticTokenSource(token))

	auth, err := provider.generateChannelAuth("chat-42")
	if err != nil {
		t.Fatalf("generateChannelAuth failed: %v", err)
	}

	if auth.Signature != token {
		t.Errorf("Signature = %v, want the raw credential", auth.Signature)
	}
	if auth.ChannelID != "chat-42" {
		t.Errorf("ChannelID = %v, want chat-42", auth.ChannelID)
	}

	var identity Identity
	if err := json.Unmarshal(auth.UserData, &identity); err != nil {
		t.Fatalf("UserData is not valid JSON: %v", err)
	}
	if identity.ID != "u-1" {
		t.Errorf("UserData id = %v, want u-1", identity.ID)
	}
}

func TestGenerateChannelAuth_MissingIdentity(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
	}{
		{"no_id_claim", jwt.MapClaims{"sub": "u-1"}},
		{"empty_id_claim", jwt.MapClaims{"id": ""}},
		{"non_string_id_claim", jwt.MapClaims{"id": 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newChannelAuthProvider(StaticTokenSource(signTestToken(t, tt.claims)))

			auth, err := provider.generateChannelAuth("chat-42")
			if err != nil {
				t.Fatalf("generateChannelAuth failed: %v", err)
			}

			var identity Identity
			if err := json.Unmarshal(auth.UserData, &identity); err != nil {
				t.Fatalf("UserData is not valid JSON: %v", err)
			}
			if identity.ID != "unknown" {
				t.Errorf("UserData id = %v, want the placeholder", identity.ID)
			}
		})
	}
}

func TestGenerateChannelAuth_MalformedToken(t *testing.T) {
	provider := newChannelAuthProvider(StaticTokenSource("not-a-jwt"))

	_, err := provider.generateChannelAuth("chat-42")
	if err == nil {
		t.Fatal("generateChannelAuth should fail for a malformed credential")
	}

	var enhancedErr *Error
	if !errors.As(err, &enhancedErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if enhancedErr.Type != ErrorTypeProtocol {
		t.Errorf("error type = %v, want %v", enhancedErr.Type, ErrorTypeProtocol)
	}
}

func TestGenerateChannelAuth_NoCredential(t *testing.T) {
	tests := []struct {
		name   string
		tokens TokenSource
	}{
		{"nil_source", nil},
		{"empty_token", StaticTokenSource("")},
		{"failing_source", failingTokenSource{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newChannelAuthProvider(tt.tokens)

			_, err := provider.generateChannelAuth("chat-42")
			if err == nil {
				t.Fatal("generateChannelAuth should fail without a credential")
			}

			var enhancedErr *Error
			if !errors.As(err, &enhancedErr) {
				t.Fatalf("error type = %T, want *Error", err)
			}
			if enhancedErr.Type != ErrorTypeAuth {
				t.Errorf("error type = %v, want %v", enhancedErr.Type, ErrorTypeAuth)
			}
		})
	}
}

func TestUserData(t *testing.T) {
	valid := signTestToken(t, jwt.MapClaims{"id": "u-1"})
	missing := signTestToken(t, jwt.MapClaims{"sub": "u-1"})

	tests := []struct {
		name   string
		tokens TokenSource
		wantID string
	}{
		{"valid_credential", StaticTokenSource(valid), "u-1"},
		{"missing_id_claim", StaticTokenSource(missing), "unknown"},
		{"malformed_credential", StaticTokenSource("not-a-jwt"), "unknown"},
		{"empty_token", StaticTokenSource(""), "unknown"},
		{"nil_source", nil, "unknown"},
		{"failing_source", failingTokenSource{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newChannelAuthProvider(tt.tokens)
			if got := provider.userData(); got.ID != tt.wantID {
				t.Errorf("userData().ID = %v, want %v", got.ID, tt.wantID)
			}
		})
	}
}

func TestIsAuthenticated(t *testing.T) {
	valid := signTestToken(t, jwt.MapClaims{"id": "u-1"})

	tests := []struct {
		name   string
		tokens TokenSource
		want   bool
	}{
		{"with_credential", StaticTokenSource(valid), true},
		{"empty_token", StaticTokenSource(""), false},
		{"nil_source", nil, false},
		{"failing_source", failingTokenSource{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newChannelAuthProvider(tt.tokens)
			if got := provider.isAuthenticated(); got != tt.want {
				t.Errorf("isAuthenticated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractIdentity(t *testing.T) {
	valid := signTestToken(t, jwt.MapClaims{"id": "u-1"})
	missing := signTestToken(t, jwt.MapClaims{"sub": "u-1"})

	t.Run("valid", func(t *testing.T) {
		identity, err := extractIdentity(valid)
		if err != nil {
			t.Fatalf("extractIdentity failed: %v", err)
		}
		if identity.ID != "u-1" {
			t.Errorf("ID = %v, want u-1", identity.ID)
		}
	})

	t.Run("missing_id", func(t *testing.T) {
		_, err := extractIdentity(missing)
		if !errors.Is(err, errIdentityMissing) {
			t.Errorf("error = %v, want errIdentityMissing", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := extractIdentity("not-a-jwt")
		if err == nil {
			t.Fatal("extractIdentity should fail for a malformed token")
		}
		if errors.Is(err, errIdentityMissing) {
			t.Error("malformed token should not report a missing identity")
		}
	})
}
