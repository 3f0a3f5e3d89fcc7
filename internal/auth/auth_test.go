package auth

import (
	"errors"
	"testing"
	"time"
)

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret-key-0123456789abcdef", "splitledger", time.Hour)

	token, err := m.Generate("alice", "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.AccountID != "alice" || claims.Role != RoleMember {
		t.Errorf("claims = %+v, want alice/member", claims)
	}

	tests := []struct {
		name    string
		manager *JWTManager
		token   string
	}{
		{"garbage", m, "not-a-token"},
		{"wrong secret", NewJWTManager("another-secret-key-0123456789ab", "splitledger", time.Hour), token},
		{"wrong issuer", NewJWTManager("test-secret-key-0123456789abcdef", "elsewhere", time.Hour), token},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.manager.Validate(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Validate error = %v, want ErrInvalidToken", err)
			}
		})
	}

	t.Run("expired", func(t *testing.T) {
		short := NewJWTManager("test-secret-key-0123456789abcdef", "", -time.Minute)
		expired, err := short.Generate("bob", RoleOperator)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if _, err := short.Validate(expired); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Validate error = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("empty account", func(t *testing.T) {
		if _, err := m.Generate("", RoleMember); !errors.Is(err, ErrNoAccount) {
			t.Errorf("Generate error = %v, want ErrNoAccount", err)
		}
	})
}

func TestOperatorKey(t *testing.T) {
	if _, err := HashOperatorKey("short"); !errors.Is(err, ErrWeakOperatorKey) {
		t.Errorf("HashOperatorKey(short) = %v, want ErrWeakOperatorKey", err)
	}

	hash, err := HashOperatorKey("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashOperatorKey failed: %v", err)
	}

	if err := VerifyOperatorKey(hash, "correct horse battery staple"); err != nil {
		t.Errorf("VerifyOperatorKey failed: %v", err)
	}
	if err := VerifyOperatorKey(hash, "wrong horse battery staple"); !errors.Is(err, ErrInvalidOperatorKey) {
		t.Errorf("VerifyOperatorKey(wrong) = %v, want ErrInvalidOperatorKey", err)
	}
	if err := VerifyOperatorKey("", "anything"); !errors.Is(err, ErrNoOperatorKey) {
		t.Errorf("VerifyOperatorKey(no hash) = %v, want ErrNoOperatorKey", err)
	}
}
