package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kozaktomas/face-login/internal/database"
)

const testSecret = "test-secret-key"

func testIdentity() *database.Identity {
	return &database.Identity{
		ID:    42,
		Name:  "Alice Example",
		Email: "alice@example.com",
	}
}

func TestIssueAndVerify(t *testing.T) {
	issuer, err := NewIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("Failed to create issuer: %v", err)
	}

	token, err := issuer.Issue(testIdentity())
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	if token == "" {
		t.Fatal("Expected non-empty token")
	}

	identityID, claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Failed to verify token: %v", err)
	}
	if identityID != 42 {
		t.Errorf("Expected identity 42, got %d", identityID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("Unexpected email claim: %s", claims.Email)
	}
	if claims.Name != "Alice Example" {
		t.Errorf("Unexpected name claim: %s", claims.Name)
	}
	if claims.ID == "" {
		t.Error("Expected JTI to be set")
	}
}

func TestTokensAreUnique(t *testing.T) {
	issuer, _ := NewIssuer(testSecret, time.Hour)

	first, err := issuer.Issue(testIdentity())
	if err != nil {
		t.Fatalf("Failed to issue first token: %v", err)
	}
	second, err := issuer.Issue(testIdentity())
	if err != nil {
		t.Fatalf("Failed to issue second token: %v", err)
	}
	if first == second {
		t.Error("Expected distinct tokens for separate sessions")
	}
}

func TestVerifyRejections(t *testing.T) {
	issuer, _ := NewIssuer(testSecret, time.Hour)

	t.Run("ExpiredToken", func(t *testing.T) {
		shortLived, _ := NewIssuer(testSecret, time.Nanosecond)
		token, err := shortLived.Issue(testIdentity())
		if err != nil {
			t.Fatalf("Failed to issue token: %v", err)
		}

		time.Sleep(10 * time.Millisecond)
		if _, _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
		}
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other, _ := NewIssuer("different-secret", time.Hour)
		token, _ := other.Issue(testIdentity())

		if _, _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken for wrong secret, got %v", err)
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if _, _, err := issuer.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken for garbage input, got %v", err)
		}
	})

	t.Run("NonNumericSubject", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("Failed to sign token: %v", err)
		}

		if _, _, err := issuer.Verify(signed); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken for non-numeric subject, got %v", err)
		}
	})

	t.Run("NoneAlgorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   "42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("Failed to sign token: %v", err)
		}

		if _, _, err := issuer.Verify(signed); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken for alg=none token, got %v", err)
		}
	})
}

func TestNewIssuerValidation(t *testing.T) {
	if _, err := NewIssuer("", time.Hour); err == nil {
		t.Error("Expected error for empty secret")
	}

	issuer, err := NewIssuer(testSecret, 0)
	if err != nil {
		t.Fatalf("Failed to create issuer: %v", err)
	}
	if issuer.TTL() != time.Hour {
		t.Errorf("Expected default TTL of 1h, got %v", issuer.TTL())
	}
}
