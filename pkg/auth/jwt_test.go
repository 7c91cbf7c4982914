package auth

import (
	"strings"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	a := New("test-secret")

	token, err := a.GenerateToken("alice")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "alice" {
		t.Fatalf("expected alice, got %q", claims.UserID)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := New("secret-one").GenerateToken("alice")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := New("secret-two").ValidateToken(token); err == nil {
		t.Fatal("expected validation to fail with a different secret")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	if _, err := New("secret").ValidateToken("not.a.token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestAnonymousIDFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := AnonymousID()
		if !strings.HasPrefix(id, "Anon-") {
			t.Fatalf("expected Anon- prefix, got %q", id)
		}
		if len(id) != len("Anon-")+6 {
			t.Fatalf("unexpected length for %q", id)
		}
		seen[id] = true
	}
	if len(seen) < 90 {
		t.Fatalf("anonymous ids collide too often: %d unique of 100", len(seen))
	}
}
