package auth

import (
	"testing"
	"time"
)

func TestGenerateAndVerify(t *testing.T) {
	tokens := NewTokens([]byte("test-secret"), time.Hour)

	tok, err := tokens.Generate("user-1", "Alex")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := tokens.Verify(tok)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", claims.UserID, "user-1")
	}
	if claims.Name != "Alex" {
		t.Errorf("Name = %q, want %q", claims.Name, "Alex")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewTokens([]byte("secret-a"), time.Hour)
	verifier := NewTokens([]byte("secret-b"), time.Hour)

	tok, err := issuer.Generate("user-1", "Alex")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := verifier.Verify(tok); err == nil {
		t.Error("Verify accepted a token signed with a different secret")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	tokens := NewTokens([]byte("test-secret"), -time.Minute)

	tok, err := tokens.Generate("user-1", "Alex")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := tokens.Verify(tok); err == nil {
		t.Error("Verify accepted an expired token")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	tokens := NewTokens([]byte("test-secret"), time.Hour)

	if _, err := tokens.Verify("not.a.jwt"); err == nil {
		t.Error("Verify accepted a malformed token")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2", 4)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "hunter2hunter2" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "hunter2hunter2") {
		t.Error("CheckPassword rejected the correct password")
	}
	if CheckPassword(hash, "wrong-password") {
		t.Error("CheckPassword accepted the wrong password")
	}
}
