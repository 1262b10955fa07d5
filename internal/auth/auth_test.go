package auth

import (
	"testing"

	"ragchat/internal/config"
)

func TestJWTRoundTrip(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	token, err := GenerateJWT("user-1")
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	userID, err := ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT() error = %v", err)
	}
	if userID != "user-1" {
		t.Errorf("subject = %q, want %q", userID, "user-1")
	}
}

func TestValidateJWT_Garbage(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"

	if _, err := ValidateJWT("not-a-token"); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	token, err := GenerateJWT("user-1")
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	config.AppConfig.JWTSecret = "different-secret"
	if _, err := ValidateJWT(token); err == nil {
		t.Error("expected error for token signed with another secret")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "hunter22" {
		t.Error("hash must not equal the plaintext password")
	}
	if !CheckPasswordHash("hunter22", hash) {
		t.Error("correct password rejected")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Error("wrong password accepted")
	}
}
