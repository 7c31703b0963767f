package auth

import (
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Minute)

	token, err := mgr.Generate("operator")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := mgr.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Username != "operator" {
		t.Errorf("expected operator, got %q", claims.Username)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-a", time.Minute).Generate("operator")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, err := NewJWTManager("secret-b", time.Minute).Validate(token); err == nil {
		t.Fatal("expected validation failure with wrong secret")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	mgr := NewJWTManager("test-secret", -time.Minute)

	token, err := mgr.Generate("operator")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := mgr.Validate(token); err == nil {
		t.Fatal("expected validation failure for expired token")
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := VerifyPassword("hunter2", hash); err != nil {
		t.Errorf("VerifyPassword correct password: %v", err)
	}
	if err := VerifyPassword("wrong", hash); err == nil {
		t.Error("expected mismatch for wrong password")
	}
}
