package security

import (
	"errors"
	"testing"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

func TestAdminPasswordValidatorSuccess(t *testing.T) {
	validator := AdminPasswordValidator("alice", "alice@example.com")

	password := "C0mplex!Passphrase#2025"
	if strength := zxcvbn.PasswordStrength(password, nil); strength.Score < defaultMinZxcvbnScore {
		t.Fatalf("test password unexpectedly weak: score=%d", strength.Score)
	}
	if err := validator.Validate(password); err != nil {
		t.Fatalf("expected password to pass validation, got %v", err)
	}
}

func TestAdminPasswordValidatorViolations(t *testing.T) {
	validator := AdminPasswordValidator()

	cases := map[string]string{
		"Short1!":           "min_length",
		"lowercasepassword": "character_classes",
		"Password123456":    "weak_password",
	}

	for password, expectedCode := range cases {
		err := validator.Validate(password)
		if err == nil {
			t.Fatalf("expected validation error %s for %q", expectedCode, password)
		}
		var vErr *PasswordValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected PasswordValidationError, got %T", err)
		}
		if vErr.Code != expectedCode {
			t.Fatalf("expected %s code for %q, got %s", expectedCode, password, vErr.Code)
		}
	}
}

func TestNilPasswordValidator(t *testing.T) {
	var validator *PasswordValidator
	if err := validator.Validate("anything"); err == nil {
		t.Fatal("expected error from nil validator")
	}
}
