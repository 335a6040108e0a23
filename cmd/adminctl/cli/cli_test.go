package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/arklim/media-admin/internal/infra/security"
)

const testSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(viper.New())
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func fastArgon2Flags() []string {
	return []string{"--argon2-memory", "8192", "--argon2-iterations", "1", "--argon2-parallelism", "1"}
}

func TestHashPasswordProducesVerifiableHash(t *testing.T) {
	const password = "C0mplex!Passphrase#2025"

	args := append([]string{"hash-password", "--password", password, "--username", "alice"}, fastArgon2Flags()...)
	out, err := runCommand(t, "", args...)
	if err != nil {
		t.Fatalf("hash-password: %v", err)
	}

	encoded := strings.TrimSpace(out)
	if !strings.HasPrefix(encoded, "argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected hash format %q", encoded)
	}

	hasher, err := security.NewPasswordHasher(security.Argon2Config{Memory: 8192, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	if !hasher.Verify(password, encoded) {
		t.Fatal("expected hash to verify against the hashed password")
	}
}

func TestHashPasswordReadsStdin(t *testing.T) {
	args := append([]string{"hash-password", "--password-stdin"}, fastArgon2Flags()...)
	out, err := runCommand(t, "C0mplex!Passphrase#2025\n", args...)
	if err != nil {
		t.Fatalf("hash-password: %v", err)
	}
	if !strings.HasPrefix(out, "argon2id$") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestHashPasswordEnforcesPolicy(t *testing.T) {
	args := append([]string{"hash-password", "--password", "short"}, fastArgon2Flags()...)
	if _, err := runCommand(t, "", args...); err == nil || !strings.Contains(err.Error(), "password rejected") {
		t.Fatalf("expected policy rejection, got %v", err)
	}

	args = append([]string{"hash-password", "--password", "short", "--skip-policy"}, fastArgon2Flags()...)
	if _, err := runCommand(t, "", args...); err != nil {
		t.Fatalf("expected --skip-policy to bypass the check, got %v", err)
	}
}

func TestHashPasswordRejectsEmptyStdin(t *testing.T) {
	if _, err := runCommand(t, "", "hash-password"); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestHashPasswordReadsArgon2FromEnv(t *testing.T) {
	t.Setenv("MEDIA_ADMIN_ARGON2_MEMORY", "8192")
	t.Setenv("MEDIA_ADMIN_ARGON2_ITERATIONS", "2")
	t.Setenv("MEDIA_ADMIN_ARGON2_PARALLELISM", "1")

	out, err := runCommand(t, "", "hash-password", "--password", "C0mplex!Passphrase#2025")
	if err != nil {
		t.Fatalf("hash-password: %v", err)
	}
	if !strings.Contains(out, "m=8192,t=2,p=1") {
		t.Fatalf("expected env parameters in hash, got %q", out)
	}
}

func TestHashPasswordRejectsWeakArgon2Parameters(t *testing.T) {
	_, err := runCommand(t, "", "hash-password", "--password", "C0mplex!Passphrase#2025", "--argon2-memory", "1024")
	if err == nil {
		t.Fatal("expected invalid argon2 configuration error")
	}
}

func TestTOTPCodeMatchesEngine(t *testing.T) {
	at := time.Date(2024, 5, 10, 9, 0, 10, 0, time.UTC)

	engine, err := security.NewTOTPEngine(security.DefaultTOTPConfig())
	if err != nil {
		t.Fatalf("NewTOTPEngine: %v", err)
	}
	want, err := engine.Code(testSecret, at)
	if err != nil {
		t.Fatalf("Code: %v", err)
	}

	out, err := runCommand(t, "", "totp-code", strings.ToLower(testSecret), "--at", at.Format(time.RFC3339))
	if err != nil {
		t.Fatalf("totp-code: %v", err)
	}

	if got := strings.TrimSpace(out); got != want+" (valid for 20s)" {
		t.Fatalf("unexpected output %q, want code %s", got, want)
	}
}

func TestTOTPCodePrintsProvisioningURI(t *testing.T) {
	out, err := runCommand(t, "", "totp-code", testSecret, "--account", "alice", "--mfa-issuer", "Newsroom")
	if err != nil {
		t.Fatalf("totp-code: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected code and uri lines, got %q", out)
	}
	if !strings.HasPrefix(lines[1], "otpauth://totp/Newsroom:alice?") {
		t.Fatalf("unexpected provisioning uri %q", lines[1])
	}
}

func TestTOTPCodeRejectsBadInput(t *testing.T) {
	cases := map[string][]string{
		"missing secret": {"totp-code"},
		"bad time":       {"totp-code", testSecret, "--at", "yesterday"},
		"bad digits":     {"totp-code", testSecret, "--mfa-digits", "7"},
	}

	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := runCommand(t, "", args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
