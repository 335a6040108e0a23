package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/arklim/media-admin/internal/infra/security"
)

func newHashPasswordCmd(v *viper.Viper) *cobra.Command {
	var (
		password      string
		username      string
		email         string
		skipPolicy    bool
		passwordStdin bool
	)

	defaults := security.DefaultArgon2Config()

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash an admin password for the admin_users table",
		Example: `  adminctl hash-password --username alice --email alice@example.com
  echo -n 'C0mplex!Passphrase#2025' | adminctl hash-password --password-stdin`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				var err error
				password, err = readPassword(cmd, passwordStdin)
				if err != nil {
					return err
				}
			}

			if !skipPolicy {
				if err := security.AdminPasswordValidator(username, email).Validate(password); err != nil {
					return fmt.Errorf("password rejected: %w", err)
				}
			}

			hasher, err := security.NewPasswordHasher(security.Argon2Config{
				Memory:      v.GetUint32("argon2.memory"),
				Iterations:  v.GetUint32("argon2.iterations"),
				Parallelism: uint8(v.GetUint("argon2.parallelism")),
				SaltLength:  v.GetUint32("argon2.salt_length"),
				KeyLength:   v.GetUint32("argon2.key_length"),
			})
			if err != nil {
				return err
			}

			hash, err := hasher.Hash(password)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&password, "password", "", "password to hash (prompted if omitted)")
	flags.BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	flags.StringVar(&username, "username", "", "admin username, penalised by the strength check")
	flags.StringVar(&email, "email", "", "admin email, penalised by the strength check")
	flags.BoolVar(&skipPolicy, "skip-policy", false, "hash without enforcing the password policy")
	flags.Uint32("argon2-memory", defaults.Memory, "argon2 memory in KiB")
	flags.Uint32("argon2-iterations", defaults.Iterations, "argon2 iterations")
	flags.Uint8("argon2-parallelism", defaults.Parallelism, "argon2 parallelism")
	flags.Uint32("argon2-salt-length", defaults.SaltLength, "argon2 salt length in bytes")
	flags.Uint32("argon2-key-length", defaults.KeyLength, "argon2 key length in bytes")

	for _, key := range []string{"memory", "iterations", "parallelism", "salt_length", "key_length"} {
		_ = v.BindPFlag("argon2."+key, flags.Lookup("argon2-"+strings.ReplaceAll(key, "_", "-")))
	}

	return cmd
}

func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	in := cmd.InOrStdin()

	if f, ok := in.(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}

		fmt.Fprint(cmd.ErrOrStderr(), "Confirm password: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read confirmation: %w", err)
		}

		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is empty")
	}
	return password, nil
}
