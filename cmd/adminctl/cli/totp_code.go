package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arklim/media-admin/internal/infra/security"
)

func newTOTPCodeCmd(v *viper.Viper) *cobra.Command {
	var (
		at      string
		account string
	)

	defaults := security.DefaultTOTPConfig()

	cmd := &cobra.Command{
		Use:   "totp-code SECRET",
		Short: "Print the current TOTP code for an enrolled secret",
		Example: `  adminctl totp-code JBSWY3DPEHPK3PXP
  adminctl totp-code JBSWY3DPEHPK3PXP --at 2024-05-10T09:00:00Z --account alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := strings.ToUpper(strings.TrimSpace(args[0]))
			if secret == "" {
				return errors.New("secret is required")
			}

			now := time.Now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
				now = parsed
			}

			engine, err := security.NewTOTPEngine(security.TOTPConfig{
				Period: v.GetDuration("mfa.period"),
				Digits: v.GetInt("mfa.digits"),
			})
			if err != nil {
				return err
			}

			code, err := engine.Code(secret, now)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			remaining := engine.Period() - time.Duration(now.Unix()%int64(engine.Period()/time.Second))*time.Second
			fmt.Fprintf(out, "%s (valid for %s)\n", code, remaining)

			if account != "" {
				uri, err := engine.ProvisioningURI(secret, account, v.GetString("mfa.issuer"))
				if err != nil {
					return err
				}
				fmt.Fprintln(out, uri)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&at, "at", "", "compute the code at this RFC3339 time instead of now")
	flags.StringVar(&account, "account", "", "also print the otpauth:// URI for this account")
	flags.Duration("mfa-period", defaults.Period, "TOTP time-step")
	flags.Int("mfa-digits", defaults.Digits, "TOTP code length")
	flags.String("mfa-issuer", "Media Admin", "issuer shown in authenticator apps")

	for _, key := range []string{"period", "digits", "issuer"} {
		_ = v.BindPFlag("mfa."+key, flags.Lookup("mfa-"+key))
	}

	return cmd
}
