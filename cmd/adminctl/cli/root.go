package cli

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "MEDIA_ADMIN"

// Execute builds the command tree and runs it.
func Execute() error {
	return newRootCmd(viper.New()).Execute()
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adminctl",
		Short: "Operator tooling for the media admin service",
		Long: `adminctl prepares admin credentials out of band: it hashes passwords in the
format the API verifies and computes TOTP codes for an enrolled secret.

Flags can also be set through MEDIA_ADMIN_* environment variables or a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cmd.AddCommand(newHashPasswordCmd(v))
	cmd.AddCommand(newTOTPCodeCmd(v))

	return cmd
}
