package internal

import (
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Config prints the configuration a build would use after the file,
BINARYBUILDER_* variables and flags are applied. Secrets are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.S3.SecretAccessKey != "" {
		cfg.S3.SecretAccessKey = "********"
	}
	return cfg.Write(cmd.OutOrStdout())
}
