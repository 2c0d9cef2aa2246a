package internal

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "binarybuilder",
	Short: "binarybuilder builds an ordered chain of native packages",
	Long: `binarybuilder fetches, verifies, unpacks, patches, configures, compiles and
installs native packages into an isolated installation tree, resuming each
package from its last completed stage.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Configuration file (default <cache dir>/binarybuilder/config.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Stream command output")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.Error.Sprint(err.Error()))
		os.Exit(1)
	}
}
