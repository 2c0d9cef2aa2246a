package internal

import (
	"github.com/spf13/cobra"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/build"
)

var resetCmd = &cobra.Command{
	Use:   "reset <package> [stage]",
	Short: "Forget completed stages of a package",
	Long: `Reset removes the completion markers of stage and every later stage, so
the next build repeats them. Without a stage the whole package is rebuilt.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	from := build.Fetch
	if len(args) == 2 {
		var err error
		if from, err = build.ParseStage(args[1]); err != nil {
			return err
		}
	}
	s, err := newSession(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if err := s.driver.Reset(args[:1], from); err != nil {
		return err
	}
	s.log.WithField("package", args[0]).Infof("reset from %s", from)
	return nil
}
