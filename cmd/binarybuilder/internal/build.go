package internal

import (
	"github.com/spf13/cobra"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/build"
)

var forceStage string

var buildCmd = &cobra.Command{
	Use:   "build [package...]",
	Short: "Build packages in the given order",
	Long: `Build runs every stage of each named package in order, skipping stages
that already completed. With no names the default package list is built.
The first failure stops the run.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&forceStage, "force-stage", "", "Repeat this stage and every later one for the named packages")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	var from build.Stage
	if forceStage != "" {
		var err error
		if from, err = build.ParseStage(forceStage); err != nil {
			return err
		}
	}
	s, err := newSession(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if forceStage != "" {
		if err := s.driver.Reset(args, from); err != nil {
			return err
		}
	}
	if err := s.driver.Run(cmd.Context(), args); err != nil {
		return err
	}
	s.log.Info("all packages built")
	return nil
}
