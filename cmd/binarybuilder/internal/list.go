package internal

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/recipes"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the known packages",
	Long:  `List prints the default build order, then every other known package.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	registry, err := recipes.NewRegistry()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	defaults := registry.Default()
	fmt.Fprintln(out, "default order:")
	for i, name := range defaults {
		fmt.Fprintf(out, "%4d  %s\n", i+1, name)
	}
	fmt.Fprintln(out, "other packages:")
	for _, name := range registry.Names() {
		if !slices.Contains(defaults, name) {
			fmt.Fprintf(out, "      %s\n", name)
		}
	}
	return nil
}
