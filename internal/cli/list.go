package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func listCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the factories of the fixture file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, doc, err := flags.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range doc.Names() {
				model := doc.Factories[name].Model
				if model == "" {
					model = name
				}
				fmt.Fprintf(out, "- %s  (%s, %d attrs)\n", name, model, len(doc.Factories[name].Attrs))
			}
			return nil
		},
	}
}
