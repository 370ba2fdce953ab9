package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	factory "github.com/goliatone/go-factory"
)

func attrsCmd(flags *rootFlags) *cobra.Command {
	var (
		count int
		sets  []string
		opts  []string
	)

	c := &cobra.Command{
		Use:   "attrs NAME",
		Short: "Print the resolved attributes of a factory as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			buildOpts, err := parseAssignments(opts)
			if err != nil {
				return err
			}

			r, _, err := flags.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			var result any
			if count > 1 {
				result, err = r.AttrsMany(cmd.Context(), args[0], count, overrides, buildOpts)
			} else {
				result, err = r.Attrs(cmd.Context(), args[0], overrides, buildOpts)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	c.Flags().IntVarP(&count, "count", "n", 1, "Number of attribute sets to generate")
	c.Flags().StringArrayVar(&sets, "set", nil, "Override an attribute (key=value, value parsed as YAML)")
	c.Flags().StringArrayVar(&opts, "opt", nil, "Pass a build option (key=value, value parsed as YAML)")
	return c
}

// parseAssignments turns key=value pairs into a map. Values are decoded as
// YAML scalars so numbers and booleans keep their type.
func parseAssignments(pairs []string) (factory.Attrs, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(factory.Attrs, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected key=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		out[key] = value
	}
	return out, nil
}
