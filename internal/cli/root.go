package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	factory "github.com/goliatone/go-factory"
	"github.com/goliatone/go-factory/pkg/fixtures"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	file  string
	seed  uint64
	debug bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:          "factoryctl",
		Short:        "Preview test data produced by YAML factory definitions",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.file, "file", "f", "factories.yaml", "Fixture file with factory definitions")
	cmd.PersistentFlags().Uint64Var(&flags.seed, "seed", 0, "Seed for random values (0 picks a random seed)")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Log registry activity to stderr")

	cmd.AddCommand(attrsCmd(flags))
	cmd.AddCommand(listCmd(flags))
	return cmd
}

// load builds a registry from the fixture file named by the flags.
func (f *rootFlags) load(stderr io.Writer) (*factory.Registry, *fixtures.Document, error) {
	opts := []factory.Option{}
	if f.seed != 0 {
		opts = append(opts, factory.WithSeed(f.seed))
	}
	if f.debug {
		logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, factory.WithLogger(logger))
	}

	doc, err := fixtures.LoadFile(f.file)
	if err != nil {
		return nil, nil, err
	}
	r := factory.New(opts...)
	if err := doc.Apply(r); err != nil {
		return nil, nil, err
	}
	return r, doc, nil
}
