// Package cli implements the webrequest command line tool.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/revere-dev/webrequest/internal/logging"
	"github.com/revere-dev/webrequest/internal/output"
)

var version = "0.1.0"

// errFailed reports a failure that has already been rendered.
var errFailed = errors.New("request failed")

// globalOptions are the flags shared by every command.
type globalOptions struct {
	format   string
	verbose  bool
	noColor  bool
	logLevel string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:     "webrequest",
		Short:   "A small terminal HTTP client",
		Version: version,
		Long: `webrequest sends HTTP requests from the terminal. Single requests are
executed synchronously; collections of requests run concurrently and
finish with a latency summary.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.format, "output", "o", string(output.FormatText), "Output format: text, json or yaml")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to $"+logging.EnvLevel)

	for _, method := range verbs {
		root.AddCommand(newVerbCmd(method, opts))
	}
	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newValidateCmd(opts))

	return root
}

// Execute runs the command line tool with os.Args. Failures are printed to
// stderr.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil && !errors.Is(err, errFailed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// setup resolves the output format, color mode and logger for cmd.
func (o *globalOptions) setup(cmd *cobra.Command) (output.FormatProvider, zerolog.Logger, error) {
	format, err := output.ParseFormat(o.format)
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	noColor := output.ColorDisabled(cmd.OutOrStdout(), o.noColor)
	logger, err := logging.New(cmd.ErrOrStderr(), o.logLevel, output.ColorDisabled(cmd.ErrOrStderr(), o.noColor))
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	return output.GetFormatter(format, o.verbose, noColor), logger, nil
}
