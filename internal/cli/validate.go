package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/revere-dev/webrequest/internal/config"
	"github.com/revere-dev/webrequest/internal/output"
)

func newValidateCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a collection file without sending anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateCollection(cmd, global, args[0])
		},
	}
}

func validateCollection(cmd *cobra.Command, global *globalOptions, path string) error {
	coll, err := config.LoadCollection(path)
	if err != nil {
		return err
	}

	noColor := output.ColorDisabled(cmd.OutOrStdout(), global.noColor)
	out := cmd.OutOrStdout()

	errs := config.ValidateCollection(coll)
	if len(errs) == 0 {
		fmt.Fprintf(out, "%s %s is valid (%d requests)\n", output.SuccessIcon(noColor), path, len(coll.Requests))
		return nil
	}

	for _, e := range errs {
		fmt.Fprintf(out, "%s %s\n", output.ErrorIcon(noColor), e.Error())
	}
	fmt.Fprintf(out, "%d validation errors in %s\n", len(errs), path)
	return errFailed
}
