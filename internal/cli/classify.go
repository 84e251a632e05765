package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/automation/internal/observability"
)

// NewClassifyCommand creates the classify command.
func NewClassifyCommand(rootOpts *RootOptions) *cobra.Command {
	var in observability.FailureInput
	cmd := &cobra.Command{
		Use:           "classify",
		Short:         "Show the failure category for an action-run error",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			category := observability.ClassifyFailure(in)
			return newOutput(rootOpts, cmd).success(
				map[string]any{"input": in, "category": category},
				string(category),
			)
		},
	}
	cmd.Flags().StringVar(&in.ErrorCode, "code", "", "error code (e.g. EXT_HTTP_503, TIMEOUT)")
	cmd.Flags().StringVar(&in.ErrorMessage, "message", "", "error message")
	cmd.Flags().StringVar(&in.GateResult, "gate", "", fmt.Sprintf("gate result (%s when blocked)", observability.GateResultBlocked))
	cmd.Flags().StringVar(&in.RunnerType, "runner", "", "runner type")
	return cmd
}
