package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/automation/internal/config"
)

type validateResult struct {
	Valid     bool   `json:"valid"`
	Version   string `json:"version"`
	Rules     int    `json:"rules"`
	Execution bool   `json:"executionEnabled"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var rulesPath string
	cmd := &cobra.Command{
		Use:           "validate",
		Short:         "Validate a rules file",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(newOutput(rootOpts, cmd), rulesPath)
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", "configs/rules.yaml", "path to the rules YAML file")
	return cmd
}

func runValidate(out *output, path string) error {
	cfg, err := loadRules(path)
	if err != nil {
		return out.fail(err)
	}
	res := validateResult{
		Valid:     true,
		Version:   cfg.Version,
		Rules:     len(cfg.Rules),
		Execution: cfg.Execution.Enabled(),
	}
	return out.success(res, fmt.Sprintf("✓ %s valid: version %s, %d rule(s)", path, cfg.Version, len(cfg.Rules)))
}

func loadRules(path string) (*config.RuleConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
