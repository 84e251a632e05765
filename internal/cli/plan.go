package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/automation/internal/audit"
	"github.com/gyaneshwarpardhi/automation/internal/event"
	"github.com/gyaneshwarpardhi/automation/internal/rule"
	"github.com/gyaneshwarpardhi/automation/internal/runtime"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	var rulesPath, eventPath string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan one event against a rules file without executing anything",
		Long: `Plan reads an event as JSON (from --event, or stdin when --event is "-")
and prints the plan the server would produce for it, including the execution
gate and policy decisions configured in the rules file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newOutput(rootOpts, cmd)
			ev, err := readEvent(cmd.InOrStdin(), eventPath)
			if err != nil {
				return out.fail(err)
			}
			return runPlan(cmd, out, rulesPath, ev)
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", "configs/rules.yaml", "path to the rules YAML file")
	cmd.Flags().StringVar(&eventPath, "event", "-", "path to the event JSON file")
	return cmd
}

func runPlan(cmd *cobra.Command, out *output, rulesPath string, ev *event.Event) error {
	cfg, err := loadRules(rulesPath)
	if err != nil {
		return out.fail(err)
	}
	g, p, err := runtime.ExecutionFromConfig(cfg.Execution)
	if err != nil {
		return out.fail(err)
	}
	rt := runtime.New(audit.NewMemoryStore(),
		runtime.WithMatcher(rule.NewMatcher(rule.NewStaticCatalog(rule.Build(cfg)))),
		runtime.WithExecution(g, p),
	)
	res, err := rt.RunEvent(cmd.Context(), ev)
	if err != nil {
		return out.fail(err)
	}

	lines := []string{fmt.Sprintf("event %s (%s) tenant %s: %d rule(s) matched, %d action(s) planned",
		ev.ID, ev.Name, ev.TenantID, len(res.Plan.MatchedRules), res.Plan.ActionCount())}
	lines = append(lines, res.Explain.DecisionPath...)
	for _, m := range res.Plan.MatchedRules {
		for _, it := range m.PlannedActions {
			lines = append(lines, fmt.Sprintf("  %s → %s [%s]", m.RuleID, it.Type, it.Mode))
		}
	}
	return out.success(res, lines...)
}

func readEvent(stdin io.Reader, path string) (*event.Event, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open event: %w", err)
		}
		defer f.Close()
		r = f
	}
	var ev event.Event
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	return &ev, nil
}
