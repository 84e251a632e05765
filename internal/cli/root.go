// Package cli implements automationctl, an offline companion to the server
// for validating rule files and dry-running events against them.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the automationctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "automationctl",
		Short: "Validate automation rules and plan events offline",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewClassifyCommand(opts))
	return cmd
}

// response is the JSON envelope for every command.
type response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

type output struct {
	format string
	w      io.Writer
}

func newOutput(opts *RootOptions, cmd *cobra.Command) *output {
	return &output{format: opts.Format, w: cmd.OutOrStdout()}
}

// success prints data as JSON, or the text lines in text mode.
func (o *output) success(data any, lines ...string) error {
	if o.format == "json" {
		return json.NewEncoder(o.w).Encode(response{Status: "ok", Data: data})
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(o.w, l); err != nil {
			return err
		}
	}
	return nil
}

// fail prints err and returns it so the process exits non-zero.
func (o *output) fail(err error) error {
	if o.format == "json" {
		_ = json.NewEncoder(o.w).Encode(response{Status: "error", Error: err.Error()})
	} else {
		fmt.Fprintf(o.w, "✗ %s\n", err)
	}
	return err
}
