// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomtom215/meshguard/internal/engine"
	"github.com/tomtom215/meshguard/internal/flows"
	"github.com/tomtom215/meshguard/internal/models"
)

// emptySource backs the registry of an offline engine.
type emptySource struct{}

func (emptySource) ListFlows(context.Context) ([]*models.FlowDefinition, error) {
	return nil, nil
}

// NewDryRunCommand creates the dry-run command.
func NewDryRunCommand(rootOpts *RootOptions) *cobra.Command {
	var eventPath string

	cmd := &cobra.Command{
		Use:   "dry-run <flow.json> --event <event.json>",
		Short: "Evaluate a flow against one event without side effects",
		Long: `Run a single flow against a single event and report how each node
evaluated, which actions would run with their resolved config, and the
alert title and message.

Stateful conditions start from empty state. Pass --config to evaluate
geofences against the zones and station from a meshguard config file.
Exits 1 when the flow would not fire.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDryRun(rootOpts, cmd, args[0], eventPath)
		},
	}
	cmd.Flags().StringVar(&eventPath, "event", "", "event envelope JSON file (\"-\" for stdin)")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func runDryRun(opts *RootOptions, cmd *cobra.Command, flowPath, eventPath string) error {
	if flowPath == "-" && eventPath == "-" {
		return commandError("flow and event cannot both come from stdin", nil)
	}
	defs, err := loadFlows(flowPath, cmd.InOrStdin())
	if err != nil {
		return commandError("failed to read flow", err)
	}
	if len(defs) != 1 {
		return commandError(fmt.Sprintf("expected one flow, got %d", len(defs)), nil)
	}
	ev, err := loadEvent(eventPath, cmd.InOrStdin())
	if err != nil {
		return commandError("failed to read event", err)
	}
	env, err := loadEnvironment(opts.Config)
	if err != nil {
		return commandError("failed to load config", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := dryRun(ctx, env, defs[0], ev)
	if err != nil {
		return &ExitError{Code: ExitFailure, Message: "dry run failed", Err: err}
	}

	f := newFormatter(opts, cmd.OutOrStdout())
	if err := f.result(res.WouldFire, res, func(w io.Writer) { printDryRun(w, defs[0], res) }); err != nil {
		return err
	}
	if !res.WouldFire {
		return &ExitError{Code: ExitFailure, Message: "flow would not fire"}
	}
	return nil
}

// dryRun evaluates def on an engine with no dispatcher and no live state.
func dryRun(ctx context.Context, env *environment, def *models.FlowDefinition, ev *models.Event) (*engine.TestResult, error) {
	registry := flows.NewRegistry(emptySource{})
	if err := registry.Load(ctx); err != nil {
		return nil, err
	}
	cfg := engine.DefaultConfig()
	cfg.Station = env.station
	eng := engine.New(cfg, registry, env.zones, nil)
	return eng.DryRun(ctx, def, ev)
}

func printDryRun(w io.Writer, def *models.FlowDefinition, res *engine.TestResult) {
	fmt.Fprintf(w, "flow:     %s\n", def.Name)
	fmt.Fprintf(w, "trigger:  %s\n", matchWord(res.TriggerMatched))
	for _, n := range res.Nodes {
		line := fmt.Sprintf("  %-12s %-10s %-20s %s", n.NodeID, n.Type, n.Subtype, n.Result)
		if n.Error != "" {
			line += "  (" + n.Error + ")"
		}
		fmt.Fprintln(w, line)
	}
	for _, a := range res.Actions {
		fmt.Fprintf(w, "action:   %s (%s)\n", a.Type, a.NodeID)
	}
	if res.Title != "" {
		fmt.Fprintf(w, "title:    %s\n", res.Title)
		fmt.Fprintf(w, "message:  %s\n", res.Message)
	}
	fmt.Fprintf(w, "fires:    %t\n", res.WouldFire)
}

func matchWord(ok bool) string {
	if ok {
		return "matched"
	}
	return "no match"
}
