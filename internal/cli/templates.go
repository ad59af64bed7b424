// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/meshguard/internal/flows"
)

// NewTemplatesCommand creates the templates command group.
func NewTemplatesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Browse and instantiate built-in flow templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListTemplates(rootOpts, cmd)
		},
	}
	cmd.AddCommand(newTemplateShowCommand(rootOpts))
	cmd.AddCommand(newTemplateInstantiateCommand())
	return cmd
}

func runListTemplates(opts *RootOptions, cmd *cobra.Command) error {
	list := flows.Templates()
	f := newFormatter(opts, cmd.OutOrStdout())
	return f.result(true, list, func(w io.Writer) {
		for _, t := range list {
			fmt.Fprintf(w, "%-28s %-10s %-10s %s\n", t.ID, t.Category, t.Severity, t.Name)
		}
	})
}

func newTemplateShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <template-id>",
		Short: "Show a template and its parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := flows.GetTemplate(args[0])
			if err != nil {
				return templateError(err)
			}
			f := newFormatter(rootOpts, cmd.OutOrStdout())
			return f.result(true, t, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%s)\n%s\n\n", t.Name, t.ID, t.Description)
				fmt.Fprintf(w, "severity: %s\ncategory: %s\n", t.Severity, t.Category)
				names := make([]string, 0, len(t.Parameters))
				for name := range t.Parameters {
					names = append(names, name)
				}
				sort.Strings(names)
				if len(names) > 0 {
					fmt.Fprintln(w, "parameters:")
				}
				for _, name := range names {
					p := t.Parameters[name]
					fmt.Fprintf(w, "  %-20s %-8s default=%v  %s\n", name, p.Type, p.Default, p.Label)
				}
			})
		},
	}
}

func newTemplateInstantiateCommand() *cobra.Command {
	var (
		name   string
		params []string
	)
	cmd := &cobra.Command{
		Use:   "instantiate <template-id>",
		Short: "Print a flow definition built from a template",
		Long: `Build a flow from a template with parameter overrides and print it
as JSON, ready for validate, dry-run or POST /api/v1/flows.`,
		Example: `  flowctl templates instantiate tpl_drone_in_zone --name "Airfield drones" --param zone_id=airfield`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseParams(params)
			if err != nil {
				return commandError("invalid --param", err)
			}
			def, err := flows.Instantiate(args[0], name, values)
			if err != nil {
				return templateError(err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(def)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "flow name (defaults to the template name)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "parameter override as key=value (repeatable)")
	return cmd
}

func templateError(err error) error {
	if errors.Is(err, flows.ErrTemplateNotFound) {
		return &ExitError{Code: ExitFailure, Message: "unknown template", Err: err}
	}
	return commandError("failed to load templates", err)
}

// parseParams turns key=value pairs into typed values. Numbers and
// booleans are converted; everything else stays a string.
func parseParams(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%q is not key=value", pair)
		}
		out[key] = parseValue(strings.TrimSpace(value))
	}
	return out, nil
}

func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
