// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomtom215/meshguard/internal/flows"
	"github.com/tomtom215/meshguard/internal/models"
)

// FlowValidation is the outcome for one flow.
type FlowValidation struct {
	File     string          `json:"file"`
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name"`
	Valid    bool            `json:"valid"`
	Problems []flows.Problem `json:"problems,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <flow.json>...",
		Short: "Check flow definitions without saving them",
		Long: `Compile each flow definition and report every problem found.

A file may hold one flow object or an array of flows. Use "-" for stdin.
Exits 1 when any flow is invalid.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, args)
		},
	}
}

func runValidate(opts *RootOptions, cmd *cobra.Command, paths []string) error {
	var results []FlowValidation
	for _, path := range paths {
		defs, err := loadFlows(path, cmd.InOrStdin())
		if err != nil {
			return commandError("failed to read flows", err)
		}
		for _, def := range defs {
			results = append(results, validateFlow(path, def))
		}
	}

	valid := 0
	for _, r := range results {
		if r.Valid {
			valid++
		}
	}
	allValid := valid == len(results)

	f := newFormatter(opts, cmd.OutOrStdout())
	if err := f.result(allValid, results, func(w io.Writer) {
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(w, "ok    %s: %s\n", r.File, r.Name)
				continue
			}
			fmt.Fprintf(w, "FAIL  %s: %s\n", r.File, r.Name)
			for _, p := range r.Problems {
				fmt.Fprintf(w, "      - %s\n", p)
			}
		}
		fmt.Fprintf(w, "%d of %d flows valid\n", valid, len(results))
	}); err != nil {
		return err
	}

	if !allValid {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d invalid flows", len(results)-valid)}
	}
	return nil
}

func validateFlow(file string, def *models.FlowDefinition) FlowValidation {
	res := FlowValidation{File: file, ID: def.ID, Name: def.Name, Valid: true}
	if _, err := flows.Compile(def); err != nil {
		res.Valid = false
		var cerr *flows.ConfigurationError
		if errors.As(err, &cerr) {
			res.Problems = cerr.Problems
		} else {
			res.Problems = []flows.Problem{{Message: err.Error()}}
		}
	}
	return res
}
