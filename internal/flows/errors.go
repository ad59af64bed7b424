// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package flows

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTemplateNotFound is returned when a template ID is unknown.
var ErrTemplateNotFound = errors.New("flow template not found")

// Problem is one validation failure, optionally tied to a node.
type Problem struct {
	NodeID  string `json:"node_id,omitempty"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	if p.NodeID == "" {
		return p.Message
	}
	return "node " + p.NodeID + ": " + p.Message
}

// ConfigurationError reports a flow that cannot be compiled. The registry
// skips such flows; other flows are unaffected.
type ConfigurationError struct {
	FlowID   string    `json:"flow_id"`
	FlowName string    `json:"flow_name,omitempty"`
	Problems []Problem `json:"problems"`
}

func (e *ConfigurationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	id := e.FlowID
	if id == "" {
		id = e.FlowName
	}
	return fmt.Sprintf("flow %q: invalid configuration: %s", id, strings.Join(parts, "; "))
}

// problems accumulates validation failures during compilation.
type problems []Problem

func (p *problems) add(nodeID, format string, args ...any) {
	*p = append(*p, Problem{NodeID: nodeID, Message: fmt.Sprintf(format, args...)})
}

func (p problems) err(flowID, flowName string) error {
	if len(p) == 0 {
		return nil
	}
	return &ConfigurationError{FlowID: flowID, FlowName: flowName, Problems: p}
}
