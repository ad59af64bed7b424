// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package models

import "errors"

// Lookup sentinels shared by stores and the admin surface.
var (
	ErrFlowNotFound  = errors.New("flow not found")
	ErrAlertNotFound = errors.New("alert not found")
)
