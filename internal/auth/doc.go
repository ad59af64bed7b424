// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package auth authenticates admin API callers.

Accounts are declared in configuration with bcrypt password hashes and
one of three roles: viewer, operator or admin. POST /api/v1/auth/login
exchanges credentials for an HS256 JWT; Middleware validates the token on
every other route and stores the Claims in the request context for the
authz package.

Repeated failures lock a username through Lockout, doubling the lock each
time up to 24 hours.

In ModeNone every request runs as an anonymous admin. Use it only when the
API listens on loopback.
*/
package auth
