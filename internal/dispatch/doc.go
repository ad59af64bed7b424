// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

/*
Package dispatch executes the actions of fired flows off the evaluation path.

The engine builds a Job per firing (the pre-filled alert record plus one
ActionRequest per reachable action node) and calls Submit, which never
blocks. A fixed pool of workers takes jobs from a bounded queue and runs
every action of a job concurrently, each under its own timeout and panic
recovery. When all actions of a job have finished, the Completer writes
the record to history and the Observers are notified.

	engine ──Submit──▶ [queue] ──▶ worker ──┬─▶ ui_alert ──▶ websocket hub
	                                        ├─▶ webhook  ──▶ HTTP (breaker)
	                                        ├─▶ telegram_push ──▶ Bot API
	                                        ├─▶ mqtt ──▶ broker
	                                        ├─▶ sound / audio ──▶ TTS command
	                                        └─▶ db_log
	                                  ▼
	                      Completer (history, cooldown) ─▶ Observers (MMIP)

A full queue is not an evaluation failure: the job is completed
asynchronously with every action marked failed, so the firing still appears
in history.

Remote sinks sit behind gobreaker circuit breakers and an x/time/rate
limiter, and expose breaker state through the metrics package. Webhooks
keep one breaker per target host. Client errors (4xx) do not trip a
breaker.
*/
package dispatch
