// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/tomtom215/meshguard/internal/logging"
)

// SoundConfig configures the announcement sink.
type SoundConfig struct {
	// Command is invoked as `Command --voice V --volume N -- <text>`.
	// Empty means log only.
	Command      string `koanf:"command"`
	DefaultVoice string `koanf:"voice"`
}

// SoundAction announces alerts through an external TTS command. It serves
// both the "sound" and "audio" action types.
type SoundAction struct {
	actionType string
	cfg        SoundConfig
}

// NewSoundAction creates a sound sink registered under actionType.
func NewSoundAction(actionType string, cfg SoundConfig) *SoundAction {
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = "en-GB-RyanNeural"
	}
	return &SoundAction{actionType: actionType, cfg: cfg}
}

// Type implements Action.
func (a *SoundAction) Type() string { return a.actionType }

// Execute implements Action.
func (a *SoundAction) Execute(ctx context.Context, req *ActionRequest) (string, error) {
	text := req.String("message", "Alert")
	volume := int(req.Float("volume", 50))
	voice := req.String("voice", a.cfg.DefaultVoice)

	if a.cfg.Command == "" {
		logging.Debug().
			Str("text", text).
			Int("volume", volume).
			Str("voice", voice).
			Msg("Sound announcement (no command configured)")
		return "logged", nil
	}

	// #nosec G204 -- command comes from operator config, text is an argument
	cmd := exec.CommandContext(ctx, a.cfg.Command, announceArgs(voice, volume, text)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("announce command failed: %w: %s", err, truncateOutput(out))
	}
	return fmt.Sprintf("announced at volume %d", volume), nil
}

// announceArgs builds the command line. Text follows "--" so a message
// starting with a dash is never read as an option.
func announceArgs(voice string, volume int, text string) []string {
	return []string{"--voice", voice, "--volume", strconv.Itoa(volume), "--", text}
}

func truncateOutput(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
