// Meshguard - Surveillance Event Alerting Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/meshguard

package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/meshguard/internal/flows"
	"github.com/tomtom215/meshguard/internal/models"
)

const droneEvent = `{
  "event_type": "drone.detected",
  "source": "wifi",
  "timestamp": 1760000000,
  "object_id": "AA:BB:CC:DD:EE:FF",
  "object_type": "drone",
  "data": {"rssi": -60}
}`

// execute runs flowctl with args and returns stdout and the error.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// templateFlow instantiates a built-in template as JSON.
func templateFlow(t *testing.T, id string) []byte {
	t.Helper()
	def, err := flows.Instantiate(id, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	def.ID = "flow_" + id
	data, err := json.Marshal(def)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestRoot_InvalidFormat(t *testing.T) {
	t.Parallel()
	_, err := execute(t, "", "--format", "yaml", "templates")
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Errorf("expected invalid format error, got %v", err)
	}
	if GetExitCode(err) != ExitCommandError {
		t.Errorf("exit code = %d", GetExitCode(err))
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	good := writeFile(t, "good.json", string(templateFlow(t, "tpl_drone_detected")))
	bad := writeFile(t, "bad.json", `[{"id":"f1","name":"broken","severity":"loud","nodes":[],"edges":[]}]`)

	t.Run("valid flow", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, "", "validate", good)
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		if !strings.Contains(out, "1 of 1 flows valid") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("invalid flow exits 1 with problems", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, "", "--format", "json", "validate", good, bad)
		if GetExitCode(err) != ExitFailure {
			t.Fatalf("exit code = %d (%v)", GetExitCode(err), err)
		}
		var resp struct {
			Status string           `json:"status"`
			Data   []FlowValidation `json:"data"`
		}
		if err := json.Unmarshal([]byte(out), &resp); err != nil {
			t.Fatalf("decode %q: %v", out, err)
		}
		if resp.Status != "error" || len(resp.Data) != 2 {
			t.Fatalf("resp = %+v", resp)
		}
		if !resp.Data[0].Valid || resp.Data[1].Valid || len(resp.Data[1].Problems) == 0 {
			t.Errorf("results = %+v", resp.Data)
		}
	})

	t.Run("stdin", func(t *testing.T) {
		t.Parallel()
		_, err := execute(t, string(templateFlow(t, "tpl_system_health")), "validate", "-")
		if err != nil {
			t.Errorf("validate -: %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := execute(t, "", "validate", filepath.Join(t.TempDir(), "nope.json"))
		if GetExitCode(err) != ExitCommandError {
			t.Errorf("exit code = %d (%v)", GetExitCode(err), err)
		}
	})
}

func TestDryRun(t *testing.T) {
	t.Parallel()

	flowPath := writeFile(t, "flow.json", string(templateFlow(t, "tpl_drone_detected")))
	eventPath := writeFile(t, "event.json", droneEvent)

	t.Run("fires", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, "", "dry-run", flowPath, "--event", eventPath)
		if err != nil {
			t.Fatalf("dry-run: %v\n%s", err, out)
		}
		for _, want := range []string{"trigger:  matched", "action:   ui_alert", "fires:    true"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("no match exits 1", func(t *testing.T) {
		t.Parallel()
		other := strings.Replace(droneEvent, "drone.detected", "vessel.updated", 1)
		other = strings.Replace(other, `"object_type": "drone"`, `"object_type": "vessel"`, 1)
		out, err := execute(t, other, "--format", "json", "dry-run", flowPath, "--event", "-")
		if GetExitCode(err) != ExitFailure {
			t.Fatalf("exit code = %d (%v)", GetExitCode(err), err)
		}
		if !strings.Contains(out, `"trigger_matched": false`) {
			t.Errorf("output = %s", out)
		}
	})

	t.Run("event flag required", func(t *testing.T) {
		t.Parallel()
		if _, err := execute(t, "", "dry-run", flowPath); err == nil {
			t.Error("expected error without --event")
		}
	})

	t.Run("both from stdin", func(t *testing.T) {
		t.Parallel()
		_, err := execute(t, "", "dry-run", "-", "--event", "-")
		if GetExitCode(err) != ExitCommandError {
			t.Errorf("exit code = %d (%v)", GetExitCode(err), err)
		}
	})
}

func TestTemplates(t *testing.T) {
	t.Parallel()

	t.Run("list", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, "", "templates")
		if err != nil {
			t.Fatal(err)
		}
		if n := strings.Count(out, "tpl_"); n != 7 {
			t.Errorf("listed %d templates:\n%s", n, out)
		}
	})

	t.Run("show", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, "", "templates", "show", "tpl_drone_in_zone")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "zone_id") {
			t.Errorf("output = %s", out)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		_, err := execute(t, "", "templates", "show", "tpl_nope")
		if !errors.Is(err, flows.ErrTemplateNotFound) || GetExitCode(err) != ExitFailure {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("instantiate", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, "", "templates", "instantiate", "tpl_drone_in_zone",
			"--name", "Airfield", "--param", "zone_id=airfield", "--param", "cooldown_seconds=60")
		if err != nil {
			t.Fatal(err)
		}
		var def models.FlowDefinition
		if err := json.Unmarshal([]byte(out), &def); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if def.Name != "Airfield" || def.CooldownSeconds != 60 || def.TemplateID != "tpl_drone_in_zone" {
			t.Errorf("def = %+v", def)
		}
	})

	t.Run("bad param", func(t *testing.T) {
		t.Parallel()
		_, err := execute(t, "", "templates", "instantiate", "tpl_drone_detected", "--param", "novalue")
		if GetExitCode(err) != ExitCommandError {
			t.Errorf("exit code = %d (%v)", GetExitCode(err), err)
		}
	})
}

func TestParseValue(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want any
	}{
		{"42", int64(42)},
		{"2.5", 2.5},
		{"true", true},
		{"airfield", "airfield"},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestHashPassword(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "correct horse battery\n", "hash-password", "--cost", "4")
	if err != nil {
		t.Fatal(err)
	}
	hash := strings.TrimSpace(out)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse battery")); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}

	if _, err := execute(t, "", "hash-password"); GetExitCode(err) != ExitCommandError {
		t.Errorf("empty stdin exit code = %d", GetExitCode(err))
	}
}
