package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLevel(t *testing.T) {
	type tcase struct {
		in        string
		want      slog.Level
		wantValid bool
	}

	tcases := map[string]tcase{
		"debug":   {in: "debug", want: slog.LevelDebug, wantValid: true},
		"upper":   {in: " WARN ", want: slog.LevelWarn, wantValid: true},
		"warning": {in: "warning", want: slog.LevelWarn, wantValid: true},
		"error":   {in: "error", want: slog.LevelError, wantValid: true},
		"empty":   {in: "", want: slog.LevelInfo, wantValid: true},
		"unknown": {in: "loud", want: slog.LevelInfo},
	}

	fn := func(tc tcase) func(*testing.T) {
		return func(t *testing.T) {
			if got := ParseLevel(tc.in); got != tc.want {
				t.Errorf("ParseLevel(%q): want %v, got %v", tc.in, tc.want, got)
			}
			if err := Validate(tc.in); (err == nil) != tc.wantValid {
				t.Errorf("Validate(%q): got %v", tc.in, err)
			}
		}
	}

	for name, tc := range tcases {
		t.Run(name, fn(tc))
	}
}

func TestValidateFormat(t *testing.T) {
	for _, ok := range []string{"", "text", "JSON"} {
		if err := ValidateFormat(ok); err != nil {
			t.Errorf("ValidateFormat(%q): unexpected error: %v", ok, err)
		}
	}
	if err := ValidateFormat("xml"); err == nil || !strings.Contains(err.Error(), "unknown log format") {
		t.Errorf("ValidateFormat(xml): got %v", err)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "json", Output: &buf, Component: "server"})
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("slow consumer", "user", "alice")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want one record, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode: unexpected error: %v", err)
	}
	delete(rec, "time")
	want := map[string]any{"level": "WARN", "msg": "slow consumer", "component": "server", "user": "alice"}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(Options{Level: "loud", Format: "xml"})
	if err == nil {
		t.Fatal("New: expected error")
	}
	for _, want := range []string{"unknown log level", "unknown log format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q: missing %q", err, want)
		}
	}
}

func TestSetupInstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	if err := Setup(Options{Output: &buf, Component: "client"}); err != nil {
		t.Fatalf("Setup: unexpected error: %v", err)
	}
	slog.Debug("hidden")
	slog.Info("connected")
	got := buf.String()
	if strings.Contains(got, "hidden") || !strings.Contains(got, "msg=connected") || !strings.Contains(got, "component=client") {
		t.Errorf("text output: got %q", got)
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "")
	if got := LevelFromEnv("warn"); got != "warn" {
		t.Errorf("unset: want warn, got %q", got)
	}
	t.Setenv(EnvLevel, " debug ")
	if got := LevelFromEnv("warn"); got != "debug" {
		t.Errorf("set: want debug, got %q", got)
	}
}
