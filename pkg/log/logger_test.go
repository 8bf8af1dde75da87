package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", DebugLevel, true},
		{"info", InfoLevel, true},
		{"", InfoLevel, true},
		{"WARN", WarnLevel, true},
		{"warning", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"verbose", InfoLevel, false},
	}
	for _, c := range cases {
		got, err := ParseLevel(c.in)
		if c.ok && err != nil {
			t.Fatalf("ParseLevel(%q): %v", c.in, err)
		}
		if !c.ok && err == nil {
			t.Fatalf("ParseLevel(%q): want error", c.in)
		}
		if c.ok && got != c.want {
			t.Fatalf("ParseLevel(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(WarnLevel), WithOutput(&buf))
	l.Debug("dropped")
	l.Info("dropped too")
	l.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("below-level lines leaked: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestJSONFormatCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormat(FormatJSON), WithOutput(&buf))
	l.WithComponent("redis").Info("connected", Str("addr", "127.0.0.1:6379"), Int("attempt", 3))
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output not JSON: %v (%q)", err, buf.String())
	}
	if rec["component"] != "redis" {
		t.Fatalf("component field missing: %v", rec)
	}
	if rec["addr"] != "127.0.0.1:6379" {
		t.Fatalf("addr field missing: %v", rec)
	}
	if rec["msg"] != "connected" {
		t.Fatalf("msg mismatch: %v", rec)
	}
}

func TestApplyConfigRejectsUnknownFormat(t *testing.T) {
	if _, err := ApplyConfig(Config{Level: "info", Format: "xml"}); err == nil {
		t.Fatal("want error for unknown format")
	}
	if _, err := ApplyConfig(Config{}); err != nil {
		t.Fatalf("defaults should apply: %v", err)
	}
}
