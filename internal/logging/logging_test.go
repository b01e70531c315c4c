// SPDX-License-Identifier: AGPL-3.0-only
package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   Debug,
		"info":    Info,
		"warn":    Warn,
		"warning": Warn,
		"error":   Error,
		"fatal":   Fatal,
		"bogus":   Info,
		"":        Info,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: Warn, Output: &buf})

	l.Debugf("debug line")
	l.Infof("info line")
	l.Warnf("warn line")
	l.Errorf("error line")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("Expected debug/info to be filtered at Warn level, got:\n%s", out)
	}
	if !strings.Contains(out, "warn line") {
		t.Errorf("Expected warn line in output, got:\n%s", out)
	}
	if !strings.Contains(out, "error line") {
		t.Errorf("Expected error line in output, got:\n%s", out)
	}
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: Info, Output: &buf})

	l.WithField("job_id", "job_42").Infof("running")

	out := buf.String()
	if !strings.Contains(out, "job_id=job_42") {
		t.Errorf("Expected field in output, got:\n%s", out)
	}
	if !strings.Contains(out, "[INFO]") {
		t.Errorf("Expected level tag in output, got:\n%s", out)
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: Info, Output: &buf})

	_ = l.WithField("a", 1)
	l.Infof("plain")

	if strings.Contains(buf.String(), "a=1") {
		t.Errorf("Parent logger picked up child field:\n%s", buf.String())
	}
}

func TestDefaultLogger(t *testing.T) {
	orig := GetDefaultLogger()
	defer SetDefaultLogger(orig)

	var buf bytes.Buffer
	SetDefaultLogger(New(Options{Level: Debug, Output: &buf}))
	GetDefaultLogger().Debugf("hello")

	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("Expected default logger swap to take effect, got:\n%s", buf.String())
	}
}
