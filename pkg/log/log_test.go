package log

import (
	"bytes"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T, name string) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	return ForService(name), buf
}

func TestPrefixAndLevel(t *testing.T) {
	SetGlobalDebug(false)
	l, buf := newTestLogger(t, "prefix_test")

	l.Warnf("no shape matched for %s", "payload")
	out := buf.String()

	if !strings.Contains(out, "WARN [prefix_test>] no shape matched for payload") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestDebugPerService(t *testing.T) {
	SetGlobalDebug(false)
	const name = "debug_service_specific"
	DisableDebugFor(name)
	l, buf := newTestLogger(t, name)

	l.Debugf("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("debug line emitted while disabled")
	}

	EnableDebugFor(name)
	defer DisableDebugFor(name)
	l.Debugf("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected debug line after EnableDebugFor, got %q", buf.String())
	}
}

func TestDebugGlobal(t *testing.T) {
	const name = "debug_service_global"
	l, buf := newTestLogger(t, name)

	SetGlobalDebug(true)
	defer SetGlobalDebug(false)

	l.Debugf("global visible")
	if !strings.Contains(buf.String(), "global visible") {
		t.Fatalf("expected debug line with global debug, got %q", buf.String())
	}
}

func TestWithFields(t *testing.T) {
	l, buf := newTestLogger(t, "fields_test")

	l.With("seq", 3).With("endpoint", "search").Infof("dropped stale response")
	out := buf.String()

	if !strings.Contains(out, "dropped stale response endpoint=search seq=3") {
		t.Fatalf("fields not rendered in sorted order: %q", out)
	}

	buf.Reset()
	l.Infof("plain")
	if strings.Contains(buf.String(), "seq=") {
		t.Fatalf("child fields leaked into parent logger: %q", buf.String())
	}
}
