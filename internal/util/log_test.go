package util

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"TRACE":   LevelDebug,
		" warn ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestJSONLogOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetFormat("json")
	SetLogLevel(LevelInfo)
	defer func() {
		SetFormat("console")
		SetOutput(os.Stderr)
	}()

	DebugLog("hidden %d", 1)
	InfoLog("fetched %d plays", 3)
	WarnLog("slow page")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), buf.String())
	}

	var entry struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry.Level != "info" || entry.Message != "fetched 3 plays" {
		t.Errorf("unexpected entry %+v", entry)
	}
}

func TestQuietMode(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetFormat("json")
	defer func() {
		SetLogLevel(LevelInfo)
		SetFormat("console")
		SetOutput(os.Stderr)
	}()

	SetQuiet(true)
	if !IsQuiet() {
		t.Fatal("expected quiet mode")
	}
	InfoLog("not shown")
	if buf.Len() != 0 {
		t.Errorf("expected no output in quiet mode, got %q", buf.String())
	}

	SetVerbose(true)
	if IsQuiet() {
		t.Error("verbose should lift quiet mode")
	}
}
