package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestBracketLevelWriterMapsPrefixToLevel(t *testing.T) {
	cases := []struct {
		line  string
		level string
	}{
		{"[WARN] netlog entry failed to encode, dropping: boom", "warn"},
		{"[ERROR] archiver DLQ full, dropping x.gz (10 bytes)", "error"},
		{"[INFO] DLQ reupload succeeded: k", "info"},
		{"no bracket prefix at all", "info"},
	}

	for _, c := range cases {
		var buf bytes.Buffer
		lw := bracketLevelWriter{logger: zerolog.New(&buf)}

		if _, err := lw.Write([]byte(c.line + "\n")); err != nil {
			t.Fatalf("Write: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("decode log line %q: %v", buf.String(), err)
		}
		if decoded["level"] != c.level {
			t.Fatalf("line %q: want level %q, got %q", c.line, c.level, decoded["level"])
		}
	}
}

func TestBracketLevelWriterStripsThePrefix(t *testing.T) {
	var buf bytes.Buffer
	lw := bracketLevelWriter{logger: zerolog.New(&buf)}

	if _, err := lw.Write([]byte("[WARN] disk almost full\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if decoded["message"] != "disk almost full" {
		t.Fatalf("want prefix stripped from message, got %q", decoded["message"])
	}
}
