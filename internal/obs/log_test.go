package obs

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestLog(t *testing.T) {
	logger := Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	Log("info", "starting fuelgrid-api", map[string]any{"addr": ":8080"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line not valid JSON: %v", err)
	}
	if entry["level"] != "info" {
		t.Fatalf("unexpected level: %v", entry["level"])
	}
	if entry["msg"] != "starting fuelgrid-api" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry["addr"] != ":8080" {
		t.Fatalf("field lost: %v", entry["addr"])
	}
	if entry["ts"] == nil {
		t.Fatal("expected ts field")
	}
}

func TestLogNilFields(t *testing.T) {
	logger := Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	Log("info", "stopped", nil)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line not valid JSON: %v", err)
	}
	if entry["msg"] != "stopped" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
}
