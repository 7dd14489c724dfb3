package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInitWritesJSONWithRenamedFields(t *testing.T) {
	var buf bytes.Buffer
	if err := Init("debug", "json", &buf); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = Init("info", "json", nil) })

	New("scrub").WithField("thread_id", "t1").Info("record scrubbed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["message"] != "record scrubbed" || entry["component"] != "scrub" || entry["thread_id"] != "t1" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Fatalf("expected timestamp field: %+v", entry)
	}
	if logrus.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %s", logrus.GetLevel())
	}
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	if err := Init("chatty", "json", nil); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("expected discard logger")
	}
	l := logrus.New()
	if OrDiscard(l) != l {
		t.Fatal("expected logger passthrough")
	}
}
