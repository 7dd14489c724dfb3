package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"twin_corpus/internal/logging"
)

func quietNormalizer() *Normalizer {
	return NewNormalizer(logging.OrDiscard(nil))
}

func TestParseCSVLocatesColumnsByName(t *testing.T) {
	in := `timestamp,body,to_email,from_email,is_outgoing,thread_id,subject
2024-03-01T10:00:00Z,"Hi, are you around?",me@example.com,ana@example.com,false,t1,Plans
2024-03-01 10:05:00,Yes! what's up,ana@example.com,me@example.com,TRUE,t1,Re: Plans
`
	res, err := quietNormalizer().ParseCSV(strings.NewReader(in), "inbox.csv")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Skipped != 0 || len(res.Records) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	first, second := res.Records[0], res.Records[1]
	if first.IsOutgoing || first.Participant != "ana@example.com" || first.Body != "Hi, are you around?" {
		t.Fatalf("unexpected incoming record: %+v", first)
	}
	if !second.IsOutgoing || second.Participant != "ana@example.com" || second.Subject != "Re: Plans" {
		t.Fatalf("unexpected outgoing record: %+v", second)
	}
	want := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	if !second.Timestamp.Equal(want) {
		t.Fatalf("expected %v, got %v", want, second.Timestamp)
	}
}

func TestParseCSVSkipsMalformedRows(t *testing.T) {
	in := `thread_id,is_outgoing,body,timestamp
t1,maybe,hello,2024-01-01
,true,hello,2024-01-01
t1,true,   ,2024-01-01
t1,true,hello,yesterday
t1,true,too,many,columns
t1,1,fine,1704067200
`
	res, err := quietNormalizer().ParseCSV(strings.NewReader(in), "bad.csv")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Records) != 1 || res.Skipped != 5 || len(res.Errors) != 5 {
		t.Fatalf("expected 1 record and 5 skipped, got %d records, %d skipped", len(res.Records), res.Skipped)
	}
	wantFields := []string{"is_outgoing", "thread_id", "body", "timestamp", ""}
	for i, e := range res.Errors {
		if e.Field != wantFields[i] {
			t.Fatalf("error %d: expected field %q, got %q (%v)", i, wantFields[i], e.Field, e)
		}
		if e.Line != i+2 {
			t.Fatalf("error %d: expected line %d, got %d", i, i+2, e.Line)
		}
	}
	var target *MalformedRecordError
	if !errors.As(error(res.Errors[0]), &target) || target.Source != "bad.csv" {
		t.Fatalf("expected typed malformed record error, got %v", res.Errors[0])
	}
	if got := res.Records[0].Timestamp; !got.Equal(time.Unix(1704067200, 0)) {
		t.Fatalf("unexpected unix timestamp %v", got)
	}
}

func TestParseCSVRequiresHeader(t *testing.T) {
	if _, err := quietNormalizer().ParseCSV(strings.NewReader("thread,body\nx,y\n"), "x.csv"); err == nil {
		t.Fatal("expected missing column error")
	}
	if _, err := quietNormalizer().ParseCSV(strings.NewReader(""), "empty.csv"); err == nil {
		t.Fatal("expected missing header error")
	}
}

func TestParseJSON(t *testing.T) {
	in := `[
  {"thread_id": "t2", "timestamp": "2024-02-01T09:00:00", "is_outgoing": "no", "body": "ping", "contact": "bo"},
  {"thread_id": 7, "is_outgoing": true, "body": "pong"},
  {"thread_id": "t2", "is_outgoing": true},
  "not an object"
]`
	res, err := quietNormalizer().ParseJSON(strings.NewReader(in), "chat.json")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Records) != 2 || res.Skipped != 2 {
		t.Fatalf("expected 2 records and 2 skipped, got %+v", res)
	}
	if res.Records[0].Participant != "bo" || res.Records[0].IsOutgoing {
		t.Fatalf("unexpected first record: %+v", res.Records[0])
	}
	if res.Records[1].ThreadID != "7" || !res.Records[1].Timestamp.IsZero() {
		t.Fatalf("unexpected second record: %+v", res.Records[1])
	}
	if res.Errors[0].Field != "body" || res.Errors[0].Line != 3 {
		t.Fatalf("unexpected error: %+v", res.Errors[0])
	}
}

func TestParseJSONRejectsNonArray(t *testing.T) {
	if _, err := quietNormalizer().ParseJSON(strings.NewReader(`{"thread_id":"t"}`), "obj.json"); err == nil {
		t.Fatal("expected error for non-array document")
	}
}

func TestMergeSortsStably(t *testing.T) {
	a, err := quietNormalizer().ParseCSV(strings.NewReader(`thread_id,is_outgoing,body,timestamp
b,false,late,2024-01-02
a,false,first,
b,false,early,2024-01-01
`), "a.csv")
	if err != nil {
		t.Fatalf("parse a: %v", err)
	}
	b, err := quietNormalizer().ParseCSV(strings.NewReader(`thread_id,is_outgoing,body,timestamp
b,true,same time,2024-01-02
`), "b.csv")
	if err != nil {
		t.Fatalf("parse b: %v", err)
	}

	merged := Merge(a, b)
	var got []string
	for _, r := range merged.Records {
		got = append(got, r.Body)
	}
	want := "first|early|late|same time"
	if strings.Join(got, "|") != want {
		t.Fatalf("expected %s, got %s", want, strings.Join(got, "|"))
	}
}

func TestLoadFilesLogsSkippedRows(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "mail.csv")
	jsonPath := filepath.Join(dir, "chat.json")
	if err := os.WriteFile(csvPath, []byte("thread_id,is_outgoing,body\nt1,false,hello\nt1,nope,bad\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := os.WriteFile(jsonPath, []byte(`[{"thread_id":"t0","is_outgoing":1,"body":"hey"}]`), 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}

	log := logrus.New()
	var buf strings.Builder
	log.SetOutput(&buf)
	res, err := NewNormalizer(log).LoadFiles(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Records) != 2 || res.Records[0].ThreadID != "t0" || res.Skipped != 1 {
		t.Fatalf("unexpected merged result: %+v", res)
	}
	if !strings.Contains(buf.String(), "skipping malformed record") {
		t.Fatalf("expected warning in log, got %q", buf.String())
	}

	if _, err := NewNormalizer(log).LoadFiles(filepath.Join(dir, "missing.csv")); err == nil {
		t.Fatal("expected error for unreadable file")
	}
}
