package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"twin_corpus/internal/corpus"
	"twin_corpus/internal/logging"
)

// MalformedRecordError describes a single input row that could not be
// normalized. The row is skipped; the rest of the file is still processed.
type MalformedRecordError struct {
	Source string
	Line   int
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s:%d: field %s: %s", e.Source, e.Line, e.Field, e.Reason)
}

// Result holds the records of one or more inputs plus the rows skipped on
// the way.
type Result struct {
	Records []corpus.MessageRecord
	Skipped int
	Errors  []*MalformedRecordError
}

// Normalizer turns exported message dumps into MessageRecords.
type Normalizer struct {
	Log logrus.FieldLogger
}

func NewNormalizer(log logrus.FieldLogger) *Normalizer {
	if log == nil {
		log = logging.New("ingest")
	}
	return &Normalizer{Log: log}
}

var requiredColumns = []string{"thread_id", "is_outgoing", "body"}

var columnAliases = map[string]string{
	"from_email": "from",
	"to_email":   "to",
	"sender":     "from",
	"recipient":  "to",
}

// ParseCSV reads delimited rows with a header naming at least thread_id,
// is_outgoing and body. subject, from, to and timestamp are optional.
func (n *Normalizer) ParseCSV(r io.Reader, source string) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return Result{}, fmt.Errorf("%s: missing header", source)
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s: read header: %w", source, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("%s: header missing required columns: %s", source, strings.Join(missing, ", "))
	}

	var res Result
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				n.skip(&res, &MalformedRecordError{Source: source, Line: pe.Line, Reason: pe.Err.Error()})
				continue
			}
			return res, fmt.Errorf("%s: read row: %w", source, err)
		}
		line, _ := cr.FieldPos(0)
		if len(row) != len(header) {
			n.skip(&res, &MalformedRecordError{
				Source: source,
				Line:   line,
				Reason: fmt.Sprintf("expected %d columns, got %d", len(header), len(row)),
			})
			continue
		}

		get := func(name string) string {
			if i, ok := cols[name]; ok {
				return row[i]
			}
			return ""
		}
		fields := rawRecord{
			threadID:   get("thread_id"),
			isOutgoing: get("is_outgoing"),
			body:       get("body"),
			subject:    get("subject"),
			timestamp:  get("timestamp"),
		}
		fields.hasOutgoing = true
		rec, merr := fields.build(source, line)
		if merr != nil {
			n.skip(&res, merr)
			continue
		}
		if rec.IsOutgoing {
			rec.Participant = strings.TrimSpace(get("to"))
		} else {
			rec.Participant = strings.TrimSpace(get("from"))
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

type jsonRecord struct {
	ThreadID   json.RawMessage `json:"thread_id"`
	Timestamp  json.RawMessage `json:"timestamp"`
	IsOutgoing json.RawMessage `json:"is_outgoing"`
	Body       *string         `json:"body"`
	Contact    string          `json:"contact"`
	Subject    string          `json:"subject"`
}

// ParseJSON reads an array of message objects. Each element is decoded on
// its own so one bad element does not discard the file.
func (n *Normalizer) ParseJSON(r io.Reader, source string) (Result, error) {
	var items []json.RawMessage
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return Result{}, fmt.Errorf("%s: expected a JSON array of messages: %w", source, err)
	}

	var res Result
	for i, raw := range items {
		line := i + 1
		var item jsonRecord
		if err := json.Unmarshal(raw, &item); err != nil {
			n.skip(&res, &MalformedRecordError{Source: source, Line: line, Reason: err.Error()})
			continue
		}
		fields := rawRecord{
			threadID:    jsonScalar(item.ThreadID),
			isOutgoing:  jsonScalar(item.IsOutgoing),
			hasOutgoing: len(item.IsOutgoing) > 0 && string(item.IsOutgoing) != "null",
			timestamp:   jsonScalar(item.Timestamp),
			subject:     item.Subject,
		}
		if item.Body != nil {
			fields.body = *item.Body
		}
		rec, merr := fields.build(source, line)
		if merr != nil {
			n.skip(&res, merr)
			continue
		}
		rec.Participant = strings.TrimSpace(item.Contact)
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// LoadFiles parses every path according to its extension and merges the
// results.
func (n *Normalizer) LoadFiles(paths ...string) (Result, error) {
	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		res, err := n.LoadFile(path)
		if err != nil {
			return Result{}, err
		}
		results = append(results, res)
	}
	return Merge(results...), nil
}

func (n *Normalizer) LoadFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	var res Result
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		res, err = n.ParseCSV(f, path)
	case ".json":
		res, err = n.ParseJSON(f, path)
	default:
		return Result{}, fmt.Errorf("%s: unsupported input type %q", path, filepath.Ext(path))
	}
	if err != nil {
		return Result{}, err
	}
	n.Log.WithFields(logrus.Fields{
		"source":  path,
		"records": len(res.Records),
		"skipped": res.Skipped,
	}).Info("input normalized")
	return res, nil
}

// Merge concatenates results in argument order and stable-sorts the records
// by thread id, then timestamp.
func Merge(results ...Result) Result {
	var out Result
	for _, r := range results {
		out.Records = append(out.Records, r.Records...)
		out.Skipped += r.Skipped
		out.Errors = append(out.Errors, r.Errors...)
	}
	sort.SliceStable(out.Records, func(i, j int) bool {
		a, b := out.Records[i], out.Records[j]
		if a.ThreadID != b.ThreadID {
			return a.ThreadID < b.ThreadID
		}
		return a.Timestamp.Before(b.Timestamp)
	})
	return out
}

func (n *Normalizer) skip(res *Result, err *MalformedRecordError) {
	res.Skipped++
	res.Errors = append(res.Errors, err)
	n.Log.WithFields(logrus.Fields{
		"source": err.Source,
		"line":   err.Line,
		"field":  err.Field,
	}).Warn("skipping malformed record: " + err.Reason)
}

type rawRecord struct {
	threadID    string
	isOutgoing  string
	hasOutgoing bool
	body        string
	subject     string
	timestamp   string
}

func (f rawRecord) build(source string, line int) (corpus.MessageRecord, *MalformedRecordError) {
	bad := func(field, reason string) *MalformedRecordError {
		return &MalformedRecordError{Source: source, Line: line, Field: field, Reason: reason}
	}
	threadID := strings.TrimSpace(f.threadID)
	if threadID == "" {
		return corpus.MessageRecord{}, bad("thread_id", "missing value")
	}
	if !f.hasOutgoing || strings.TrimSpace(f.isOutgoing) == "" {
		return corpus.MessageRecord{}, bad("is_outgoing", "missing value")
	}
	outgoing, err := parseBool(f.isOutgoing)
	if err != nil {
		return corpus.MessageRecord{}, bad("is_outgoing", err.Error())
	}
	if strings.TrimSpace(f.body) == "" {
		return corpus.MessageRecord{}, bad("body", "missing value")
	}
	ts, err := ParseTimestamp(f.timestamp)
	if err != nil {
		return corpus.MessageRecord{}, bad("timestamp", err.Error())
	}
	return corpus.MessageRecord{
		ThreadID:   threadID,
		Timestamp:  ts,
		IsOutgoing: outgoing,
		Body:       f.body,
		Subject:    strings.TrimSpace(f.subject),
	}, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "t", "y":
		return true, nil
	case "false", "0", "no", "f", "n":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts RFC3339 (with or without zone), "2006-01-02
// 15:04:05", plain dates and Unix seconds. Zone-less values are UTC. An empty
// value yields the zero time.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// jsonScalar renders a raw JSON string, number or bool as text.
func jsonScalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
