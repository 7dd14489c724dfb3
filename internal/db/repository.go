package db

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"twin_corpus/internal/corpus"
	"twin_corpus/internal/retrieval"
)

type Run struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	Inputs      []string
	Records     int
	Skipped     int
	Duplicates  int
	Units       int
	ReviewItems int
	Status      string
}

type AuditEvent struct {
	At      time.Time
	Action  string
	Details string
}

// PersistRun records a pipeline run and replaces the stored corpus and
// review queue with its output.
func PersistRun(dbPath string, run Run, units []corpus.TrainingUnit, review []corpus.ReviewItem) error {
	conn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM training_units`); err != nil {
		return fmt.Errorf("clear training units: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM review_queue`); err != nil {
		return fmt.Errorf("clear review queue: %w", err)
	}

	inputs, _ := json.Marshal(run.Inputs)
	if _, err := tx.Exec(
		`INSERT INTO runs(id, started_at, finished_at, inputs, records, skipped, duplicates, units, review_items, status) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		run.ID,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		string(inputs),
		run.Records,
		run.Skipped,
		run.Duplicates,
		run.Units,
		run.ReviewItems,
		run.Status,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	unitStmt, err := tx.Prepare(`INSERT INTO training_units(run_id, thread_id, split, prompt, response, token_count, timestamp) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare unit insert: %w", err)
	}
	defer unitStmt.Close()
	for _, u := range units {
		if _, err := unitStmt.Exec(run.ID, u.ThreadID, string(u.Split), u.Prompt, u.Response, u.TokenCount, formatTime(u.Timestamp)); err != nil {
			return fmt.Errorf("insert training unit: %w", err)
		}
	}

	for _, item := range review {
		if _, err := tx.Exec(
			`INSERT INTO review_queue(run_id, thread_id, timestamp, reason) VALUES(?,?,?,?)`,
			run.ID, item.ThreadID, formatTime(item.Timestamp), item.Reason,
		); err != nil {
			return fmt.Errorf("insert review item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LoadUnits returns stored units, all of them when split is empty.
func LoadUnits(dbPath string, split corpus.Split) ([]corpus.TrainingUnit, error) {
	conn, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := `SELECT thread_id, split, prompt, response, token_count, timestamp FROM training_units`
	var args []any
	if split != "" {
		query += ` WHERE split = ?`
		args = append(args, string(split))
	}
	query += ` ORDER BY thread_id, timestamp, id`
	rows, err := conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query training units: %w", err)
	}
	defer rows.Close()

	var out []corpus.TrainingUnit
	for rows.Next() {
		var (
			u     corpus.TrainingUnit
			s, ts string
		)
		if err := rows.Scan(&u.ThreadID, &s, &u.Prompt, &u.Response, &u.TokenCount, &ts); err != nil {
			return nil, fmt.Errorf("scan training unit: %w", err)
		}
		u.Split = corpus.Split(s)
		u.Timestamp = parseTime(ts)
		out = append(out, u)
	}
	return out, rows.Err()
}

// PersistExemplars replaces the stored exemplar index.
func PersistExemplars(dbPath string, entries []retrieval.Entry) error {
	conn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM exemplars`); err != nil {
		return fmt.Errorf("clear exemplars: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO exemplars(id, thread_id, timestamp, split, prompt, text, embedding) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare exemplar insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.Exec(
			e.ID,
			e.Metadata.ThreadID,
			formatTime(e.Metadata.Timestamp),
			string(e.Metadata.Split),
			e.Metadata.Prompt,
			e.Text,
			encodeVector(e.Embedding),
		); err != nil {
			return fmt.Errorf("insert exemplar %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func LoadExemplars(dbPath string) ([]retrieval.Entry, error) {
	conn, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.Query(`SELECT id, thread_id, timestamp, split, prompt, text, embedding FROM exemplars ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query exemplars: %w", err)
	}
	defer rows.Close()

	var out []retrieval.Entry
	for rows.Next() {
		var (
			e         retrieval.Entry
			ts, split string
			blob      []byte
		)
		if err := rows.Scan(&e.ID, &e.Metadata.ThreadID, &ts, &split, &e.Metadata.Prompt, &e.Text, &blob); err != nil {
			return nil, fmt.Errorf("scan exemplar: %w", err)
		}
		e.Metadata.Timestamp = parseTime(ts)
		e.Metadata.Split = corpus.Split(split)
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("exemplar %s: %w", e.ID, err)
		}
		e.Embedding = vec
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendAudit stores one audit event; details are encoded as JSON.
func AppendAudit(dbPath, action string, details any, at time.Time) error {
	conn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	if _, err := conn.Exec(`INSERT INTO audit_events(at, action, details) VALUES(?,?,?)`, formatTime(at), action, string(raw)); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// AuditEvents lists events in insertion order, filtered by action when
// given.
func AuditEvents(dbPath, action string) ([]AuditEvent, error) {
	conn, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	query := `SELECT at, action, details FROM audit_events`
	var args []any
	if action != "" {
		query += ` WHERE action = ?`
		args = append(args, action)
	}
	rows, err := conn.Query(query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []AuditEvent
	for rows.Next() {
		var (
			ev AuditEvent
			at string
		)
		if err := rows.Scan(&at, &ev.Action, &ev.Details); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.At = parseTime(at)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func CountRows(dbPath, table string) (int, error) {
	if !tables[table] {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	conn, err := Open(dbPath)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	return countRowsConn(conn, table)
}

func countRowsConn(conn *sql.DB, table string) (int, error) {
	row := conn.QueryRow(`SELECT COUNT(*) FROM ` + table)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("scan count: %w", err)
	}
	return count, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if strings.TrimSpace(s) == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// encodeVector stores float32 values little-endian, 4 bytes each.
func encodeVector(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(x))
	}
	return out
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}
