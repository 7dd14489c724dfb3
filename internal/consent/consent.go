package consent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrNotRecorded = errors.New("consent not recorded")

// Acknowledgements are stored with every record.
var Acknowledgements = []string{
	"My communication data will be used to train an AI model.",
	"The model will mimic my communication style.",
	"Generated content may not be perfect and requires review.",
	"I can revoke consent at any time by deleting this record.",
	"This is for personal use only, or with explicit permission.",
}

type Record struct {
	User             string    `yaml:"user"`
	Consent          string    `yaml:"consent"`
	RecordedAt       time.Time `yaml:"recorded_at"`
	Acknowledgements []string  `yaml:"acknowledgements"`
}

func (r Record) Granted() bool {
	return strings.EqualFold(strings.TrimSpace(r.Consent), "yes")
}

// Save writes a consent record for user.
func Save(path, user string, now time.Time) (Record, error) {
	if strings.TrimSpace(user) == "" {
		return Record{}, fmt.Errorf("consent requires the name of the person whose data is used")
	}
	rec := Record{
		User:             strings.TrimSpace(user),
		Consent:          "yes",
		RecordedAt:       now.UTC(),
		Acknowledgements: Acknowledgements,
	}
	raw, err := yaml.Marshal(rec)
	if err != nil {
		return Record{}, fmt.Errorf("marshal consent: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Record{}, fmt.Errorf("create consent dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return Record{}, fmt.Errorf("write consent: %w", err)
	}
	return rec, nil
}

// Check loads the record at path. A missing file, or a record that does not
// grant consent, yields ErrNotRecorded.
func Check(path string) (Record, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, fmt.Errorf("%w: %s does not exist", ErrNotRecorded, path)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read consent: %w", err)
	}
	var rec Record
	if err := yaml.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode consent %s: %w", path, err)
	}
	if !rec.Granted() || rec.User == "" {
		return rec, fmt.Errorf("%w: %s does not grant consent", ErrNotRecorded, path)
	}
	return rec, nil
}
