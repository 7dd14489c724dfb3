package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"twin_corpus/internal/corpus"
)

// SaveReport writes report as indented JSON, replacing path atomically.
func SaveReport(path string, report any) error {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return corpus.WriteFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(append(raw, '\n'))
		return err
	})
}

// ReportPath names a report after its label. The same label always maps to
// the same file.
func ReportPath(reportsDir, label string) string {
	return filepath.Join(reportsDir, sanitizeName(label)+"-"+labelHash(label)+".json")
}

func labelHash(label string) string {
	trimmed := strings.TrimSpace(strings.ToLower(label))
	sum := sha256.Sum256([]byte(trimmed))
	return hex.EncodeToString(sum[:])[:12]
}

func sanitizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ReplaceAll(base, "..", "")
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "report"
	}
	return strings.Map(func(r rune) rune {
		if r == ' ' {
			return '_'
		}
		return r
	}, base)
}
