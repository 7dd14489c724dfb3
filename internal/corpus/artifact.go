package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteFileAtomic writes through a temp file in the target directory and
// renames it into place, so readers never observe a partial artifact.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	tmpName = ""
	return nil
}

// WriteJSONL writes one JSON object per line.
func WriteJSONL[T any](path string, items []T) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for i, item := range items {
			if err := enc.Encode(item); err != nil {
				return fmt.Errorf("encode %s line %d: %w", path, i+1, err)
			}
		}
		return nil
	})
}

// SplitPath returns the artifact path for one split inside dir.
func SplitPath(dir string, s Split) string {
	return filepath.Join(dir, string(s)+".jsonl")
}

// WriteSplits partitions units by split and writes train.jsonl, val.jsonl
// and test.jsonl. Every split file is written, even when empty.
func WriteSplits(dir string, units []TrainingUnit) (map[Split]int, error) {
	bySplit := map[Split][]TrainingUnit{}
	for _, u := range units {
		bySplit[u.Split] = append(bySplit[u.Split], u)
	}
	counts := make(map[Split]int, len(Splits))
	for _, s := range Splits {
		items := bySplit[s]
		if items == nil {
			items = []TrainingUnit{}
		}
		if err := WriteJSONL(SplitPath(dir, s), items); err != nil {
			return nil, err
		}
		counts[s] = len(items)
	}
	for s := range bySplit {
		if _, ok := counts[s]; !ok {
			return counts, fmt.Errorf("unit with unknown split %q", s)
		}
	}
	return counts, nil
}

// ReadUnits loads a JSONL corpus artifact.
func ReadUnits(path string) ([]TrainingUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	var out []TrainingUnit
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var u TrainingUnit
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("%s:%d: decode unit: %w", path, line, err)
		}
		out = append(out, u)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s:%d: read corpus: %w", path, line, err)
	}
	return out, nil
}

// Responses returns the response texts of units, in order.
func Responses(units []TrainingUnit) []string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		out = append(out, u.Response)
	}
	return out
}
