package ingest

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document is plain text extracted from a file written by the persona.
type Document struct {
	Title      string
	SourcePath string
	// Paragraphs are whitespace-normalized and never empty.
	Paragraphs []string
	Text       string
}

func ParseDocument(path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var (
		paras []string
		err   error
	)
	switch ext {
	case ".txt", ".md", ".docx":
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read file: %w", readErr)
		}
		if ext == ".docx" {
			paras, err = parseDOCX(raw)
		} else {
			paras = strings.Split(string(raw), "\n")
		}
	case ".pdf":
		paras, err = parsePDF(path)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	paras = cleanParagraphs(paras)
	return &Document{
		Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		SourcePath: path,
		Paragraphs: paras,
		Text:       strings.Join(paras, "\n"),
	}, nil
}

// ReadSamples loads a text collection for evaluation. JSONL files yield one
// sample per line from the "response" or "text" field, .txt files one
// sample per non-empty line, .docx/.pdf/.md files one sample per document,
// and directories the samples of every supported file inside, by name.
func ReadSamples(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat samples: %w", err)
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read samples dir: %w", err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && isSampleFile(e.Name()) {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		var out []string
		for _, name := range names {
			samples, err := ReadSamples(filepath.Join(path, name))
			if err != nil {
				return nil, err
			}
			out = append(out, samples...)
		}
		return out, nil
	}

	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return readJSONLSamples(path)
	}
	doc, err := ParseDocument(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return doc.Paragraphs, nil
	}
	if doc.Text == "" {
		return nil, nil
	}
	return []string{doc.Text}, nil
}

func isSampleFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jsonl", ".txt", ".md", ".docx", ".pdf":
		return true
	}
	return false
}

func readJSONLSamples(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open samples: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var row struct {
			Response string `json:"response"`
			Text     string `json:"text"`
		}
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			return nil, fmt.Errorf("%s:%d: decode sample: %w", path, line, err)
		}
		text := row.Response
		if text == "" {
			text = row.Text
		}
		if strings.TrimSpace(text) != "" {
			out = append(out, text)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s:%d: read samples: %w", path, line, err)
	}
	return out, nil
}

// parseDOCX returns the text of every w:p element of word/document.xml.
func parseDOCX(raw []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open docx zip: %w", err)
	}
	rc, err := zr.Open("word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("word/document.xml not found: %w", err)
	}
	defer rc.Close()

	var (
		paras []string
		cur   strings.Builder
		depth int
	)
	decoder := xml.NewDecoder(rc)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				depth++
			case "tab":
				cur.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				depth--
			case "p":
				paras = append(paras, cur.String())
				cur.Reset()
			}
		case xml.CharData:
			if depth > 0 {
				cur.Write(t)
			}
		}
	}
	if cur.Len() > 0 {
		paras = append(paras, cur.String())
	}
	return paras, nil
}

// parsePDF returns the plain text lines of every readable page.
func parsePDF(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		lines = append(lines, strings.Split(content, "\n")...)
	}
	if len(cleanParagraphs(lines)) == 0 {
		return nil, fmt.Errorf("no extractable text found in pdf")
	}
	return lines, nil
}

// cleanParagraphs collapses whitespace inside each paragraph and drops the
// empty ones.
func cleanParagraphs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			out = append(out, p)
		}
	}
	return out
}
