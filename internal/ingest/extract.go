package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Unit is one raw source unit: a file, an API record or a form section.
// Extraction yields the passage text or an explicit failure; it never panics
// through a batch.
type Unit interface {
	// Ref is the original path or identifier, kept as provenance.
	Ref() string
	// Source is the source system tag ("files", "records", ...).
	Source() string
	// Kind names the extraction type ("text", "pdf", "record").
	Kind() string
	// Extract returns the unit's raw text.
	Extract() (string, error)
}

// TextUnit reads a plain-text file.
type TextUnit struct {
	Path string
}

func (u TextUnit) Ref() string    { return u.Path }
func (u TextUnit) Source() string { return "files" }
func (u TextUnit) Kind() string   { return "text" }

func (u TextUnit) Extract() (string, error) {
	data, err := os.ReadFile(u.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", u.Path, err)
	}
	return string(data), nil
}

// PDFUnit extracts the plain text of a PDF file.
type PDFUnit struct {
	Path string
}

func (u PDFUnit) Ref() string    { return u.Path }
func (u PDFUnit) Source() string { return "files" }
func (u PDFUnit) Kind() string   { return "pdf" }

func (u PDFUnit) Extract() (string, error) {
	data, err := os.ReadFile(u.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", u.Path, err)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf %s: %w", u.Path, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text %s: %w", u.Path, err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", u.Path, err)
	}
	return string(out), nil
}

// failedUnit carries a load error into the run summary. One unreadable or
// malformed file becomes a failed outcome, never an aborted batch.
type failedUnit struct {
	path string
	err  error
}

func (u failedUnit) Ref() string              { return u.path }
func (u failedUnit) Source() string           { return "files" }
func (u failedUnit) Kind() string             { return "invalid" }
func (u failedUnit) Extract() (string, error) { return "", u.err }

// LoadDir walks a directory and builds units by extension: .txt/.md as plain
// text, .pdf as PDF, .json as record files (one unit per record). Other
// extensions are ignored. Files that cannot be read or parsed still yield a
// unit, one whose extraction fails, so they surface in the run summary
// without blocking their neighbors.
func LoadDir(dir string) ([]Unit, error) {
	var units []Unit
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			units = append(units, failedUnit{path: path, err: err})
			return nil
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
			units = append(units, TextUnit{Path: path})
		case ".pdf":
			units = append(units, PDFUnit{Path: path})
		case ".json":
			recordUnits, err := LoadRecordFile(path)
			if err != nil {
				units = append(units, failedUnit{path: path, err: err})
				return nil
			}
			units = append(units, recordUnits...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return units, nil
}

// LoadRecordFile reads a JSON file holding either one record object or an
// array of them, producing one unit per record.
func LoadRecordFile(path string) ([]Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	trimmed := bytes.TrimSpace(data)
	var records []map[string]any
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		var one map[string]any
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		records = append(records, one)
	}
	units := make([]Unit, 0, len(records))
	for i, rec := range records {
		units = append(units, RecordUnit{
			Record: rec,
			Path:   path,
			Pos:    i,
		})
	}
	return units, nil
}
