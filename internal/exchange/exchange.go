// Package exchange moves extracted units in and out of the tool as CSV
// or versioned JSON, the round-trip format for human translators and
// spreadsheet review.
package exchange

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Row statuses. Import ignores skipped rows and rows without a
// translation; everything else is applied.
const (
	StatusPending    = "pending"
	StatusCached     = "cached"
	StatusTranslated = "translated"
	StatusSkipped    = "skipped"
)

// Row is one unit in an exchange file.
type Row struct {
	File       string `json:"file"`
	Path       string `json:"path"`
	Original   string `json:"original"`
	Translated string `json:"translated"`
	Status     string `json:"status"`
}

// Document is the JSON envelope. Version gates future format changes.
type Document struct {
	Version string `json:"version"`
	Source  string `json:"source,omitempty"`
	Target  string `json:"target,omitempty"`
	Units   []Row  `json:"units"`
}

const Version = "1.0"

var csvHeader = []string{"file", "path", "original", "translated", "status"}

// utf8BOM makes spreadsheet applications detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes rows as UTF-8 CSV with a BOM and a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.File, r.Path, r.Original, r.Translated, r.Status}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a CSV produced by WriteCSV or edited in a spreadsheet.
// A leading BOM is tolerated, the header line is required.
func ReadCSV(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = len(csvHeader)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty csv")
	}
	for i, name := range csvHeader {
		if !strings.EqualFold(records[0][i], name) {
			return nil, fmt.Errorf("unexpected csv header %q, want %q", records[0][i], name)
		}
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, Row{
			File:       rec[0],
			Path:       rec[1],
			Original:   rec[2],
			Translated: rec[3],
			Status:     rec[4],
		})
	}
	return rows, nil
}

// WriteJSON writes the envelope indented, with HTML escaping off so CJK
// quoting and angle-bracket tags stay readable.
func WriteJSON(w io.Writer, doc *Document) error {
	doc.Version = Version
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode exchange json: %w", err)
	}
	return nil
}

// ReadJSON reads a WriteJSON envelope.
func ReadJSON(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode exchange json: %w", err)
	}
	if doc.Version != Version && !strings.HasPrefix(doc.Version, "1.") {
		return nil, fmt.Errorf("exchange file version %q not supported", doc.Version)
	}
	return &doc, nil
}

// ReadFile loads either exchange form, picked by extension.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f)
	case ".json":
		doc, err := ReadJSON(f)
		if err != nil {
			return nil, err
		}
		return doc.Units, nil
	}
	return nil, fmt.Errorf("unsupported exchange format %q", filepath.Ext(path))
}

// WriteFile writes rows to path, picking the form by extension.
func WriteFile(path string, doc *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		err = WriteCSV(f, doc.Units)
	case ".json":
		err = WriteJSON(f, doc)
	default:
		err = fmt.Errorf("unsupported exchange format %q", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return f.Close()
}

// Merge folds row sets in order; a later row for the same (file, path)
// replaces the earlier one.
func Merge(sets ...[]Row) []Row {
	type key struct{ file, path string }
	index := make(map[key]int)
	var out []Row
	for _, rows := range sets {
		for _, r := range rows {
			k := key{r.File, r.Path}
			if i, ok := index[k]; ok {
				out[i] = r
				continue
			}
			index[k] = len(out)
			out = append(out, r)
		}
	}
	return out
}

// GroupForApply turns rows into per-file translation maps keyed by unit
// path, dropping skipped rows and rows without a translation.
func GroupForApply(rows []Row) map[string]map[string]string {
	files := make(map[string]map[string]string)
	for _, r := range rows {
		if r.Status == StatusSkipped || r.Translated == "" {
			continue
		}
		m, ok := files[r.File]
		if !ok {
			m = make(map[string]string)
			files[r.File] = m
		}
		m[r.Path] = r.Translated
	}
	return files
}
