// Package results normalizes processing payloads for display and CSV export.
//
// A payload is tabular when it is a JSON array whose every element is an
// object. Tabular payloads are flattened into rows keyed by column name;
// anything else is shown as indented JSON and left out of the export.
package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/transformar/console/internal/types"
)

// ErrNothingToExport is returned by Export when no entry is tabular.
var ErrNothingToExport = errors.New("nothing to export")

// FilePrefix is the prefix of exported CSV file names.
const FilePrefix = "resultados_"

// Row is one flat record with its keys in document order.
type Row struct {
	Keys   []string
	Values map[string]json.RawMessage
}

// Get returns the raw value of key and whether it was present.
func (r Row) Get(key string) (json.RawMessage, bool) {
	v, ok := r.Values[key]
	return v, ok
}

// IsTabular reports whether raw is an array of objects.
func IsTabular(raw json.RawMessage) bool {
	_, ok := decodeRows(raw)
	return ok
}

// Rows returns the records of a tabular payload, or nil and false.
func Rows(raw json.RawMessage) ([]Row, bool) {
	return decodeRows(raw)
}

// Flatten concatenates the rows of every tabular entry in input order.
func Flatten(entries []types.ProcessingResult) []Row {
	var out []Row
	for _, e := range entries {
		rows, ok := decodeRows(e.Result)
		if !ok {
			continue
		}
		out = append(out, rows...)
	}
	return out
}

// Columns returns the union of row keys in order of first appearance.
func Columns(rows []Row) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for _, k := range r.Keys {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

// Cell renders one value: empty for null or missing, the literal for strings,
// compact JSON otherwise.
func Cell(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// ToCSV serializes rows under the unioned header. Lines are joined with "\n"
// and there is no trailing newline. No rows yields the empty string.
func ToCSV(rows []Row) string {
	if len(rows) == 0 {
		return ""
	}
	cols := Columns(rows)

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, joinCells(cols))
	cells := make([]string, len(cols))
	for _, r := range rows {
		for i, c := range cols {
			v, _ := r.Get(c)
			cells[i] = Cell(v)
		}
		lines = append(lines, joinCells(cells))
	}
	return strings.Join(lines, "\n")
}

// Quote wraps v in double quotes when it contains a quote, comma, semicolon
// or line break, doubling inner quotes.
func Quote(v string) string {
	if !strings.ContainsAny(v, "\",;\n\r") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}

func joinCells(cells []string) string {
	quoted := make([]string, len(cells))
	for i, c := range cells {
		quoted[i] = Quote(c)
	}
	return strings.Join(quoted, ",")
}

// Pretty returns raw as indented JSON.
func Pretty(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// FileName returns the export file name for the given instant.
func FileName(now time.Time) string {
	return FilePrefix + now.Format("20060102-150405") + ".csv"
}

// Export writes the combined CSV of entries into dir and returns its path.
func Export(dir string, entries []types.ProcessingResult, now time.Time) (string, error) {
	rows := Flatten(entries)
	if len(rows) == 0 {
		return "", ErrNothingToExport
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName(now))
	if err := os.WriteFile(path, []byte(ToCSV(rows)), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Entry is the detail view of one processed input.
type Entry struct {
	FileLabel  string
	TemplateID string
	Compiled   types.Compiled
	Tabular    bool
	Columns    []string
	Rows       [][]string
	Text       string
}

// Entries builds the per-entry views of a run.
func Entries(run *types.Run) []Entry {
	if run == nil {
		return nil
	}
	out := make([]Entry, 0, len(run.Results))
	for _, r := range run.Results {
		e := Entry{
			FileLabel:  r.FileLabel,
			TemplateID: r.TemplateID,
			Compiled:   r.Compiled,
		}
		rows, ok := decodeRows(r.Result)
		if ok {
			e.Tabular = true
			e.Columns = Columns(rows)
			e.Rows = make([][]string, len(rows))
			for i, row := range rows {
				line := make([]string, len(e.Columns))
				for j, c := range e.Columns {
					v, _ := row.Get(c)
					line[j] = Cell(v)
				}
				e.Rows[i] = line
			}
		} else {
			e.Text = Pretty(r.Result)
		}
		out = append(out, e)
	}
	return out
}
