// Package ingest loads tabular files into datasets, inferring a column
// type for each field from its values.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/heliodata/autoanalyst/pkg/dataset"
)

// Format identifies a supported input encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Metadata describes a loaded dataset.
type Metadata struct {
	Source  string
	Format  Format
	Rows    int
	Columns int
}

// DetectFormat picks a format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported file extension %q (want .csv or .json)", filepath.Ext(path))
	}
}

// LoadFile reads path into a dataset, detecting the format from the
// extension.
func LoadFile(path string) (*dataset.Dataset, *Metadata, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ds, err := Load(f, format)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}
	return ds, &Metadata{
		Source:  path,
		Format:  format,
		Rows:    ds.NumRows(),
		Columns: ds.NumCols(),
	}, nil
}

// Load reads one table from r in the given format. CSV input needs a
// header row; JSON input is an array of flat objects.
func Load(r io.Reader, format Format) (*dataset.Dataset, error) {
	switch format {
	case FormatCSV:
		return loadCSV(r)
	case FormatJSON:
		return loadJSON(r)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func loadCSV(r io.Reader) (*dataset.Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv input has no header row")
	}
	header := records[0]
	raw := make([][]string, len(header))
	for _, rec := range records[1:] {
		for i := range header {
			cell := ""
			if i < len(rec) {
				cell = rec[i]
			}
			raw[i] = append(raw[i], cell)
		}
	}

	cols := make([]dataset.Column, len(header))
	for i, name := range header {
		cols[i] = inferColumn(name, raw[i])
	}
	return dataset.New(cols...)
}

func loadJSON(r io.Reader) (*dataset.Dataset, error) {
	var rows []map[string]any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("json input has no rows")
	}

	// Column order follows first appearance across rows.
	var names []string
	seen := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	// Keys within one object are unordered in Go, so sort the remainder
	// after the first row's keys for a stable layout.
	sortNames(names, rows[0])

	cols := make([]dataset.Column, 0, len(names))
	for _, name := range names {
		cells := make([]string, len(rows))
		for i, row := range rows {
			cells[i] = jsonCell(row[name])
		}
		cols = append(cols, inferColumn(name, cells))
	}
	return dataset.New(cols...)
}

func sortNames(names []string, first map[string]any) {
	rank := func(n string) int {
		if _, ok := first[n]; ok {
			return 0
		}
		return 1
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0; j-- {
			a, b := names[j-1], names[j]
			if rank(a) > rank(b) || (rank(a) == rank(b) && a > b) {
				names[j-1], names[j] = b, a
			}
		}
	}
}

func jsonCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// timeLayouts are tried in order when probing a text cell for a date.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// inferColumn probes the raw string cells and, when every non-empty cell
// parses under a candidate type, builds a typed column: numeric first,
// then boolean, then temporal. Empty cells become nulls. A column whose
// values fit none of those is categorical when it has few distinct values
// relative to its size, otherwise free text.
func inferColumn(name string, cells []string) dataset.Column {
	nonEmpty := 0
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			nonEmpty++
		}
	}

	if nonEmpty > 0 {
		if col, ok := tryNumeric(name, cells); ok {
			return col
		}
		if col, ok := tryBool(name, cells); ok {
			return col
		}
		if col, ok := tryTime(name, cells); ok {
			return col
		}
	}

	values := make([]any, len(cells))
	distinct := map[string]bool{}
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		values[i] = c
		distinct[c] = true
	}
	typ := dataset.TypeText
	if nonEmpty > 0 && len(distinct) <= categoricalLimit(nonEmpty) {
		typ = dataset.TypeCategorical
	}
	return dataset.Column{Name: name, Type: typ, Values: values}
}

// categoricalLimit is the distinct-value threshold below which a text
// column is treated as categorical.
func categoricalLimit(n int) int {
	limit := n / 2
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}
	return limit
}

func tryNumeric(name string, cells []string) (dataset.Column, bool) {
	values := make([]any, len(cells))
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(c, ",", ""), 64)
		if err != nil {
			return dataset.Column{}, false
		}
		values[i] = f
	}
	return dataset.Column{Name: name, Type: dataset.TypeNumeric, Values: values}, true
}

func tryBool(name string, cells []string) (dataset.Column, bool) {
	values := make([]any, len(cells))
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		switch strings.ToLower(c) {
		case "true", "yes":
			values[i] = true
		case "false", "no":
			values[i] = false
		default:
			return dataset.Column{}, false
		}
	}
	return dataset.Column{Name: name, Type: dataset.TypeBool, Values: values}, true
}

func tryTime(name string, cells []string) (dataset.Column, bool) {
	values := make([]any, len(cells))
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		var parsed time.Time
		ok := false
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, c); err == nil {
				parsed, ok = t, true
				break
			}
		}
		if !ok {
			return dataset.Column{}, false
		}
		values[i] = parsed
	}
	return dataset.Column{Name: name, Type: dataset.TypeTime, Values: values}, true
}
