// Package input reads the DOI to record id mapping from CSV, TSV or XLSX files.
package input

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Defaults for the column headers.
const (
	DefaultDOIColumn = "DOI"
	DefaultIDColumn  = "UUID"
)

// Options selects the columns to read.
type Options struct {
	DOIColumn string
	IDColumn  string
	// Sheet names the XLSX worksheet. Empty selects the first.
	Sheet string
}

func (o Options) withDefaults() Options {
	if o.DOIColumn == "" {
		o.DOIColumn = DefaultDOIColumn
	}
	if o.IDColumn == "" {
		o.IDColumn = DefaultIDColumn
	}
	return o
}

// Row is one DOI and record id pair. Line is the 1-based row number in the
// file, counting the header.
type Row struct {
	Line     int    `json:"line"`
	DOI      string `json:"doi"`
	RecordID string `json:"record_id"`
}

// Load reads every non-blank row of the file at path.
func Load(ctx context.Context, path string, opts Options) ([]Row, error) {
	opts = opts.withDefaults()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		records, err := ReadXLSX(path, opts.Sheet)
		if err != nil {
			return nil, eris.Wrapf(err, "input: read %s", path)
		}
		return rowsFrom(records, opts)
	case ".csv", ".tsv", ".txt":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "input: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		csvOpts := CSVOptions{}
		if ext == ".tsv" {
			csvOpts.Delimiter = '\t'
		}
		rowCh, errCh := StreamCSV(ctx, f, csvOpts)
		var records [][]string
		for rec := range rowCh {
			records = append(records, rec)
		}
		if err := <-errCh; err != nil {
			return nil, eris.Wrapf(err, "input: read %s", path)
		}
		return rowsFrom(records, opts)
	default:
		return nil, eris.Errorf("input: unsupported file type %q (want .csv, .tsv, .txt or .xlsx)", ext)
	}
}

// rowsFrom maps records to rows using the header in records[0].
func rowsFrom(records [][]string, opts Options) ([]Row, error) {
	if len(records) == 0 {
		return nil, eris.New("input: file is empty")
	}
	header := records[0]

	doiIdx, err := columnIndex(header, opts.DOIColumn)
	if err != nil {
		return nil, err
	}
	idIdx, err := columnIndex(header, opts.IDColumn)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for i, rec := range records[1:] {
		row := Row{
			Line:     i + 2,
			DOI:      NormalizeDOI(cell(rec, doiIdx)),
			RecordID: cell(rec, idIdx),
		}
		if row.DOI == "" && row.RecordID == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func columnIndex(header []string, name string) (int, error) {
	want := strings.TrimSpace(name)
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return i, nil
		}
	}
	return -1, eris.Errorf("input: column %q not found (available: %s)", name, strings.Join(header, ", "))
}

func cell(rec []string, idx int) string {
	if idx < len(rec) {
		return strings.TrimSpace(rec[idx])
	}
	return ""
}

var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// NormalizeDOI strips resolver URL and "doi:" prefixes. Case is preserved.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	for _, p := range doiPrefixes {
		if len(doi) >= len(p) && strings.EqualFold(doi[:len(p)], p) {
			return strings.TrimSpace(doi[len(p):])
		}
	}
	return doi
}
