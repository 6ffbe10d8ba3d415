// Package report writes the per-run error logs and the exit report.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"

	"github.com/sells-group/crossref-sync/internal/model"
)

// File names inside the output directory.
const (
	GetErrorsFile      = "get_errors.txt"
	PutErrorsFile      = "put_errors.txt"
	CrossRefErrorsFile = "crossref_errors.txt"
	ExitReportFile     = "exit_report.txt"
)

// Reporter appends outcome lines to the error logs. Logs are opened on
// first use and get a UTF-8 byte order mark when created. It is safe for
// concurrent use.
type Reporter struct {
	dir string
	now func() time.Time

	mu    sync.Mutex
	files map[string]*os.File
}

// New creates a Reporter writing into dir, creating it if needed.
func New(dir string) (*Reporter, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create dir %s", dir)
	}
	return &Reporter{
		dir:   dir,
		now:   time.Now,
		files: make(map[string]*os.File),
	}, nil
}

// Dir is the output directory.
func (r *Reporter) Dir() string { return r.dir }

// Record logs the failures and non-CrossRef DOIs in o.
func (r *Reporter) Record(o model.RecordOutcome) error {
	switch o.Status {
	case model.OutcomeFetchFailed:
		if err := r.appendLine(GetErrorsFile, o.RecordID, failureURL(o.Failure), failureText(o.Failure)); err != nil {
			return err
		}
	case model.OutcomeUpdateFailed:
		if err := r.appendLine(PutErrorsFile, o.RecordID, failureURL(o.Failure), failureText(o.Failure)); err != nil {
			return err
		}
	}

	switch o.Resolve {
	case model.ResolveNotCrossRef:
		reason := "not a CrossRef DOI"
		if o.Agency != "" {
			reason += " (agency: " + o.Agency + ")"
		}
		return r.appendLine(CrossRefErrorsFile, o.DOI, reason)
	case model.ResolveFailed, model.ResolveNotFound:
		return r.appendLine(CrossRefErrorsFile, o.DOI, failureText(o.CrossRefError))
	}
	return nil
}

func failureURL(f *model.Failure) string {
	if f == nil {
		return ""
	}
	return f.URL
}

func failureText(f *model.Failure) string {
	if f == nil {
		return "unknown error"
	}
	if f.StatusCode != 0 {
		return fmt.Sprintf("%s %d: %s", f.Kind, f.StatusCode, f.Message)
	}
	return f.Error()
}

var fieldCleaner = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

func (r *Reporter) appendLine(name string, fields ...string) error {
	for i, f := range fields {
		fields[i] = fieldCleaner.Replace(f)
	}
	line := strings.Join(fields, "\t") + "\n"

	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.files[name]
	if !ok {
		path := filepath.Join(r.dir, name)
		_, statErr := os.Stat(path)
		created := os.IsNotExist(statErr)

		var err error
		f, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return eris.Wrapf(err, "report: open %s", path)
		}
		r.files[name] = f

		if created {
			if line, err = withBOM(line); err != nil {
				return err
			}
		}
	}

	if _, err := f.WriteString(line); err != nil {
		return eris.Wrapf(err, "report: write %s", name)
	}
	return nil
}

func withBOM(s string) (string, error) {
	out, err := unicode.UTF8BOM.NewEncoder().String(s)
	if err != nil {
		return "", eris.Wrap(err, "report: encode byte order mark")
	}
	return out, nil
}

// FormatExitReport renders the end-of-run counters.
func FormatExitReport(s model.Summary, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d research outputs were updated.\n", s.Updated)
	fmt.Fprintf(&b, "%d license values were updated.\n", s.LicensesUpdated)
	fmt.Fprintf(&b, "%d epub dates were written.\n", s.EpubsWritten)
	fmt.Fprintf(&b, "Records processed: %d\n", s.Total)
	if s.WouldUpdate > 0 {
		fmt.Fprintf(&b, "Would update (dry run): %d\n", s.WouldUpdate)
	}
	fmt.Fprintf(&b, "Unchanged: %d\n", s.Unchanged)
	fmt.Fprintf(&b, "Skipped: %d\n", s.Skipped)
	fmt.Fprintf(&b, "Fetch errors: %d\n", s.FetchErrors)
	fmt.Fprintf(&b, "Update errors: %d\n", s.UpdateErrors)
	fmt.Fprintf(&b, "Not CrossRef DOIs: %d\n", s.NotCrossRef)
	fmt.Fprintf(&b, "CrossRef errors: %d\n", s.CrossRefErrors)
	fmt.Fprintf(&b, "Completed: %s\n", at.Format(time.RFC3339))
	return b.String()
}

// WriteErrorTotals closes the run's section of get_errors.txt and
// put_errors.txt with the number of failed requests.
func (r *Reporter) WriteErrorTotals(s model.Summary) error {
	if err := r.appendLine(GetErrorsFile, fmt.Sprintf("%d get request errors occurred", s.FetchErrors)); err != nil {
		return err
	}
	return r.appendLine(PutErrorsFile, fmt.Sprintf("%d put request errors occurred", s.UpdateErrors))
}

// WriteExitReport replaces exit_report.txt with the summary.
func (r *Reporter) WriteExitReport(s model.Summary) error {
	content, err := withBOM(FormatExitReport(s, r.now()))
	if err != nil {
		return err
	}
	path := filepath.Join(r.dir, ExitReportFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}

// WriteOutcomes writes the outcomes as indented JSON to path.
func WriteOutcomes(path string, outcomes []model.RecordOutcome) error {
	if outcomes == nil {
		outcomes = []model.RecordOutcome{}
	}
	data, err := json.MarshalIndent(outcomes, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal outcomes")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}

// Close closes every open log.
func (r *Reporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, f := range r.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = eris.Wrapf(err, "report: close %s", name)
		}
		delete(r.files, name)
	}
	return firstErr
}
