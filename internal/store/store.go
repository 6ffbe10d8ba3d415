// Package store persists the run ledger: one row per sync run and one per
// processed input row.
package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/sells-group/crossref-sync/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Input  string          `json:"input,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// OutcomeFilter specifies criteria for listing a run's outcomes.
type OutcomeFilter struct {
	Status     model.OutcomeStatus `json:"status,omitempty"`
	FailedOnly bool                `json:"failed_only,omitempty"`
	DOI        string              `json:"doi,omitempty"`
	Limit      int                 `json:"limit,omitempty"`
	Offset     int                 `json:"offset,omitempty"`
}

// Store defines the persistence interface for the run ledger.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, input string, total int, dryRun bool) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary model.Summary) error
	FailRun(ctx context.Context, runID string, msg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Outcomes
	RecordOutcome(ctx context.Context, runID string, outcome model.RecordOutcome) error
	ListOutcomes(ctx context.Context, runID string, filter OutcomeFilter) ([]model.RecordOutcome, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const (
	defaultRunLimit     = 100
	defaultOutcomeLimit = 1000
)

var runColumns = []string{"id", "input", "status", "total", "dry_run", "summary", "error", "created_at", "updated_at"}

// listRunsQuery builds the run listing for the given placeholder dialect.
func listRunsQuery(filter RunFilter, ph sq.PlaceholderFormat) (string, []any, error) {
	q := sq.Select(runColumns...).From("runs").OrderBy("created_at DESC").PlaceholderFormat(ph)
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Input != "" {
		q = q.Where(sq.Eq{"input": filter.Input})
	}
	q = q.Limit(limitOr(filter.Limit, defaultRunLimit))
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q.ToSql()
}

// listOutcomesQuery builds the outcome listing, ordered by input line.
func listOutcomesQuery(runID string, filter OutcomeFilter, ph sq.PlaceholderFormat) (string, []any, error) {
	q := sq.Select("data").From("record_outcomes").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("line ASC").
		PlaceholderFormat(ph)
	switch {
	case filter.FailedOnly:
		q = q.Where(sq.Eq{"status": []string{
			string(model.OutcomeFetchFailed),
			string(model.OutcomeUpdateFailed),
		}})
	case filter.Status != "":
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.DOI != "" {
		q = q.Where(sq.Eq{"doi": filter.DOI})
	}
	q = q.Limit(limitOr(filter.Limit, defaultOutcomeLimit))
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q.ToSql()
}

func limitOr(limit, def int) uint64 {
	if limit <= 0 {
		return uint64(def)
	}
	return uint64(limit)
}

func skipsText(skips []model.SkipReason) string {
	var b []byte
	for i, s := range skips {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, s...)
	}
	return string(b)
}
