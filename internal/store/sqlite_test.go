package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crossref-sync/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_MigrateIsRepeatable(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_ConcurrentRecordOutcome(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "dois.csv", 25, false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 25)
	for i := range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- st.RecordOutcome(ctx, run.ID, model.RecordOutcome{
				Line:   i + 2,
				DOI:    "10.1/x",
				Status: model.OutcomeUnchanged,
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := st.ListOutcomes(ctx, run.ID, OutcomeFilter{})
	require.NoError(t, err)
	require.Len(t, got, 25)
	for i, o := range got {
		assert.Equal(t, i+2, o.Line)
	}
}

func TestSQLite_SkipsColumn(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "dois.csv", 1, false)
	require.NoError(t, err)
	require.NoError(t, st.RecordOutcome(ctx, run.ID, model.RecordOutcome{
		Line:   2,
		DOI:    "10.1/a",
		Status: model.OutcomeSkipped,
		Skips:  []model.SkipReason{model.SkipNoLicense, model.SkipNoEpubDate},
	}))

	var skips string
	err = st.db.QueryRowContext(ctx, `SELECT skips FROM record_outcomes WHERE run_id = ?`, run.ID).Scan(&skips)
	require.NoError(t, err)
	assert.Equal(t, "no_license,no_epub_date", skips)
}

func TestSQLite_ClosedDB(t *testing.T) {
	st, err := NewSQLite(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = st.CreateRun(context.Background(), "x.csv", 0, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: insert run")
}
