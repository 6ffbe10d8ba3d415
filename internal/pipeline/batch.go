package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/crossref-sync/internal/input"
	"github.com/sells-group/crossref-sync/internal/model"
)

// Run processes rows and returns the tallied summary with one outcome per
// row in input order. Outcomes reach the recorder and the ledger in input
// order as well, whatever the concurrency. Only ledger failures and
// cancellation stop the batch; the summary covers every row handled so far.
func (p *Pipeline) Run(ctx context.Context, rows []input.Row) (*model.Summary, []model.RecordOutcome, error) {
	start := time.Now()
	log := zap.L().With(zap.Int("rows", len(rows)), zap.Bool("dry_run", p.dryRun))

	var runID string
	if p.store != nil {
		run, err := p.store.CreateRun(ctx, p.source, len(rows), p.dryRun)
		if err != nil {
			return &model.Summary{}, nil, eris.Wrap(err, "pipeline: create run")
		}
		runID = run.ID
		log = log.With(zap.String("run_id", runID))
	}
	log.Info("pipeline: starting batch", zap.Int("concurrency", p.concurrency))

	seq := newSequencer(len(rows), func(o model.RecordOutcome) error {
		return p.emit(ctx, runID, o)
	})

	var err error
	if p.concurrency > 1 {
		err = p.runParallel(ctx, rows, seq)
	} else {
		err = p.runSequential(ctx, rows, seq)
	}

	summary, outcomes := seq.result()
	if err != nil {
		log.Error("pipeline: batch aborted", zap.Int("processed", summary.Total), zap.Error(err))
		if p.store != nil {
			if failErr := p.store.FailRun(context.WithoutCancel(ctx), runID, err.Error()); failErr != nil {
				log.Warn("pipeline: failed to mark run failed", zap.Error(failErr))
			}
		}
		return summary, outcomes, err
	}

	if p.store != nil {
		if err := p.store.CompleteRun(ctx, runID, *summary); err != nil {
			return summary, outcomes, eris.Wrap(err, "pipeline: complete run")
		}
	}

	log.Info("pipeline: batch complete",
		zap.Int("updated", summary.Updated),
		zap.Int("would_update", summary.WouldUpdate),
		zap.Int("unchanged", summary.Unchanged),
		zap.Int("skipped", summary.Skipped),
		zap.Int("fetch_errors", summary.FetchErrors),
		zap.Int("update_errors", summary.UpdateErrors),
		zap.Int("crossref_errors", summary.CrossRefErrors),
		zap.Int("not_crossref", summary.NotCrossRef),
		zap.Duration("elapsed", time.Since(start)),
	)
	return summary, outcomes, nil
}

func (p *Pipeline) runSequential(ctx context.Context, rows []input.Row, seq *sequencer) error {
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "pipeline: cancelled")
		}
		if err := seq.done(i, p.Process(ctx, row)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) runParallel(ctx context.Context, rows []input.Row, seq *sequencer) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, row := range rows {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			return seq.done(i, p.Process(gCtx, row))
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "pipeline: cancelled")
	}
	return nil
}

// emit hands one outcome to the recorder and the ledger. Recorder failures
// are logged; ledger failures stop the run.
func (p *Pipeline) emit(ctx context.Context, runID string, o model.RecordOutcome) error {
	if p.recorder != nil {
		if err := p.recorder.Record(o); err != nil {
			zap.L().Error("pipeline: failed to write report line", zap.Int("line", o.Line), zap.Error(err))
		}
	}
	if p.store != nil {
		if err := p.store.RecordOutcome(ctx, runID, o); err != nil {
			return eris.Wrapf(err, "pipeline: record outcome for line %d", o.Line)
		}
	}
	return nil
}

// sequencer collects outcomes by row index and releases them in order.
type sequencer struct {
	mu       sync.Mutex
	outcomes []model.RecordOutcome
	ready    []bool
	next     int
	summary  model.Summary
	sink     func(model.RecordOutcome) error
}

func newSequencer(n int, sink func(model.RecordOutcome) error) *sequencer {
	return &sequencer{
		outcomes: make([]model.RecordOutcome, n),
		ready:    make([]bool, n),
		sink:     sink,
	}
}

func (s *sequencer) done(i int, o model.RecordOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outcomes[i] = o
	s.ready[i] = true
	for s.next < len(s.ready) && s.ready[s.next] {
		out := s.outcomes[s.next]
		s.next++
		s.summary.Add(out)
		if err := s.sink(out); err != nil {
			return err
		}
	}
	return nil
}

// result returns the summary and the contiguous prefix of released outcomes.
func (s *sequencer) result() (*model.Summary, []model.RecordOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := s.summary
	return &summary, s.outcomes[:s.next:s.next]
}
