// Package pipeline runs each input row through fetch, resolve, reconcile and
// update, and hands the outcomes to the reporter and the run ledger.
package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/crossref-sync/internal/input"
	"github.com/sells-group/crossref-sync/internal/model"
	"github.com/sells-group/crossref-sync/internal/reconcile"
	"github.com/sells-group/crossref-sync/internal/resilience"
	"github.com/sells-group/crossref-sync/internal/resolver"
	"github.com/sells-group/crossref-sync/internal/store"
	"github.com/sells-group/crossref-sync/pkg/pure"
)

// Resolver looks a DOI up in CrossRef. *resolver.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, doi string) resolver.Resolution
}

// Recorder receives every outcome. *report.Reporter implements it.
type Recorder interface {
	Record(o model.RecordOutcome) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDryRun computes changes without sending updates.
func WithDryRun(dryRun bool) Option {
	return func(p *Pipeline) {
		p.dryRun = dryRun
	}
}

// WithConcurrency sets how many rows are processed at once. Values below 2
// process rows one at a time in input order.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		p.concurrency = n
	}
}

// WithRecorder sends each outcome to r.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithStore records the run and its outcomes in st. source labels the run.
func WithStore(st store.Store, source string) Option {
	return func(p *Pipeline) {
		p.store = st
		p.source = source
	}
}

// Pipeline reconciles repository records against CrossRef.
type Pipeline struct {
	pure     pure.Client
	resolver Resolver
	engine   reconcile.Engine

	dryRun      bool
	concurrency int
	recorder    Recorder
	store       store.Store
	source      string
}

// New creates a Pipeline.
func New(pureClient pure.Client, res Resolver, engine reconcile.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		pure:        pureClient,
		resolver:    res,
		engine:      engine,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles one row. Failures are reported on the outcome, never
// returned.
func (p *Pipeline) Process(ctx context.Context, row input.Row) model.RecordOutcome {
	o := model.RecordOutcome{Line: row.Line, DOI: row.DOI, RecordID: row.RecordID}
	log := zap.L().With(
		zap.Int("line", row.Line),
		zap.String("doi", row.DOI),
		zap.String("record_id", row.RecordID),
	)

	if row.DOI == "" || row.RecordID == "" {
		o.Status = model.OutcomeSkipped
		if row.DOI == "" {
			o.Skips = append(o.Skips, model.SkipMissingDOI)
		}
		if row.RecordID == "" {
			o.Skips = append(o.Skips, model.SkipMissingRecordID)
		}
		log.Warn("pipeline: incomplete row", zap.Any("skips", o.Skips))
		return o
	}

	rec, err := p.pure.Get(ctx, row.RecordID)
	if err != nil {
		o.Status = model.OutcomeFetchFailed
		o.Failure = resilience.Describe(err, p.pure.RecordURL(row.RecordID))
		if pure.IsNotFound(err) {
			log.Warn("pipeline: record not found", zap.String("url", o.Failure.URL))
			return o
		}
		log.Warn("pipeline: fetch failed", zap.String("kind", string(o.Failure.Kind)), zap.Error(err))
		return o
	}

	res := p.resolver.Resolve(ctx, row.DOI)
	o.Resolve = res.Status
	o.Agency = res.Agency
	o.CrossRef = res.Result
	o.CrossRefError = res.Failure
	o.Skips = append(o.Skips, res.Skips...)

	d := p.engine.Reconcile(res.Result, rec)
	o.LicenseClass = d.LicenseClass
	o.LicenseChanged = d.LicenseChanged
	o.EpubChanged = d.EpubChanged
	o.EpubDiscarded = d.EpubDiscarded
	o.Skips = append(o.Skips, d.Skips...)

	switch {
	case !d.Changed() && res.OK():
		o.Status = model.OutcomeUnchanged
		if res.Result.IsEmpty() {
			log.Info("pipeline: crossref has no license or e-pub date")
		} else {
			log.Debug("pipeline: record already current")
		}
		return o
	case !d.Changed():
		o.Status = model.OutcomeSkipped
		log.Info("pipeline: no crossref metadata", zap.String("resolve", string(res.Status)))
		return o
	case p.dryRun:
		o.Status = model.OutcomeWouldUpdate
		log.Info("pipeline: would update",
			zap.Bool("license", d.LicenseChanged),
			zap.Bool("epub", d.EpubChanged),
		)
		return o
	}

	if err := p.pure.Update(ctx, row.RecordID, d.Payload); err != nil {
		o.Status = model.OutcomeUpdateFailed
		o.Failure = resilience.Describe(err, p.pure.RecordURL(row.RecordID))
		var apiErr *pure.APIError
		if errors.As(err, &apiErr) && apiErr.Conflict() {
			// Not retried: the version token is stale and the record has to be
			// fetched again on a later run.
			o.Failure.Message = "version conflict, record changed since it was read: " + o.Failure.Message
		}
		log.Warn("pipeline: update failed", zap.String("kind", string(o.Failure.Kind)), zap.Error(err))
		return o
	}

	o.Status = model.OutcomeUpdated
	log.Info("pipeline: record updated",
		zap.Bool("license", d.LicenseChanged),
		zap.String("license_class", string(d.LicenseClass)),
		zap.Bool("epub", d.EpubChanged),
	)
	return o
}
