// Package resolver turns a DOI into the license, embargo and e-pub metadata
// CrossRef holds for it.
package resolver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/crossref-sync/internal/model"
	"github.com/sells-group/crossref-sync/internal/resilience"
	"github.com/sells-group/crossref-sync/pkg/crossref"
)

// Resolution is the outcome of one DOI lookup. Result is all-absent unless
// Status is ResolveOK.
type Resolution struct {
	DOI     string
	Result  model.CrossRefResult
	Status  model.ResolveStatus
	Agency  string
	Failure *model.Failure
	Skips   []model.SkipReason
}

// OK reports whether the work record was read.
func (r Resolution) OK() bool {
	return r.Status == model.ResolveOK
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBaseURL sets the base URL recorded on failures. It should match the
// client's.
func WithBaseURL(u string) Option {
	return func(r *Resolver) {
		r.baseURL = u
	}
}

// WithClock replaces the clock used to decide whether a license is in force.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// Resolver looks DOIs up in CrossRef.
type Resolver struct {
	client  crossref.Client
	baseURL string
	now     func() time.Time
}

// New creates a Resolver backed by client.
func New(client crossref.Client, opts ...Option) *Resolver {
	r := &Resolver{
		client:  client,
		baseURL: crossref.DefaultBaseURL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve checks that CrossRef registered doi and extracts its metadata.
// Failures never escape as errors; they are classified on the Resolution.
func (r *Resolver) Resolve(ctx context.Context, doi string) Resolution {
	log := zap.L().With(zap.String("doi", doi))
	res := Resolution{DOI: doi}

	workURL := crossref.WorkURL(r.baseURL, doi)

	agency, err := r.client.Agency(ctx, doi)
	if err != nil {
		return r.failed(log, res, err, workURL+"/agency")
	}
	res.Agency = agency.ID
	if !agency.IsCrossRef() {
		log.Info("resolver: doi not registered with crossref", zap.String("agency", agency.ID))
		res.Status = model.ResolveNotCrossRef
		res.Skips = append(res.Skips, model.SkipNotCrossRef)
		return res
	}

	work, err := r.client.Work(ctx, doi)
	if err != nil {
		return r.failed(log, res, err, workURL)
	}

	result, skips := Extract(work, r.now())
	res.Result = result
	res.Skips = append(res.Skips, skips...)
	res.Status = model.ResolveOK

	log.Debug("resolver: resolved",
		zap.String("license", result.LicenseURL),
		zap.String("epub", dateString(result.EpubDate)),
		zap.String("embargo_end", dateString(result.EmbargoEnd)),
	)
	return res
}

func (r *Resolver) failed(log *zap.Logger, res Resolution, err error, url string) Resolution {
	res.Failure = resilience.Describe(err, url)
	res.Result = model.CrossRefResult{}
	if res.Failure.Kind == model.FailureNotFound {
		res.Status = model.ResolveNotFound
	} else {
		res.Status = model.ResolveFailed
	}
	res.Skips = append(res.Skips, model.SkipCrossRefUnavailable)
	log.Warn("resolver: lookup failed",
		zap.String("kind", string(res.Failure.Kind)),
		zap.String("url", url),
		zap.Error(err),
	)
	return res
}

// Extract reads the e-pub date and the first version-of-record license from
// work. A license starting after now's calendar date yields an embargo end
// at day precision; the license URL is reported either way.
func Extract(work *crossref.Work, now time.Time) (model.CrossRefResult, []model.SkipReason) {
	var (
		result model.CrossRefResult
		skips  []model.SkipReason
	)
	if work == nil {
		return result, nil
	}

	if parts := work.PublishedOnline.First(); parts != nil {
		if d, ok := bestDate(parts); ok {
			result.EpubDate = &d
		} else {
			skips = append(skips, model.SkipUnparseableDate)
		}
	}

	lic := work.VersionOfRecordLicense()
	if lic == nil || lic.URL == "" {
		return result, skips
	}
	result.LicenseURL = lic.URL

	parts := lic.Start.First()
	if parts == nil {
		return result, skips
	}
	start, ok := bestDate(parts)
	if !ok {
		return result, append(skips, model.SkipUnparseableDate)
	}
	result.LicenseStart = &start

	today := model.DateOf(now.UTC())
	if start.After(today) {
		end := start.AtDay()
		result.EmbargoEnd = &end
	}
	return result, skips
}

// bestDate tries day, then month, then year precision and returns the
// first that validates.
func bestDate(parts []int) (model.PartialDate, bool) {
	for n := min(len(parts), 3); n > 0; n-- {
		if d, err := model.PartialDateFromParts(parts[:n]); err == nil {
			return d, true
		}
	}
	return model.PartialDate{}, false
}

func dateString(d *model.PartialDate) string {
	if d == nil {
		return ""
	}
	return d.ISO()
}
