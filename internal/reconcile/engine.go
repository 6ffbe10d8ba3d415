// Package reconcile decides which license, embargo and e-pub changes a
// repository record needs to match what CrossRef reports.
package reconcile

import (
	"encoding/json"

	"github.com/sells-group/crossref-sync/internal/model"
	"github.com/sells-group/crossref-sync/pkg/pure"
)

// Engine computes record changes. The zero value writes en_US terms and
// leaves stale embargo periods in place.
type Engine struct {
	// Locale keys the display terms written to classifications.
	Locale string
	// ClearStaleEmbargo removes an existing embargo period when the
	// license is already in force.
	ClearStaleEmbargo bool
}

// Decision is the result of reconciling one record.
type Decision struct {
	// Payload is the partial update to send. Version is always set.
	Payload pure.UpdatePayload
	// Updated is the record with the changes applied.
	Updated *pure.ResearchOutput

	LicenseClass   model.LicenseClass
	LicenseChanged bool
	EpubChanged    bool
	// EpubDiscarded is set when the e-pub date fell after the print date.
	EpubDiscarded bool
	Skips         []model.SkipReason
}

// Changed reports whether an update is needed.
func (d Decision) Changed() bool {
	return d.LicenseChanged || d.EpubChanged
}

func (d *Decision) skip(r model.SkipReason) {
	d.Skips = append(d.Skips, r)
}

func (e Engine) locale() string {
	if e.Locale == "" {
		return pure.DefaultLocale
	}
	return e.Locale
}

// Reconcile compares result with rec and returns the changes rec needs.
// rec is not modified.
func (e Engine) Reconcile(result model.CrossRefResult, rec *pure.ResearchOutput) Decision {
	out := rec.Clone()
	d := Decision{Updated: out}

	e.reconcileLicense(result, out, &d)

	epub := guardEpub(result.EpubDate, printDate(rec), &d)
	e.reconcileEpub(epub, out, &d)

	d.Payload.Version = append(json.RawMessage(nil), rec.Version...)
	if d.LicenseChanged {
		d.Payload.ElectronicVersions = out.ElectronicVersions
	}
	if d.EpubChanged {
		d.Payload.PublicationStatuses = out.PublicationStatuses
	}
	return d
}
