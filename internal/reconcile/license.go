package reconcile

import (
	"net/url"
	"path"
	"strings"

	"github.com/sells-group/crossref-sync/internal/model"
	"github.com/sells-group/crossref-sync/pkg/pure"
)

// CreativeCommonsHost is the only host whose licenses are classified.
const CreativeCommonsHost = "creativecommons.org"

// ClassifyLicense maps a Creative Commons license URL to its class. The
// license code is the second path segment, as in /licenses/by-nc/4.0/.
// ok is false for URLs that are not on CreativeCommonsHost.
func ClassifyLicense(rawURL string) (class model.LicenseClass, ok bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !strings.EqualFold(u.Hostname(), CreativeCommonsHost) {
		return "", false
	}

	// u.Path is already percent-decoded.
	segments := strings.Split(path.Clean("/"+u.Path), "/")
	if len(segments) < 3 {
		return model.LicenseOther, true
	}
	return model.LicenseClassForCode(strings.ToLower(segments[2])), true
}

type licenseState struct {
	accessURI  string
	accessTerm string
	hasEmbargo   bool
	embargoStart string
	embargoEnd   string
	licenseURI string
	licTerm    string
}

func (e Engine) stateOf(v pure.ElectronicVersion) licenseState {
	var s licenseState
	if v.AccessType != nil {
		s.accessURI = v.AccessType.URI
		s.accessTerm = v.AccessType.Term[e.locale()]
	}
	if v.EmbargoPeriod != nil {
		s.hasEmbargo = true
		s.embargoStart = v.EmbargoPeriod.StartDate
		s.embargoEnd = v.EmbargoPeriod.EndDate
	}
	if v.LicenseType != nil {
		s.licenseURI = v.LicenseType.URI
		s.licTerm = v.LicenseType.Term[e.locale()]
	}
	return s
}

func (e Engine) reconcileLicense(result model.CrossRefResult, out *pure.ResearchOutput, d *Decision) {
	if !result.HasLicense() {
		d.skip(model.SkipNoLicense)
		return
	}
	class, ok := ClassifyLicense(result.LicenseURL)
	if !ok {
		d.skip(model.SkipNonCCLicense)
		return
	}
	d.LicenseClass = class
	if len(out.ElectronicVersions) == 0 {
		d.skip(model.SkipNoElectronicVersion)
		return
	}

	ev := &out.ElectronicVersions[0]
	before := e.stateOf(*ev)

	access := result.Access()
	ev.AccessType = e.setClassification(ev.AccessType, access.URI(), access.Term())

	switch {
	case result.Embargoed():
		// The period is replaced outright; an older start date could fall
		// after the new end.
		ev.EmbargoPeriod = &pure.EmbargoPeriod{EndDate: result.EmbargoEnd.ISO()}
	case e.ClearStaleEmbargo:
		ev.EmbargoPeriod = nil
	}

	ev.LicenseType = e.setClassification(ev.LicenseType, class.URI(), class.Term())

	d.LicenseChanged = e.stateOf(*ev) != before
}

// setClassification points c at uri and sets the term for the engine's
// locale. Terms in other locales are kept.
func (e Engine) setClassification(c *pure.Classification, uri, term string) *pure.Classification {
	if c == nil {
		return pure.NewClassification(uri, e.locale(), term)
	}
	c.URI = uri
	if c.Term == nil {
		c.Term = pure.LocalizedString{}
	}
	c.Term[e.locale()] = term
	return c
}
