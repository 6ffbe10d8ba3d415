package pure

import (
	"encoding/json"
	"maps"
)

// Classification URIs and terms this tool reads or writes.
const (
	StatusPublishedURI = "/dk/atira/pure/researchoutput/status/published"
	StatusEpubURI      = "/dk/atira/pure/researchoutput/status/epub"
	StatusEpubTerm     = "E-pub ahead of print"
	DefaultLocale      = "en_US"
)

// LocalizedString is Pure's localized text, keyed by locale ("en_US").
type LocalizedString map[string]string

// Classification is a reference to a Pure classification scheme value.
type Classification struct {
	URI  string          `json:"uri"`
	Term LocalizedString `json:"term,omitempty"`

	extra members
}

// NewClassification builds a classification with a single-locale term.
func NewClassification(uri, locale, term string) *Classification {
	return &Classification{URI: uri, Term: LocalizedString{locale: term}}
}

func (c *Classification) UnmarshalJSON(data []byte) error {
	type plain Classification
	var p plain
	extra, err := splitMembers(data, &p)
	if err != nil {
		return err
	}
	*c = Classification(p)
	c.extra = extra
	return nil
}

func (c Classification) MarshalJSON() ([]byte, error) {
	type plain Classification
	return joinMembers(plain(c), c.extra)
}

// Clone returns a deep copy. A nil receiver returns nil.
func (c *Classification) Clone() *Classification {
	if c == nil {
		return nil
	}
	out := *c
	out.Term = maps.Clone(c.Term)
	out.extra = c.extra.clone()
	return &out
}

// EmbargoPeriod is the embargo attached to an electronic version. Dates are
// YYYY-MM-DD.
type EmbargoPeriod struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`

	extra members
}

func (e *EmbargoPeriod) UnmarshalJSON(data []byte) error {
	type plain EmbargoPeriod
	var p plain
	extra, err := splitMembers(data, &p)
	if err != nil {
		return err
	}
	*e = EmbargoPeriod(p)
	e.extra = extra
	return nil
}

func (e EmbargoPeriod) MarshalJSON() ([]byte, error) {
	type plain EmbargoPeriod
	return joinMembers(plain(e), e.extra)
}

// ElectronicVersion is one file or link attached to a research output.
type ElectronicVersion struct {
	AccessType    *Classification `json:"accessType,omitempty"`
	LicenseType   *Classification `json:"licenseType,omitempty"`
	EmbargoPeriod *EmbargoPeriod  `json:"embargoPeriod,omitempty"`

	extra members
}

func (v *ElectronicVersion) UnmarshalJSON(data []byte) error {
	type plain ElectronicVersion
	var p plain
	extra, err := splitMembers(data, &p)
	if err != nil {
		return err
	}
	*v = ElectronicVersion(p)
	v.extra = extra
	return nil
}

func (v ElectronicVersion) MarshalJSON() ([]byte, error) {
	type plain ElectronicVersion
	return joinMembers(plain(v), v.extra)
}

// Clone returns a deep copy.
func (v ElectronicVersion) Clone() ElectronicVersion {
	out := v
	out.AccessType = v.AccessType.Clone()
	out.LicenseType = v.LicenseType.Clone()
	if v.EmbargoPeriod != nil {
		ep := *v.EmbargoPeriod
		ep.extra = v.EmbargoPeriod.extra.clone()
		out.EmbargoPeriod = &ep
	}
	out.extra = v.extra.clone()
	return out
}

// PublicationDate is a status date with optional month and day.
type PublicationDate struct {
	Year  Field `json:"year,omitzero"`
	Month Field `json:"month,omitzero"`
	Day   Field `json:"day,omitzero"`

	extra members
}

func (d *PublicationDate) UnmarshalJSON(data []byte) error {
	type plain PublicationDate
	var p plain
	extra, err := splitMembers(data, &p)
	if err != nil {
		return err
	}
	*d = PublicationDate(p)
	d.extra = extra
	return nil
}

func (d PublicationDate) MarshalJSON() ([]byte, error) {
	type plain PublicationDate
	return joinMembers(plain(d), d.extra)
}

// Equal compares the three components, including their unset or cleared state.
func (d PublicationDate) Equal(o PublicationDate) bool {
	return d.Year == o.Year && d.Month == o.Month && d.Day == o.Day
}

// PublicationStatus is one entry of a research output's status history.
// Members such as "current" pass through untouched.
type PublicationStatus struct {
	PublicationStatus Classification  `json:"publicationStatus"`
	PublicationDate   PublicationDate `json:"publicationDate"`

	extra members
}

// NewEpubStatus builds an e-pub ahead of print entry that is not the
// record's current status.
func NewEpubStatus(locale string, date PublicationDate) PublicationStatus {
	return PublicationStatus{
		PublicationStatus: *NewClassification(StatusEpubURI, locale, StatusEpubTerm),
		PublicationDate:   date,
		extra:             members{"current": json.RawMessage("false")},
	}
}

func (s *PublicationStatus) UnmarshalJSON(data []byte) error {
	type plain PublicationStatus
	var p plain
	extra, err := splitMembers(data, &p)
	if err != nil {
		return err
	}
	*s = PublicationStatus(p)
	s.extra = extra
	return nil
}

func (s PublicationStatus) MarshalJSON() ([]byte, error) {
	type plain PublicationStatus
	return joinMembers(plain(s), s.extra)
}

// Is reports whether the entry has the given status URI.
func (s PublicationStatus) Is(uri string) bool {
	return s.PublicationStatus.URI == uri
}

// Clone returns a deep copy.
func (s PublicationStatus) Clone() PublicationStatus {
	out := s
	out.PublicationStatus = *s.PublicationStatus.Clone()
	out.PublicationDate.extra = s.PublicationDate.extra.clone()
	out.extra = s.extra.clone()
	return out
}

// ResearchOutput is a Pure research output as returned by GET. Only the
// members reconciliation touches are modeled; the rest are kept verbatim.
type ResearchOutput struct {
	UUID                string              `json:"uuid,omitempty"`
	Version             json.RawMessage     `json:"version,omitempty"`
	ElectronicVersions  []ElectronicVersion `json:"electronicVersions,omitzero"`
	PublicationStatuses []PublicationStatus `json:"publicationStatuses,omitzero"`

	extra members
}

func (r *ResearchOutput) UnmarshalJSON(data []byte) error {
	type plain ResearchOutput
	var p plain
	extra, err := splitMembers(data, &p)
	if err != nil {
		return err
	}
	*r = ResearchOutput(p)
	r.extra = extra
	return nil
}

func (r ResearchOutput) MarshalJSON() ([]byte, error) {
	type plain ResearchOutput
	return joinMembers(plain(r), r.extra)
}

// Clone returns a deep copy.
func (r *ResearchOutput) Clone() *ResearchOutput {
	out := *r
	out.Version = append(json.RawMessage(nil), r.Version...)
	if r.ElectronicVersions != nil {
		out.ElectronicVersions = make([]ElectronicVersion, len(r.ElectronicVersions))
		for i, v := range r.ElectronicVersions {
			out.ElectronicVersions[i] = v.Clone()
		}
	}
	if r.PublicationStatuses != nil {
		out.PublicationStatuses = make([]PublicationStatus, len(r.PublicationStatuses))
		for i, s := range r.PublicationStatuses {
			out.PublicationStatuses[i] = s.Clone()
		}
	}
	out.extra = r.extra.clone()
	return &out
}

// PrintStatus returns the last Published entry, or nil.
func (r *ResearchOutput) PrintStatus() *PublicationStatus {
	var found *PublicationStatus
	for i := range r.PublicationStatuses {
		if r.PublicationStatuses[i].Is(StatusPublishedURI) {
			found = &r.PublicationStatuses[i]
		}
	}
	return found
}

// EpubStatusIndex returns the index of the first e-pub entry, or -1.
func (r *ResearchOutput) EpubStatusIndex() int {
	for i := range r.PublicationStatuses {
		if r.PublicationStatuses[i].Is(StatusEpubURI) {
			return i
		}
	}
	return -1
}

// Apply returns a copy of r with the payload's members merged in, as the
// repository would store it after a successful update.
func (r *ResearchOutput) Apply(p UpdatePayload) *ResearchOutput {
	out := r.Clone()
	if p.Version != nil {
		out.Version = append(json.RawMessage(nil), p.Version...)
	}
	if p.ElectronicVersions != nil {
		out.ElectronicVersions = make([]ElectronicVersion, len(p.ElectronicVersions))
		for i, v := range p.ElectronicVersions {
			out.ElectronicVersions[i] = v.Clone()
		}
	}
	if p.PublicationStatuses != nil {
		out.PublicationStatuses = make([]PublicationStatus, len(p.PublicationStatuses))
		for i, s := range p.PublicationStatuses {
			out.PublicationStatuses[i] = s.Clone()
		}
	}
	return out
}

// UpdatePayload is the body of a PUT: the concurrency token plus only the
// collections that changed.
type UpdatePayload struct {
	Version             json.RawMessage     `json:"version"`
	ElectronicVersions  []ElectronicVersion `json:"electronicVersions,omitempty"`
	PublicationStatuses []PublicationStatus `json:"publicationStatuses,omitempty"`
}
