package crossref

// ContentVersionVOR tags the publisher's version of record.
const ContentVersionVOR = "vor"

// AgencyCrossRef is the registration agency id CrossRef reports for its own DOIs.
const AgencyCrossRef = "crossref"

// DateParts is CrossRef's partial date: [[year, month, day]] with month and
// day optional. A null part decodes as 0.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
	DateTime  string  `json:"date-time,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// First returns the first date in the list, or nil.
func (d *DateParts) First() []int {
	if d == nil || len(d.DateParts) == 0 {
		return nil
	}
	return d.DateParts[0]
}

// License is one entry of a work's license list.
type License struct {
	URL            string    `json:"URL"`
	ContentVersion string    `json:"content-version"`
	DelayInDays    int       `json:"delay-in-days"`
	Start          DateParts `json:"start"`
}

// Work is the subset of a CrossRef work record this tool reads.
type Work struct {
	DOI             string     `json:"DOI"`
	Type            string     `json:"type,omitempty"`
	Title           []string   `json:"title,omitempty"`
	Publisher       string     `json:"publisher,omitempty"`
	License         []License  `json:"license,omitempty"`
	PublishedOnline *DateParts `json:"published-online,omitempty"`
	PublishedPrint  *DateParts `json:"published-print,omitempty"`
	Issued          *DateParts `json:"issued,omitempty"`
}

// VersionOfRecordLicense returns the first license tagged "vor", or nil.
func (w *Work) VersionOfRecordLicense() *License {
	for i := range w.License {
		if w.License[i].ContentVersion == ContentVersionVOR {
			return &w.License[i]
		}
	}
	return nil
}

// Agency identifies the registration agency of a DOI.
type Agency struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// IsCrossRef reports whether CrossRef registered the DOI.
func (a *Agency) IsCrossRef() bool {
	return a != nil && a.ID == AgencyCrossRef
}

type workResponse struct {
	Status      string `json:"status"`
	MessageType string `json:"message-type"`
	Message     Work   `json:"message"`
}

type agencyResponse struct {
	Status  string `json:"status"`
	Message struct {
		DOI    string `json:"DOI"`
		Agency Agency `json:"agency"`
	} `json:"message"`
}
