package model

// FailureKind classifies why an outbound call did not produce data.
type FailureKind string

const (
	FailureHTTP            FailureKind = "http"
	FailureConnection      FailureKind = "connection"
	FailureTimeout         FailureKind = "timeout"
	FailureCircuitOpen     FailureKind = "circuit_open"
	FailureInvalidResponse FailureKind = "invalid_response"
	FailureNotFound        FailureKind = "not_found"
)

// Failure describes one failed outbound call.
type Failure struct {
	Kind       FailureKind `json:"kind"`
	StatusCode int         `json:"status_code,omitempty"`
	URL        string      `json:"url,omitempty"`
	Message    string      `json:"message"`
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// SkipReason records why a step was not applied to a record.
type SkipReason string

const (
	SkipNotCrossRef         SkipReason = "not_crossref"
	SkipNoLicense           SkipReason = "no_license"
	SkipNonCCLicense        SkipReason = "non_cc_license"
	SkipNoElectronicVersion SkipReason = "no_electronic_version"
	SkipNoEpubDate          SkipReason = "no_epub_date"
	SkipEpubAfterPrint      SkipReason = "epub_after_print"
	SkipUnparseableDate     SkipReason = "unparseable_date"
	SkipMissingDOI          SkipReason = "missing_doi"
	SkipMissingRecordID     SkipReason = "missing_record_id"
	SkipCrossRefUnavailable SkipReason = "crossref_unavailable"
)

// OutcomeStatus is the terminal state of one input row.
type OutcomeStatus string

const (
	OutcomeUpdated      OutcomeStatus = "updated"
	OutcomeUnchanged    OutcomeStatus = "unchanged"
	OutcomeWouldUpdate  OutcomeStatus = "would_update"
	OutcomeFetchFailed  OutcomeStatus = "fetch_failed"
	OutcomeUpdateFailed OutcomeStatus = "update_failed"
	OutcomeSkipped      OutcomeStatus = "skipped"
)

// Failed reports whether the row ended on a repository failure.
func (s OutcomeStatus) Failed() bool {
	return s == OutcomeFetchFailed || s == OutcomeUpdateFailed
}

// ResolveStatus is how a CrossRef lookup ended.
type ResolveStatus string

const (
	ResolveOK          ResolveStatus = "ok"
	ResolveNotCrossRef ResolveStatus = "not_crossref"
	ResolveNotFound    ResolveStatus = "not_found"
	ResolveFailed      ResolveStatus = "failed"
	ResolveSkipped     ResolveStatus = ""
)

// RecordOutcome is everything a caller needs to tally and log one row.
type RecordOutcome struct {
	Line           int            `json:"line"`
	DOI            string         `json:"doi"`
	RecordID       string         `json:"record_id"`
	Status         OutcomeStatus  `json:"status"`
	Resolve        ResolveStatus  `json:"resolve,omitempty"`
	Agency         string         `json:"agency,omitempty"`
	CrossRef       CrossRefResult `json:"crossref"`
	LicenseClass   LicenseClass   `json:"license_class,omitempty"`
	LicenseChanged bool           `json:"license_changed"`
	EpubChanged    bool           `json:"epub_changed"`
	EpubDiscarded  bool           `json:"epub_discarded,omitempty"`
	Skips          []SkipReason   `json:"skips,omitempty"`
	Failure        *Failure       `json:"failure,omitempty"`
	CrossRefError  *Failure       `json:"crossref_error,omitempty"`
}

// Changed reports whether reconciliation wanted to write anything.
func (o RecordOutcome) Changed() bool {
	return o.LicenseChanged || o.EpubChanged
}

// Summary holds per-run counters.
type Summary struct {
	Total           int `json:"total"`
	Updated         int `json:"updated"`
	WouldUpdate     int `json:"would_update"`
	Unchanged       int `json:"unchanged"`
	Skipped         int `json:"skipped"`
	LicensesUpdated int `json:"licenses_updated"`
	EpubsWritten    int `json:"epubs_written"`
	FetchErrors     int `json:"fetch_errors"`
	UpdateErrors    int `json:"update_errors"`
	NotCrossRef     int `json:"not_crossref"`
	CrossRefErrors  int `json:"crossref_errors"`
}

// Add tallies one outcome. License and e-pub counters move whenever
// reconciliation produced the change, whether or not the update was sent
// or accepted.
func (s *Summary) Add(o RecordOutcome) {
	s.Total++
	if o.LicenseChanged {
		s.LicensesUpdated++
	}
	if o.EpubChanged {
		s.EpubsWritten++
	}

	switch o.Status {
	case OutcomeUpdated:
		s.Updated++
	case OutcomeWouldUpdate:
		s.WouldUpdate++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFetchFailed:
		s.FetchErrors++
	case OutcomeUpdateFailed:
		s.UpdateErrors++
	}

	switch o.Resolve {
	case ResolveNotCrossRef:
		s.NotCrossRef++
	case ResolveFailed, ResolveNotFound:
		s.CrossRefErrors++
	}
}
