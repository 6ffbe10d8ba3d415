package model

// CrossRefResult is the license and date metadata extracted for one DOI.
// Any field may be absent; an all-absent result means nothing is known.
type CrossRefResult struct {
	LicenseURL   string       `json:"license_url,omitempty"`
	LicenseStart *PartialDate `json:"license_start,omitempty"`
	EmbargoEnd   *PartialDate `json:"embargo_end,omitempty"`
	EpubDate     *PartialDate `json:"epub_date,omitempty"`
}

// HasLicense reports whether a version-of-record license URL was found.
func (r CrossRefResult) HasLicense() bool {
	return r.LicenseURL != ""
}

// Embargoed reports whether the license starts after the resolution date.
func (r CrossRefResult) Embargoed() bool {
	return r.EmbargoEnd != nil
}

// Access is the access state the license implies.
func (r CrossRefResult) Access() AccessState {
	if r.Embargoed() {
		return AccessEmbargoed
	}
	return AccessOpen
}

// IsEmpty reports whether no field is present.
func (r CrossRefResult) IsEmpty() bool {
	return r.LicenseURL == "" && r.LicenseStart == nil && r.EmbargoEnd == nil && r.EpubDate == nil
}
