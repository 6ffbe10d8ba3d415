package model

// LicenseClass is the repository's classification of a Creative Commons license.
type LicenseClass string

const (
	LicenseCCBY     LicenseClass = "CC-BY"
	LicenseCCBYSA   LicenseClass = "CC-BY-SA"
	LicenseCCBYNC   LicenseClass = "CC-BY-NC"
	LicenseCCBYNCSA LicenseClass = "CC-BY-NC-SA"
	LicenseCCBYND   LicenseClass = "CC-BY-ND"
	LicenseCCBYNCND LicenseClass = "CC-BY-NC-ND"
	LicenseCC0      LicenseClass = "CC0"
	LicensePDM      LicenseClass = "PDM"
	LicenseOther    LicenseClass = "Other"
)

const licenseURIPrefix = "/dk/atira/pure/core/document/licenses/"

type licenseInfo struct {
	uri  string
	term string
}

var licenses = map[LicenseClass]licenseInfo{
	LicenseCCBY:     {licenseURIPrefix + "cc_by", "CC BY"},
	LicenseCCBYSA:   {licenseURIPrefix + "cc_by_sa", "CC BY-SA"},
	LicenseCCBYNC:   {licenseURIPrefix + "cc_by_nc", "CC BY-NC"},
	LicenseCCBYNCSA: {licenseURIPrefix + "cc_by_nc_sa", "CC BY-NC-SA"},
	LicenseCCBYND:   {licenseURIPrefix + "cc_by_nd", "CC BY-ND"},
	LicenseCCBYNCND: {licenseURIPrefix + "cc_by_nc_nd", "CC BY-NC-ND"},
	LicenseCC0:      {licenseURIPrefix + "cc0", "CC0"},
	LicensePDM:      {licenseURIPrefix + "cc_pdm", "CC PDM"},
	LicenseOther:    {licenseURIPrefix + "other", "Other"},
}

// licenseCodes maps the license segment of a creativecommons.org URL.
var licenseCodes = map[string]LicenseClass{
	"by":       LicenseCCBY,
	"by-sa":    LicenseCCBYSA,
	"by-nc":    LicenseCCBYNC,
	"by-nc-sa": LicenseCCBYNCSA,
	"by-nd":    LicenseCCBYND,
	"by-nc-nd": LicenseCCBYNCND,
	"zero":     LicenseCC0,
	"cc0":      LicenseCC0,
	"mark":     LicensePDM,
}

// LicenseClassForCode maps a lower-cased CC URL code. Unknown codes are Other.
func LicenseClassForCode(code string) LicenseClass {
	if c, ok := licenseCodes[code]; ok {
		return c
	}
	return LicenseOther
}

// URI is the repository classification URI.
func (c LicenseClass) URI() string {
	return lookupLicense(c).uri
}

// Term is the English display term.
func (c LicenseClass) Term() string {
	return lookupLicense(c).term
}

func lookupLicense(c LicenseClass) licenseInfo {
	if info, ok := licenses[c]; ok {
		return info
	}
	return licenses[LicenseOther]
}

// AccessState is the open-access permission of an electronic version.
type AccessState string

const (
	AccessOpen      AccessState = "Open"
	AccessEmbargoed AccessState = "Embargoed"
)

// URI is the repository classification URI.
func (a AccessState) URI() string {
	if a == AccessEmbargoed {
		return "/dk/atira/pure/core/openaccesspermission/embargoed"
	}
	return "/dk/atira/pure/core/openaccesspermission/open"
}

// Term is the English display term.
func (a AccessState) Term() string {
	return string(a)
}
