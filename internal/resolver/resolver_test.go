package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crossref-sync/internal/model"
	"github.com/sells-group/crossref-sync/internal/resilience"
	"github.com/sells-group/crossref-sync/pkg/crossref"
)

type mockCrossRef struct {
	mock.Mock
}

func (m *mockCrossRef) Agency(ctx context.Context, doi string) (*crossref.Agency, error) {
	args := m.Called(ctx, doi)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crossref.Agency), args.Error(1)
}

func (m *mockCrossRef) Work(ctx context.Context, doi string) (*crossref.Work, error) {
	args := m.Called(ctx, doi)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crossref.Work), args.Error(1)
}

var fixedNow = time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func parts(p ...int) crossref.DateParts {
	return crossref.DateParts{DateParts: [][]int{p}}
}

func ptr[T any](v T) *T { return &v }

func date(t *testing.T, p ...int) *model.PartialDate {
	t.Helper()
	d, err := model.PartialDateFromParts(p)
	require.NoError(t, err)
	return &d
}

func TestResolve_OpenLicense(t *testing.T) {
	cr := new(mockCrossRef)
	cr.On("Agency", mock.Anything, "10.1000/a").Return(&crossref.Agency{ID: "crossref"}, nil)
	cr.On("Work", mock.Anything, "10.1000/a").Return(&crossref.Work{
		DOI: "10.1000/a",
		License: []crossref.License{
			{URL: "https://www.elsevier.com/tdm/userlicense/1.0/", ContentVersion: "tdm", Start: parts(2019, 1, 1)},
			{URL: "http://creativecommons.org/licenses/by/4.0/", ContentVersion: "vor", Start: parts(2020, 1, 15)},
			{URL: "http://creativecommons.org/licenses/by-nc/4.0/", ContentVersion: "vor", Start: parts(2020, 1, 15)},
		},
		PublishedOnline: ptr(parts(2020, 1)),
	}, nil)

	res := New(cr, WithClock(clock)).Resolve(context.Background(), "10.1000/a")

	assert.Equal(t, model.ResolveOK, res.Status)
	assert.True(t, res.OK())
	assert.Equal(t, "crossref", res.Agency)
	assert.Nil(t, res.Failure)
	assert.Equal(t, "http://creativecommons.org/licenses/by/4.0/", res.Result.LicenseURL)
	assert.Equal(t, date(t, 2020, 1, 15), res.Result.LicenseStart)
	assert.Nil(t, res.Result.EmbargoEnd)
	assert.Equal(t, date(t, 2020, 1), res.Result.EpubDate)
	assert.Equal(t, model.AccessOpen, res.Result.Access())
	cr.AssertExpectations(t)
}

func TestResolve_NotCrossRef(t *testing.T) {
	cr := new(mockCrossRef)
	cr.On("Agency", mock.Anything, "10.5061/dryad.x").Return(&crossref.Agency{ID: "datacite", Label: "DataCite"}, nil)

	res := New(cr).Resolve(context.Background(), "10.5061/dryad.x")

	assert.Equal(t, model.ResolveNotCrossRef, res.Status)
	assert.Equal(t, "datacite", res.Agency)
	assert.True(t, res.Result.IsEmpty())
	assert.Equal(t, []model.SkipReason{model.SkipNotCrossRef}, res.Skips)
	cr.AssertNotCalled(t, "Work", mock.Anything, mock.Anything)
}

func TestResolve_AgencyNotFound(t *testing.T) {
	cr := new(mockCrossRef)
	cr.On("Agency", mock.Anything, "10.1000/missing").
		Return(nil, eris.Wrap(&crossref.APIError{StatusCode: 404, URL: "u"}, "crossref: agency"))

	res := New(cr, WithBaseURL("https://cr.test")).Resolve(context.Background(), "10.1000/missing")

	assert.Equal(t, model.ResolveNotFound, res.Status)
	require.NotNil(t, res.Failure)
	assert.Equal(t, model.FailureNotFound, res.Failure.Kind)
	assert.Equal(t, 404, res.Failure.StatusCode)
	assert.Equal(t, "https://cr.test/works/10.1000%2Fmissing/agency", res.Failure.URL)
	assert.True(t, res.Result.IsEmpty())
	assert.Contains(t, res.Skips, model.SkipCrossRefUnavailable)
}

func TestResolve_WorkFailureYieldsEmptyResult(t *testing.T) {
	cr := new(mockCrossRef)
	cr.On("Agency", mock.Anything, "10.1000/b").Return(&crossref.Agency{ID: "crossref"}, nil)
	cr.On("Work", mock.Anything, "10.1000/b").
		Return(nil, eris.Wrap(&crossref.APIError{StatusCode: 503}, "crossref: work"))

	res := New(cr).Resolve(context.Background(), "10.1000/b")

	assert.Equal(t, model.ResolveFailed, res.Status)
	assert.Equal(t, model.FailureHTTP, res.Failure.Kind)
	assert.True(t, res.Result.IsEmpty())
	assert.Equal(t, crossref.DefaultBaseURL+"/works/10.1000%2Fb", res.Failure.URL)
}

func TestResolve_CircuitOpen(t *testing.T) {
	cr := new(mockCrossRef)
	cr.On("Agency", mock.Anything, "10.1000/c").Return(nil, resilience.ErrCircuitOpen)

	res := New(cr).Resolve(context.Background(), "10.1000/c")

	assert.Equal(t, model.ResolveFailed, res.Status)
	assert.Equal(t, model.FailureCircuitOpen, res.Failure.Kind)
}

func TestExtract_Embargo(t *testing.T) {
	tests := []struct {
		name    string
		start   crossref.DateParts
		embargo *model.PartialDate
	}{
		{"future day", parts(2024, 7, 1), &model.PartialDate{Year: 2024, Month: 7, Day: 1, Precision: model.PrecisionDay}},
		{"tomorrow", parts(2024, 6, 11), &model.PartialDate{Year: 2024, Month: 6, Day: 11, Precision: model.PrecisionDay}},
		{"today", parts(2024, 6, 10), nil},
		{"past", parts(2019, 3, 2), nil},
		{"future month", parts(2025, 2), &model.PartialDate{Year: 2025, Month: 2, Day: 1, Precision: model.PrecisionDay}},
		{"current month", parts(2024, 6), nil},
		{"future year", parts(2026), &model.PartialDate{Year: 2026, Month: 1, Day: 1, Precision: model.PrecisionDay}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			work := &crossref.Work{License: []crossref.License{
				{URL: "http://creativecommons.org/licenses/by/4.0/", ContentVersion: "vor", Start: tt.start},
			}}
			result, skips := Extract(work, fixedNow)

			assert.Empty(t, skips)
			assert.Equal(t, "http://creativecommons.org/licenses/by/4.0/", result.LicenseURL)
			assert.Equal(t, tt.embargo, result.EmbargoEnd)
			if tt.embargo != nil {
				assert.Equal(t, model.AccessEmbargoed, result.Access())
			} else {
				assert.Equal(t, model.AccessOpen, result.Access())
			}
		})
	}
}

func TestExtract_DateFallsBackInPrecision(t *testing.T) {
	// CrossRef occasionally sends null or impossible parts; a null decodes as 0.
	work := &crossref.Work{
		PublishedOnline: ptr(parts(2020, 2, 30)),
		License: []crossref.License{
			{URL: "http://creativecommons.org/licenses/by/4.0/", ContentVersion: "vor", Start: parts(2030, 0)},
		},
	}
	result, skips := Extract(work, fixedNow)

	assert.Empty(t, skips)
	assert.Equal(t, date(t, 2020, 2), result.EpubDate)
	assert.Equal(t, date(t, 2030), result.LicenseStart)
	assert.Equal(t, date(t, 2030, 1, 1), result.EmbargoEnd)
}

func TestExtract_UnparseableStartKeepsLicense(t *testing.T) {
	work := &crossref.Work{License: []crossref.License{
		{URL: "http://creativecommons.org/licenses/by/4.0/", ContentVersion: "vor", Start: parts(0)},
	}}
	result, skips := Extract(work, fixedNow)

	assert.Equal(t, "http://creativecommons.org/licenses/by/4.0/", result.LicenseURL)
	assert.Nil(t, result.LicenseStart)
	assert.Nil(t, result.EmbargoEnd)
	assert.Equal(t, []model.SkipReason{model.SkipUnparseableDate}, skips)
}

func TestExtract_NoVersionOfRecord(t *testing.T) {
	work := &crossref.Work{
		License: []crossref.License{
			{URL: "http://creativecommons.org/licenses/by/4.0/", ContentVersion: "am", Start: parts(2020, 1, 1)},
		},
		PublishedOnline: ptr(parts(2021)),
	}
	result, skips := Extract(work, fixedNow)

	assert.Empty(t, skips)
	assert.False(t, result.HasLicense())
	assert.Equal(t, date(t, 2021), result.EpubDate)
}

func TestExtract_Empty(t *testing.T) {
	result, skips := Extract(&crossref.Work{}, fixedNow)
	assert.True(t, result.IsEmpty())
	assert.Empty(t, skips)

	result, _ = Extract(nil, fixedNow)
	assert.True(t, result.IsEmpty())
}

func TestExtract_UsesUTCDate(t *testing.T) {
	// 23:30 in UTC-5 on June 10 is already June 11 UTC.
	est := time.FixedZone("EST", -5*60*60)
	now := time.Date(2024, 6, 10, 23, 30, 0, 0, est)

	work := &crossref.Work{License: []crossref.License{
		{URL: "http://creativecommons.org/licenses/by/4.0/", ContentVersion: "vor", Start: parts(2024, 6, 11)},
	}}
	result, _ := Extract(work, now)
	assert.Nil(t, result.EmbargoEnd)
}
