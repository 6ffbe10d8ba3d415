package crossref

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crossref-sync/internal/model"
	"github.com/sells-group/crossref-sync/internal/resilience"
)

const workJSON = `{
  "status": "ok",
  "message-type": "work",
  "message": {
    "DOI": "10.1000/xyz123",
    "type": "journal-article",
    "publisher": "Example Press",
    "license": [
      {"URL": "http://www.elsevier.com/tdm/userlicense/1.0/", "content-version": "tdm", "delay-in-days": 0, "start": {"date-parts": [[2019, 12, 1]]}},
      {"URL": "http://creativecommons.org/licenses/by/4.0/", "content-version": "vor", "delay-in-days": 31, "start": {"date-parts": [[2020, 1, 15]]}}
    ],
    "published-online": {"date-parts": [[2020, 1]]},
    "published-print": {"date-parts": [[2020, 3, 15]]}
  }
}`

func fastClient(srvURL string, opts ...Option) Client {
	base := []Option{
		WithBaseURL(srvURL),
		WithRateLimit(0, 0),
		WithRetry(resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}),
	}
	return NewClient(append(base, opts...)...)
}

func TestAgency_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/works/10.1000%2Fxyz123/agency", r.URL.EscapedPath())
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "crossref-sync/1.0 (mailto:oa@example.ac.uk)", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","message":{"DOI":"10.1000/xyz123","agency":{"id":"crossref","label":"Crossref"}}}`))
	}))
	defer srv.Close()

	agency, err := fastClient(srv.URL, WithMailto("oa@example.ac.uk")).Agency(context.Background(), "10.1000/xyz123")
	require.NoError(t, err)
	assert.Equal(t, "crossref", agency.ID)
	assert.True(t, agency.IsCrossRef())
}

func TestAgency_OtherAgency(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","message":{"DOI":"10.5281/zenodo.1","agency":{"id":"datacite","label":"DataCite"}}}`))
	}))
	defer srv.Close()

	agency, err := fastClient(srv.URL).Agency(context.Background(), "10.5281/zenodo.1")
	require.NoError(t, err)
	assert.False(t, agency.IsCrossRef())
	assert.Equal(t, "DataCite", agency.Label)
}

func TestWork_Decode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/works/10.1000%2Fxyz123", r.URL.EscapedPath())
		_, _ = w.Write([]byte(workJSON))
	}))
	defer srv.Close()

	work, err := fastClient(srv.URL).Work(context.Background(), "10.1000/xyz123")
	require.NoError(t, err)

	assert.Equal(t, "10.1000/xyz123", work.DOI)
	assert.Equal(t, []int{2020, 1}, work.PublishedOnline.First())
	require.Len(t, work.License, 2)

	vor := work.VersionOfRecordLicense()
	require.NotNil(t, vor)
	assert.Equal(t, "http://creativecommons.org/licenses/by/4.0/", vor.URL)
	assert.Equal(t, []int{2020, 1, 15}, vor.Start.First())
}

func TestWork_NullDatePart(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","message":{"DOI":"10.1/x","published-online":{"date-parts":[[null]]}}}`))
	}))
	defer srv.Close()

	work, err := fastClient(srv.URL).Work(context.Background(), "10.1/x")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, work.PublishedOnline.First())
	assert.Nil(t, work.VersionOfRecordLicense())
}

func TestWork_NotFound(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Resource not found."))
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).Work(context.Background(), "10.1000/missing")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, model.FailureNotFound, resilience.Classify(err))
	assert.Equal(t, int32(1), calls.Load(), "404 must not be retried")
}

func TestWork_RetriesServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(workJSON))
	}))
	defer srv.Close()

	work, err := fastClient(srv.URL).Work(context.Background(), "10.1000/xyz123")
	require.NoError(t, err)
	assert.Equal(t, "Example Press", work.Publisher)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWork_InvalidJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).Work(context.Background(), "10.1000/xyz123")
	require.Error(t, err)
	assert.Equal(t, model.FailureInvalidResponse, resilience.Classify(err))
}

func TestWork_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(workJSON))
	}))
	defer srv.Close()

	client := fastClient(srv.URL, WithTimeout(20*time.Millisecond), WithRetry(resilience.NoRetry()))
	_, err := client.Work(context.Background(), "10.1000/xyz123")
	require.Error(t, err)
	assert.Equal(t, model.FailureTimeout, resilience.Classify(err))
}

func TestWork_ConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := fastClient(addr, WithRetry(resilience.NoRetry())).Work(context.Background(), "10.1000/xyz123")
	require.Error(t, err)
	assert.Equal(t, model.FailureConnection, resilience.Classify(err))
}

func TestWork_CircuitOpen(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "crossref", FailureThreshold: 1, ResetTimeout: time.Hour})
	client := fastClient(srv.URL, WithRetry(resilience.NoRetry()), WithCircuitBreaker(cb))

	_, err := client.Work(context.Background(), "10.1000/a")
	require.Error(t, err)
	_, err = client.Work(context.Background(), "10.1000/b")
	require.Error(t, err)

	assert.Equal(t, model.FailureCircuitOpen, resilience.Classify(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestWorkURL_EscapesDOI(t *testing.T) {
	assert.Equal(t, "https://api.crossref.org/works/10.1002%2F%28SICI%291097-4636", WorkURL(DefaultBaseURL+"/", "10.1002/(SICI)1097-4636"))
}
