package pure

import (
	"context"
	"encoding/json"
	"errors"
	"io"
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

const recordID = "5e2a1c4f-0000-4000-8000-000000000001"

func fastClient(srvURL string, opts ...Option) Client {
	base := []Option{
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}),
	}
	return NewClient(srvURL+"/ws/api/research-outputs/", "secret", append(base, opts...)...)
}

func TestGet_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/ws/api/research-outputs/"+recordID, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(recordJSON))
	}))
	defer srv.Close()

	rec, err := fastClient(srv.URL).Get(context.Background(), recordID)
	require.NoError(t, err)
	assert.Equal(t, recordID, rec.UUID)
	assert.Len(t, rec.PublicationStatuses, 2)
}

func TestRecordURL(t *testing.T) {
	t.Parallel()

	c := NewClient("https://pure.example.ac.uk/ws/api/research-outputs/", "k")
	assert.Equal(t, "https://pure.example.ac.uk/ws/api/research-outputs/abc", c.RecordURL("abc"))
	assert.Equal(t, "https://pure.example.ac.uk/ws/api/research-outputs/a%2Fb", c.RecordURL("a/b"))
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"code":404,"description":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).Get(context.Background(), recordID)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, model.FailureNotFound, resilience.Classify(err))
	assert.Equal(t, int32(1), calls.Load(), "404 is not retried")

	f := resilience.Describe(err, srv.URL)
	assert.Equal(t, http.StatusNotFound, f.StatusCode)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(recordJSON))
	}))
	defer srv.Close()

	rec, err := fastClient(srv.URL).Get(context.Background(), recordID)
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_InvalidJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).Get(context.Background(), recordID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrInvalidResponse))
	assert.Equal(t, model.FailureInvalidResponse, resilience.Classify(err))
}

func TestGet_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL, WithRetry(resilience.NoRetry()), WithTimeout(20*time.Millisecond)).
		Get(context.Background(), recordID)
	require.Error(t, err)
	assert.Equal(t, model.FailureTimeout, resilience.Classify(err))
}

func TestUpdate_SendsPayloadOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		bodies <- b
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	payload := UpdatePayload{
		Version: json.RawMessage(`"v7"`),
		PublicationStatuses: []PublicationStatus{
			NewEpubStatus(DefaultLocale, PublicationDate{Year: SetField(2020)}),
		},
	}
	err := fastClient(srv.URL).Update(context.Background(), recordID, payload)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var got map[string]any
	require.NoError(t, json.Unmarshal(<-bodies, &got))
	assert.Equal(t, "v7", got["version"])
	assert.NotContains(t, got, "electronicVersions")
	assert.Len(t, got["publicationStatuses"], 1)
}

func TestUpdate_NoRetryOnFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := fastClient(srv.URL).Update(context.Background(), recordID, UpdatePayload{Version: json.RawMessage(`"v1"`)})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, model.FailureHTTP, resilience.Classify(err))
}

func TestUpdate_Conflict(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "stale version", http.StatusConflict)
	}))
	defer srv.Close()

	err := fastClient(srv.URL).Update(context.Background(), recordID, UpdatePayload{Version: json.RawMessage(`"old"`)})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.Conflict())
	assert.Equal(t, http.MethodPut, apiErr.Method)
	assert.Contains(t, apiErr.Body, "stale version")
}

func TestGet_ConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srvURL := srv.URL
	srv.Close()

	_, err := fastClient(srvURL, WithRetry(resilience.NoRetry())).Get(context.Background(), recordID)
	require.Error(t, err)
	assert.Equal(t, model.FailureConnection, resilience.Classify(err))
}
