package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crossref-sync/internal/model"
)

// StatusCoder is implemented by API errors that carry the HTTP status of a
// response that was received but not accepted.
type StatusCoder interface {
	HTTPStatus() int
}

// ErrInvalidResponse marks a response body that could not be decoded.
var ErrInvalidResponse = eris.New("invalid response body")

// IsTransient reports whether retrying err may succeed: timeouts, dropped
// connections and 408/429/5xx statuses.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return IsTransientHTTPStatus(sc.HTTPStatus())
	}

	switch Classify(err) {
	case model.FailureTimeout, model.FailureConnection:
		return true
	default:
		return false
	}
}

// IsTransientHTTPStatus reports whether a status is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Classify maps an outbound call error to a FailureKind. Errors that carry
// an HTTP status are http (not_found for 404); everything that failed
// before a response arrived is timeout or connection.
func Classify(err error) model.FailureKind {
	if errors.Is(err, ErrCircuitOpen) {
		return model.FailureCircuitOpen
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		if sc.HTTPStatus() == http.StatusNotFound {
			return model.FailureNotFound
		}
		return model.FailureHTTP
	}

	if errors.Is(err, ErrInvalidResponse) {
		return model.FailureInvalidResponse
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return model.FailureInvalidResponse
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.FailureTimeout
	}
	if msg := strings.ToLower(err.Error()); strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "client.timeout exceeded") {
		return model.FailureTimeout
	}

	return model.FailureConnection
}

// Describe builds the Failure recorded for a failed call to url.
func Describe(err error, url string) *model.Failure {
	if err == nil {
		return nil
	}
	f := &model.Failure{
		Kind:    Classify(err),
		URL:     url,
		Message: rootMessage(err),
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		f.StatusCode = sc.HTTPStatus()
	}
	return f
}

// rootMessage flattens err for single-line logs.
func rootMessage(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", " ")
}
