package request

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/pkg/testutil"
)

func echoRequestID(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(GetRequestID(r.Context())))
}

func TestRequestIDAssigned(t *testing.T) {
	rr := testutil.DoRequest(RequestID(http.HandlerFunc(echoRequestID)),
		testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil))

	id := rr.Header().Get(HeaderRequestID)
	require.NotEmpty(t, id)
	assert.Equal(t, id, rr.Body.String())
}

func TestRequestIDReusesInbound(t *testing.T) {
	req := testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "abc-123")

	rr := testutil.DoRequest(RequestID(http.HandlerFunc(echoRequestID)), req)

	assert.Equal(t, "abc-123", rr.Header().Get(HeaderRequestID))
	assert.Equal(t, "abc-123", rr.Body.String())
}

func TestRequestIDReplacesOversizedInbound(t *testing.T) {
	req := testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", 129))

	rr := testutil.DoRequest(RequestID(http.HandlerFunc(echoRequestID)), req)

	assert.Len(t, rr.Header().Get(HeaderRequestID), 36)
}

func TestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestID(Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})))

	testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodPost, "/v1/registrations", nil))

	assert.Contains(t, buf.String(), `"status":202`)
	assert.Contains(t, buf.String(), `"path":"/v1/registrations"`)
}

func TestRecoveryReturns500(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal_error", testutil.DecodeJSON[testutil.ErrorBody](t, rr).Error)
	assert.Contains(t, buf.String(), "panic recovered")
}
