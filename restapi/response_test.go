/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package restapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-quota/log"
	"github.com/acronis/go-quota/log/logtest"
)

const testDomain = "TestDomain"

type responseRecorderReturnedErrorOnWrite struct {
	*httptest.ResponseRecorder
}

func (rw *responseRecorderReturnedErrorOnWrite) Write(_ []byte) (int, error) {
	return 0, fmt.Errorf("error on write")
}

func TestRespondJSON(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		type quotaStatus struct {
			Caller string `json:"caller"`
			Tokens int    `json:"tokens"`
		}
		resp := httptest.NewRecorder()
		logger := logtest.NewRecorder()
		RespondJSON(resp, &quotaStatus{"client-1", 3}, logger)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, ContentTypeAppJSON, resp.Header().Get("Content-Type"))
		require.JSONEq(t, `{"caller":"client-1","tokens":3}`, resp.Body.String())
		require.Empty(t, logger.Entries())
	})

	t.Run("marshaling error", func(t *testing.T) {
		resp := httptest.NewRecorder()
		logger := logtest.NewRecorder()
		RespondJSON(resp, make(chan bool), logger)
		require.Equal(t, http.StatusInternalServerError, resp.Code)
		require.Empty(t, resp.Body.String())
		require.Len(t, logger.Entries(), 1)
		require.Equal(t, log.LevelError, logger.Entries()[0].Level)
	})

	t.Run("writing error", func(t *testing.T) {
		resp := &responseRecorderReturnedErrorOnWrite{httptest.NewRecorder()}
		logger := logtest.NewRecorder()
		RespondJSON(resp, "foo", logger)
		require.Len(t, logger.Entries(), 1)
		require.Equal(t, log.LevelError, logger.Entries()[0].Level)
	})

	t.Run("keep Content-Type", func(t *testing.T) {
		resp := httptest.NewRecorder()
		resp.Header().Set("Content-Type", "application/problem+json")
		RespondCodeAndJSON(resp, http.StatusAccepted, map[string]string{"a": "<b>"}, nil)
		require.Equal(t, http.StatusAccepted, resp.Code)
		require.Equal(t, "application/problem+json", resp.Header().Get("Content-Type"))
		require.Equal(t, `{"a":"<b>"}`, resp.Body.String())
	})
}

func TestRespondError(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustInitAndRegisterMetrics("test", reg)
	defer UnregisterMetrics(reg)

	resp := httptest.NewRecorder()
	logger := logtest.NewRecorder()
	RespondError(resp, http.StatusTooManyRequests, NewTooManyRequestsError(testDomain), logger)
	RespondInternalError(httptest.NewRecorder(), testDomain, nil)

	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	var respData ErrorResponseData
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &respData))
	require.Equal(t, &Error{Domain: testDomain, Code: "tooManyRequests", Message: "Too many requests."}, respData.Err)

	entry, found := logger.FindEntry("error in response")
	require.True(t, found)
	code, found := entry.FieldString("error_code")
	require.True(t, found)
	require.Equal(t, "tooManyRequests", code)

	require.Equal(t, 1, int(testutil.ToFloat64(metricsResponseErrors.WithLabelValues(testDomain, ErrCodeTooManyRequests))))
	require.Equal(t, 1, int(testutil.ToFloat64(metricsResponseErrors.WithLabelValues(testDomain, ErrCodeInternal))))
}

func TestNewErrorForStatus(t *testing.T) {
	tests := []struct {
		httpCode    int
		wantErrCode string
	}{
		{http.StatusInternalServerError, "internalError"},
		{http.StatusNotFound, "notFound"},
		{http.StatusBadRequest, "badRequest"},
		{http.StatusTooManyRequests, "tooManyRequests"},
		{http.StatusMethodNotAllowed, "methodNotAllowed"},
	}
	for _, tt := range tests {
		t.Run(tt.wantErrCode, func(t *testing.T) {
			err := NewErrorForStatus(testDomain, tt.httpCode, "msg").AddContext("caller", "client-1")
			require.Equal(t, tt.wantErrCode, err.Code)
			require.Equal(t, "client-1", err.Context["caller"])
		})
	}
}
