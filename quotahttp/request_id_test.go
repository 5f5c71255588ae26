/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package quotahttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-quota/log/logtest"
)

func TestRequestID(t *testing.T) {
	t.Run("generated", func(t *testing.T) {
		var gotID string
		var gotLoggerSet bool
		handler := RequestID(nil)(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			gotID = GetRequestIDFromContext(r.Context())
			gotLoggerSet = GetLoggerFromContext(r.Context()) != nil
		}))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

		_, err := xid.FromString(gotID)
		require.NoError(t, err)
		require.Equal(t, gotID, resp.Header().Get(HeaderRequestID))
		require.False(t, gotLoggerSet)
	})

	t.Run("taken from header", func(t *testing.T) {
		logger := logtest.NewRecorder()
		handler := RequestIDWithOpts(RequestIDOpts{
			GenerateID: func() string { return "generated" },
			Logger:     logger,
		})(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			GetLoggerFromContext(r.Context()).Info("served")
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "external-id")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		require.Equal(t, "external-id", resp.Header().Get(HeaderRequestID))
		entry, found := logger.FindEntry("served")
		require.True(t, found)
		field, found := entry.FindField(RequestIDLogFieldKey)
		require.True(t, found)
		require.Equal(t, "external-id", string(field.Bytes))
	})
}
