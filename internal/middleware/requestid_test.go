package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	t.Run("generates an ID when none is provided", func(t *testing.T) {
		var captured string
		handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.NotEmpty(t, captured)
		_, err := uuid.Parse(captured)
		assert.NoError(t, err)
		assert.Equal(t, captured, rec.Header().Get(HeaderXRequestID))
	})

	t.Run("keeps a valid inbound ID", func(t *testing.T) {
		var captured string
		handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderXRequestID, "client-id-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "client-id-123", captured)
		assert.Equal(t, "client-id-123", rec.Header().Get(HeaderXRequestID))
	})

	t.Run("replaces an invalid inbound ID", func(t *testing.T) {
		tests := []struct {
			name string
			id   string
		}{
			{"contains spaces", "bad id"},
			{"contains control characters", "bad\nid"},
			{"too long", strings.Repeat("a", 200)},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var captured string
				handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					captured = GetRequestID(r.Context())
				}))

				req := httptest.NewRequest(http.MethodGet, "/", nil)
				req.Header.Set(HeaderXRequestID, tt.id)
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, req)

				assert.NotEqual(t, tt.id, captured)
				_, err := uuid.Parse(captured)
				assert.NoError(t, err)
			})
		}
	})
}
