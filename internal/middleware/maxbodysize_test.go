package middleware_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/triplog/internal/middleware"
)

// drain reads the whole body and reports 413 when the read trips the limit.
// reached records whether the request got past the middleware.
func drain(reached *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		var mbe *http.MaxBytesError
		if _, err := io.ReadAll(r.Body); errors.As(err, &mbe) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func postBody(n int, contentLength int64) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/trips", strings.NewReader(strings.Repeat("x", n)))
	req.ContentLength = contentLength
	return req
}

func TestMaxBodySizeHandler_WithinLimit(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"below", 50},
		{"exactly at limit", 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var reached bool
			rec := httptest.NewRecorder()

			middleware.NewMaxBodySizeHandler(100)(drain(&reached)).ServeHTTP(rec, postBody(tc.size, int64(tc.size)))

			assert.True(t, reached)
			assert.Equal(t, http.StatusNoContent, rec.Code)
		})
	}
}

// An oversized Content-Length is refused with the JSON error envelope and
// the next handler never runs.
func TestMaxBodySizeHandler_DeclaredTooLarge(t *testing.T) {
	var reached bool
	rec := httptest.NewRecorder()

	middleware.NewMaxBodySizeHandler(100)(drain(&reached)).ServeHTTP(rec, postBody(200, 200))

	assert.False(t, reached)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "request_too_large", body.Error.Code)
	assert.Equal(t, "request body is too large", body.Error.Message)
}

// Without a Content-Length the body is let through and the read fails once
// it crosses the limit.
func TestMaxBodySizeHandler_StreamedTooLarge(t *testing.T) {
	var reached bool
	rec := httptest.NewRecorder()

	middleware.NewMaxBodySizeHandler(100)(drain(&reached)).ServeHTTP(rec, postBody(200, -1))

	assert.True(t, reached)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
