package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, s string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return &buf
}

func gunzip(t *testing.T, r io.Reader) string {
	t.Helper()
	gr, err := gzip.NewReader(r)
	require.NoError(t, err)
	defer gr.Close()
	b, err := io.ReadAll(gr)
	require.NoError(t, err)
	return string(b)
}

func TestGzipMiddleware_Responses(t *testing.T) {
	const orderJSON = `{"orderId":"7f1c2a9e","orderNumber":"NK-1700000000-ABC123","total":9300}`

	tests := []struct {
		name           string
		acceptEncoding string
		contentType    string
		status         int
		body           string
		wantEncoding   string
	}{
		{
			name:           "order json compressed",
			acceptEncoding: "gzip, deflate",
			contentType:    "application/json",
			status:         http.StatusOK,
			body:           orderJSON,
			wantEncoding:   "gzip",
		},
		{
			name:           "error json compressed",
			acceptEncoding: "gzip",
			contentType:    "application/json",
			status:         http.StatusConflict,
			body:           `{"error":"insufficient stock"}`,
			wantEncoding:   "gzip",
		},
		{
			name:           "client without gzip gets plain json",
			acceptEncoding: "",
			contentType:    "application/json",
			status:         http.StatusOK,
			body:           orderJSON,
			wantEncoding:   "",
		},
		{
			name:           "product image passes through",
			acceptEncoding: "gzip",
			contentType:    "image/png",
			status:         http.StatusOK,
			body:           "\x89PNG",
			wantEncoding:   "",
		},
		{
			name:           "empty order list not compressed",
			acceptEncoding: "gzip",
			status:         http.StatusNoContent,
			wantEncoding:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.status)
				if tt.body != "" {
					_, _ = w.Write([]byte(tt.body))
				}
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.wantEncoding, rec.Header().Get("Content-Encoding"))

			if tt.wantEncoding == "gzip" {
				assert.Contains(t, rec.Header().Values("Vary"), "Accept-Encoding")
				assert.Equal(t, tt.body, gunzip(t, rec.Body))
				return
			}
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestGzipMiddleware_DecodesRequestBody(t *testing.T) {
	const body = `{"code":"SUMMER20","orderTotal":10000}`

	var got string
	h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got = string(b)
		assert.Empty(t, r.Header.Get("Content-Encoding"))
		assert.EqualValues(t, -1, r.ContentLength)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/promotions/validate", gzipBytes(t, body))
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, got)
}

func TestGzipMiddleware_RejectsCorruptBody(t *testing.T) {
	called := false
	h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/orders/create", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}
