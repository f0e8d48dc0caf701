package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
)

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 127.0.0.1 ", "", "::1", "not-an-ip"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not-an-ip")
	require.Len(t, prefixes, 3)
	require.Equal(t, "127.0.0.1/32", prefixes[1].String())
	require.Equal(t, "::1/128", prefixes[2].String())
}

func TestTrustedRealIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{"trusted proxy with X-Real-IP", "10.1.2.3:5000", map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
		{"trusted proxy with X-Forwarded-For", "10.1.2.3:5000", map[string]string{"X-Forwarded-For": "198.51.100.7, 10.1.2.3"}, "198.51.100.7"},
		{"trusted proxy with garbage header", "10.1.2.3:5000", map[string]string{"X-Real-IP": "nope"}, "10.1.2.3:5000"},
		{"untrusted client spoofing", "192.0.2.1:4000", map[string]string{"X-Real-IP": "203.0.113.9"}, "192.0.2.1:4000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := chimw.RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/tables?path=x.csv", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	require.Contains(t, out, `"level":"WARN"`)
	require.Contains(t, out, `"status":404`)
	require.Contains(t, out, `"bytes":7`)
	require.Contains(t, out, `"path":"/api/tables"`)
	require.Contains(t, out, `"request_id":`)
}
