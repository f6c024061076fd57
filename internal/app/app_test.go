package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-procure/internal/observability"
	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DEFAULT_CURRENCY", " usd ")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 5, cfg.TxMaxRetries)
	require.Equal(t, "USD", cfg.DefaultCurrency)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("DEFAULT_CURRENCY", "RUPIAH")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("DEFAULT_CURRENCY", "IDR")
	t.Setenv("TX_MAX_RETRIES", "-1")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestActorMiddleware(t *testing.T) {
	var got shared.Actor
	var present bool
	handler := ActorMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, present = shared.ActorFromContext(r.Context())
	}))

	cases := []struct {
		name    string
		id      string
		present bool
	}{
		{name: "valid", id: "42", present: true},
		{name: "missing", id: "", present: false},
		{name: "malformed", id: "abc", present: false},
		{name: "zero", id: "0", present: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, present = shared.Actor{}, false
			req := httptest.NewRequest(http.MethodPost, "/procurement/orders", nil)
			if tc.id != "" {
				req.Header.Set(HeaderActorID, tc.id)
				req.Header.Set(HeaderActorRole, "warehouse")
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)
			require.Equal(t, tc.present, present)
			if tc.present {
				require.Equal(t, shared.Actor{ID: 42, Role: "warehouse"}, got)
			}
		})
	}
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	router := NewRouter(RouterParams{
		Config:  &Config{AppRequestTimeout: 0, RateLimit: 1000},
		Metrics: observability.NewMetrics(),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `odyssey_http_requests_total{code="200",method="GET",route="/healthz"} 1`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/procurement/orders", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn", AppEnv: "staging"}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", slog.Int64("order_id", 9))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "kept", entry["msg"])
	require.Equal(t, "odyssey-procure", entry["service"])
	require.Equal(t, "staging", entry["env"])
	require.Equal(t, float64(9), entry["order_id"])
}

func TestRefreshTestMode(t *testing.T) {
	t.Setenv("ODYSSEY_TEST_MODE", "true")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv("ODYSSEY_TEST_MODE", "nope")
	RefreshTestMode()
	require.False(t, InTestMode())

	t.Setenv("ODYSSEY_TEST_MODE", "1")
	RefreshTestMode()
}
