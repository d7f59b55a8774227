package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/catalogsync/api/internal/platform/config"
	"github.com/catalogsync/api/internal/services"
)

func offlineConfig() config.Config {
	return config.Config{
		Server:    config.ServerConfig{Port: "0"},
		Firestore: config.FirestoreConfig{ProjectID: "test-project", EmulatorHost: "127.0.0.1:1"},
		RequestLog: config.RequestLogConfig{
			Driver: config.RequestLogDriverNone,
		},
		Gateway: config.GatewayConfig{APIKeyHeader: "X-API-Key", PublicInfo: false},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/internal/metrics"},
		Monitor: config.MonitorConfig{SweepEnabled: true, SweepSchedule: "@every 1h", SweepWindowMinutes: 30},
	}
}

func TestNewContainerWiresRouterWithoutDialing(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, offlineConfig(), zaptest.NewLogger(t), services.BuildInfo{Version: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := c.Close(closeCtx); err != nil {
			t.Fatalf("close: %v", err)
		}
	})

	if c.Services.RequestLogger != nil {
		t.Fatalf("request logger must be disabled for driver none")
	}
	if c.sweeper == nil {
		t.Fatalf("expected sweeper to be scheduled")
	}

	cases := []struct {
		path   string
		status int
	}{
		{"/healthz", http.StatusOK},
		{"/internal/metrics", http.StatusOK},
		{"/", http.StatusNotFound},
		{"/products", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		c.Router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rr.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.status, rr.Code)
		}
	}
}

func TestNewContainerRejectsBadSchedule(t *testing.T) {
	cfg := offlineConfig()
	cfg.Monitor.SweepSchedule = "not a schedule"
	if _, err := NewContainer(context.Background(), cfg, nil, services.BuildInfo{}); err == nil {
		t.Fatalf("expected schedule error")
	}
}

func TestCloseNilContainer(t *testing.T) {
	var c *Container
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
