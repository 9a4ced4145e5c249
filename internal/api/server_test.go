package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/quantforge/riskengine/internal/api"
	"github.com/quantforge/riskengine/internal/monitor"
	"github.com/quantforge/riskengine/internal/stress"
	"github.com/quantforge/riskengine/pkg/types"
)

func newTestServer(t *testing.T) (*api.Server, *monitor.Session) {
	t.Helper()
	session := monitor.NewSession(zap.NewNop(),
		types.DefaultKillSwitchConfig(),
		types.DefaultAnomalyConfig(),
		types.DefaultAutoStopConfig(),
		nil,
	)
	server := api.NewServer(zap.NewNop(), types.DefaultServerConfig(), session, prometheus.NewRegistry())
	return server, session
}

func get(t *testing.T, server *api.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	rec := get(t, server, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", body["status"])
	}
}

func TestHaltEndpoint(t *testing.T) {
	server, session := newTestServer(t)

	rec := get(t, server, "/api/v1/halt")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var state types.HaltState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if state.Halted() {
		t.Error("Fresh session should not be halted")
	}

	// Trip the kill switch, then reset over the API.
	session.EvaluateTick(nil, -0.99)
	rec = get(t, server, "/api/v1/halt")
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if !state.Halted() {
		t.Fatal("Expected halted state")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/halt/reset", nil)
	resetRec := httptest.NewRecorder()
	server.Router().ServeHTTP(resetRec, req)
	if resetRec.Code != http.StatusOK {
		t.Fatalf("Reset: expected 200, got %d", resetRec.Code)
	}
	if session.HaltState().Halted() {
		t.Error("Session should be normal after reset")
	}
}

func TestAlertsEndpoint(t *testing.T) {
	server, session := newTestServer(t)
	session.EvaluateTick(nil, -0.99)

	rec := get(t, server, "/api/v1/alerts")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body struct {
		Count  int           `json:"count"`
		Alerts []types.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if body.Count != 1 || len(body.Alerts) != 1 {
		t.Errorf("Expected one alert, got %+v", body)
	}
}

func TestResultEndpointsBeforeAndAfterPublish(t *testing.T) {
	server, _ := newTestServer(t)

	for _, path := range []string{"/api/v1/performance", "/api/v1/stress", "/api/v1/regime"} {
		if rec := get(t, server, path); rec.Code != http.StatusNotFound {
			t.Errorf("%s before publish: expected 404, got %d", path, rec.Code)
		}
	}

	server.SetPerformance(types.PerformanceMetrics{TotalReturn: 0.12, TradeCount: 3})
	server.SetStressReport(&stress.Report{
		Results:        map[stress.Scenario]stress.Summary{stress.ScenarioNormal: {Scenario: stress.ScenarioNormal}},
		MostResilient:  stress.ScenarioNormal,
		MostVulnerable: stress.ScenarioNormal,
	})

	rec := get(t, server, "/api/v1/performance")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var m types.PerformanceMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("Bad JSON: %v", err)
	}
	if m.TotalReturn != 0.12 || m.TradeCount != 3 {
		t.Errorf("Performance payload wrong: %+v", m)
	}

	if rec := get(t, server, "/api/v1/stress"); rec.Code != http.StatusOK {
		t.Errorf("Stress after publish: expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	if rec := get(t, server, "/metrics"); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 from scrape endpoint, got %d", rec.Code)
	}
}
