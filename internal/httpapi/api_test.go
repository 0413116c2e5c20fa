package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"utmcore/internal/config"
	"utmcore/internal/logging"
	"utmcore/internal/store"
	"utmcore/internal/testutil"
)

func testAPI(t *testing.T) (http.Handler, *store.Store, *config.Config) {
	t.Helper()
	cfg := &config.Config{
		HTTP:     config.HTTPConfig{Address: ":0"},
		Database: config.DatabaseConfig{Path: ":memory:"},
		Auth: config.AuthConfig{
			AdminJWTSecret: "test-admin-secret",
		},
		Limits: config.LimitsConfig{
			MinHorizontalSeparationM: 50,
			MinVerticalSeparationM:   15,
			Lookahead:                20 * time.Second,
			DroneTimeout:             10 * time.Second,
			MinAltitudeM:             0,
			MaxAltitudeM:             120,
			MaxSpeedMPS:              25,
			MaxTelemetryAge:          10 * time.Second,
			MaxTelemetryFuture:       2 * time.Second,
			CommandCooldown:          5 * time.Second,
			RegistrationRatePerMin:   1000,
		},
	}
	s := store.New(nil, logging.New(nil), cfg.Limits, nil)
	return New(s, logging.New(nil), cfg), s, cfg
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h, _, _ := testAPI(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterThenIngestTelemetry(t *testing.T) {
	h, _, _ := testAPI(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/drones/register", registerRequest{OwnerID: "owner-1"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var reg registerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if reg.DroneID == "" || reg.Token == "" {
		t.Fatalf("expected non-empty drone id and token")
	}

	telem := map[string]interface{}{
		"lat": 1.0, "lon": 1.0, "alt": 50.0,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	rec = doJSON(t, h, http.MethodPost, "/v1/telemetry", telem, map[string]string{
		"Authorization": testutil.BearerHeader(reg.Token),
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/drones/"+reg.DroneID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching drone, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestIngestTelemetryRejectsMissingToken(t *testing.T) {
	h, _, _ := testAPI(t)
	rec := doJSON(t, h, http.MethodPost, "/v1/telemetry", map[string]interface{}{"lat": 1.0}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminRouteRejectsWithoutBearerToken(t *testing.T) {
	h, _, _ := testAPI(t)
	rec := doJSON(t, h, http.MethodPost, "/v1/admin/reset", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminRouteAcceptsValidAdminJWT(t *testing.T) {
	h, _, cfg := testAPI(t)
	tok := testutil.GenerateAdminJWT(t, cfg.Auth.AdminJWTSecret, "ops")
	rec := doJSON(t, h, http.MethodPost, "/v1/admin/reset", nil, map[string]string{
		"Authorization": testutil.BearerHeader(tok),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetUnknownDroneReturnsNotFound(t *testing.T) {
	h, _, _ := testAPI(t)
	rec := doJSON(t, h, http.MethodGet, "/v1/drones/does-not-exist", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestComplianceLimitsIsPublic(t *testing.T) {
	h, _, _ := testAPI(t)
	rec := doJSON(t, h, http.MethodGet, "/v1/compliance/limits", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
