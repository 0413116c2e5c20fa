// Package httpapi exposes the world store over HTTP: a chi-routed /v1 REST
// surface for registration, telemetry, flight plans, geofences, commands,
// and admin operations, plus a gorilla/websocket streaming endpoint for
// per-drone command push and fleet-wide conflict/event notifications.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"utmcore/internal/apierr"
	"utmcore/internal/conflict"
	"utmcore/internal/config"
	"utmcore/internal/logging"
	"utmcore/internal/store"
	"utmcore/models"
)

// API wires the store and configuration into an http.Handler.
type API struct {
	store               *store.Store
	logger              logging.Logger
	detector            *conflict.Detector
	adminSecret         string
	registrationSecret  string
	limits              config.LimitsConfig
	startedAt           time.Time
}

// New builds the chi router for the given store and config.
func New(s *store.Store, logger logging.Logger, cfg *config.Config) http.Handler {
	a := &API{
		store:       s,
		logger:      logger,
		detector: conflict.New(conflict.Limits{
			MinHorizontalSeparationM: cfg.Limits.MinHorizontalSeparationM,
			MinVerticalSeparationM:   cfg.Limits.MinVerticalSeparationM,
			Lookahead:                cfg.Limits.Lookahead,
			SampleInterval:           cfg.Limits.SampleInterval,
		}),
		adminSecret:        cfg.Auth.AdminJWTSecret,
		registrationSecret: cfg.Auth.RegistrationSecret,
		limits:             cfg.Limits,
		startedAt:          time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Registration-Token"},
		MaxAge:           300,
	}))

	r.Get("/healthz", a.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/compliance/limits", a.handleComplianceLimits)

		r.With(a.requireRegistrationSecret).Post("/drones/register", a.handleRegister)

		r.Group(func(r chi.Router) {
			r.Use(a.requireDroneToken)
			r.Post("/telemetry", a.handleIngestTelemetry)
			r.Get("/commands/next", a.handlePopNextCommand)
			r.Get("/stream/commands", a.handleCommandStream)
		})

		r.Get("/drones", a.handleListDrones)
		r.Get("/drones/{droneID}", a.handleGetDrone)
		r.Get("/drones/{droneID}/commands", a.handleListCommandsForDrone)
		r.Get("/conflicts", a.handleListConflicts)

		r.Get("/geofences", a.handleListGeofences)
		r.Get("/flight-plans", a.handleListFlightPlans)
		r.Post("/flight-plans", a.handleSubmitFlightPlan)
		r.Get("/flight-plans/{flightID}/violations", a.handleCheckFlightPlanRoute)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAdmin)
			r.Put("/geofences", a.handleUpsertGeofence)
			r.Delete("/geofences/{geofenceID}", a.handleDeleteGeofence)
			r.Post("/drones/{droneID}/priority", a.handleSetPriority)
			r.Post("/commands", a.handleEnqueueCommand)
			r.Post("/commands/{commandID}/ack", a.handleAckCommand)
			r.Post("/admin/reset", a.handleAdminReset)
		})
	})

	return r
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Info(r.Context(), "http_request",
			"method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration_ms", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := apierr.KindOf(err)
	switch kind {
	case apierr.InvalidInput:
		status = http.StatusBadRequest
	case apierr.NotFound:
		status = http.StatusNotFound
	case apierr.Unauthorized:
		status = http.StatusUnauthorized
	case apierr.RateLimited:
		status = http.StatusTooManyRequests
	case apierr.Conflict:
		status = http.StatusConflict
	case apierr.PersistenceFailure, apierr.ExternalUnavailable:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"code": string(kind), "message": err.Error()})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if a.store.Degraded() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":     status,
		"uptime_s":   time.Since(a.startedAt).Seconds(),
		"degraded":   a.store.Degraded(),
	})
}

func (a *API) handleComplianceLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.limits)
}

// conflicts recomputes the current conflict set on demand, rather than
// caching the conflict loop's last tick, so GET /v1/conflicts always
// reflects the freshest telemetry.
func (a *API) conflicts() []models.Conflict {
	drones := a.store.ListDrones()
	return a.detector.Detect(drones, time.Now(), a.limits.DroneTimeout)
}
