package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ilkys.app/internal/access"
	"ilkys.app/internal/audit"
	"ilkys.app/internal/auth"
	"ilkys.app/internal/entity"
	"ilkys.app/internal/monitor"
	"ilkys.app/internal/obs"
	"ilkys.app/internal/query"
	"ilkys.app/internal/tenant"
)

const serviceName = "ilkys-api"

// ReadyProbe checks the primary dependency (database ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// EntityStore is the persistence surface the CRUD handlers need.
type EntityStore interface {
	List(ctx context.Context, tc tenant.Context, e entity.Entity, opts query.ListOptions) ([]map[string]any, int64, error)
	Insert(ctx context.Context, tc tenant.Context, e entity.Entity, row map[string]any) (map[string]any, error)
	UpdateWhere(ctx context.Context, tc tenant.Context, e entity.Entity, set map[string]any, filters []query.Filter) (pre, post []map[string]any, err error)
	DeleteWhere(ctx context.Context, tc tenant.Context, e entity.Entity, filters []query.Filter) (pre []map[string]any, deleted int64, err error)
}

// AccessVerifier runs the authorization pipeline for one entity action.
type AccessVerifier interface {
	Verify(ctx context.Context, entityName, action string) (access.Decision, error)
}

// Config carries the collaborators the API is wired with at startup.
type Config struct {
	ReadyProbe ReadyProbe
	Resolver   tenant.Resolver
	Verifier   AccessVerifier
	Store      EntityStore
	Recorder   *audit.Recorder
	Monitor    *monitor.Monitor
	Version    string

	// MaxBodyBytes limits request bodies; zero means 1 MiB.
	MaxBodyBytes int64
	// RateBurst/RatePerSecond configure per-IP limiting; zero disables it.
	RateBurst     int
	RatePerSecond int
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	resolver   tenant.Resolver
	verifier   AccessVerifier
	store      EntityStore
	recorder   *audit.Recorder
	mon        *monitor.Monitor
	version    string

	maxBodyBytes  int64
	rateBurst     int
	ratePerSecond int
}

func New(cfg Config) *API {
	a := &API{
		mux:           http.NewServeMux(),
		readyProbe:    cfg.ReadyProbe,
		resolver:      cfg.Resolver,
		verifier:      cfg.Verifier,
		store:         cfg.Store,
		recorder:      cfg.Recorder,
		mon:           cfg.Monitor,
		version:       cfg.Version,
		maxBodyBytes:  cfg.MaxBodyBytes,
		rateBurst:     cfg.RateBurst,
		ratePerSecond: cfg.RatePerSecond,
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 1 << 20
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("GET /metrics", obs.Handler())

	// dev token mint
	a.mux.HandleFunc("POST /v1/auth/token", a.MintToken)

	// generic entity CRUD
	a.mux.HandleFunc("GET /api/ilkys/{entity}", a.ListEntities)
	a.mux.HandleFunc("POST /api/ilkys/{entity}", a.CreateEntity)
	a.mux.HandleFunc("PATCH /api/ilkys/{entity}", a.UpdateEntities)
	a.mux.HandleFunc("DELETE /api/ilkys/{entity}", a.DeleteEntities)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = a.withTenant(h)
	if a.ratePerSecond > 0 {
		h = RateLimit(h, a.rateBurst, a.ratePerSecond)
	}
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}

// --- health handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	if a.mon != nil && !a.mon.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "degraded",
			"failing": a.mon.Unhealthy(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

type mintTokenRequest struct {
	UserID     string   `json:"user_id"`
	Roles      []string `json:"roles"`
	TTLMinutes int      `json:"ttl_minutes"`
}

// MintToken issues a signed session token. In production the identity
// provider calls this after its own authentication; there is no password
// check here.
func (a *API) MintToken(w http.ResponseWriter, r *http.Request) {
	var req mintTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "", err.Error())
		return
	}
	ttl := time.Duration(req.TTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	token, err := auth.GenerateToken(req.UserID, req.Roles, ttl)
	if err != nil {
		writeError(w, http.StatusBadRequest, "", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int(ttl.Seconds()),
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders the shared error envelope {error, code?}.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	body := map[string]any{"error": msg}
	if code != "" {
		body["code"] = code
	}
	writeJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// verifyError maps pipeline failures to the response status and code.
func verifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrUnknown):
		writeError(w, http.StatusBadRequest, "unknown_entity", "unknown entity")
	case errors.Is(err, tenant.ErrNoTenant), errors.Is(err, tenant.ErrInvalidTenant):
		writeError(w, http.StatusBadRequest, "no_tenant", "tenant could not be resolved")
	case errors.Is(err, access.ErrNoSession):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
	case errors.Is(err, access.ErrNoMembership):
		writeError(w, http.StatusForbidden, "no_tenant_access", "no access to this tenant")
	case errors.Is(err, access.ErrDenied):
		writeError(w, http.StatusForbidden, "permission_denied", "permission denied")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
