// Package server wires the planner's HTTP surface.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/christopher-besch/chore-planner/internal/handler"
	"github.com/christopher-besch/chore-planner/internal/middleware"
	"github.com/christopher-besch/chore-planner/internal/planner"
	ws "github.com/christopher-besch/chore-planner/internal/websocket"
)

type Config struct {
	// AdminTokenHash guards mutating routes; empty leaves them open.
	AdminTokenHash string
	// Gatherer backs /metrics, prometheus.DefaultGatherer if nil.
	Gatherer prometheus.Gatherer
	// Snapshots serves /api/snapshots; the routes are absent if nil.
	Snapshots handler.Snapshots
}

type Server struct {
	db     *sql.DB
	hub    *ws.Hub
	cfg    Config
	logger *slog.Logger

	tenantH    *handler.TenantHandler
	choreH     *handler.ChoreHandler
	exemptionH *handler.ExemptionHandler
	planH      *handler.PlanHandler
	ratingH    *handler.RatingHandler
	snapshotH  *handler.SnapshotHandler

	rateLimiter  *middleware.RateLimiter
	authFailures *middleware.RateLimiter
}

func New(db *sql.DB, engine *planner.Engine, hub *ws.Hub, advancer handler.WeekAdvancer, cfg Config, logger *slog.Logger) *Server {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	var snapshotH *handler.SnapshotHandler
	if cfg.Snapshots != nil {
		snapshotH = handler.NewSnapshotHandler(engine, cfg.Snapshots, logger.With("component", "snapshot"))
	}
	return &Server{
		db:     db,
		hub:    hub,
		cfg:    cfg,
		logger: logger,

		tenantH:    handler.NewTenantHandler(engine, hub, logger.With("component", "tenant")),
		choreH:     handler.NewChoreHandler(engine, hub, logger.With("component", "chore")),
		exemptionH: handler.NewExemptionHandler(engine, hub, logger.With("component", "exemption")),
		planH:      handler.NewPlanHandler(engine, hub, advancer, logger.With("component", "plan")),
		ratingH:    handler.NewRatingHandler(engine, logger.With("component", "rating")),
		snapshotH:  snapshotH,

		rateLimiter:  middleware.NewRateLimiter(60, time.Minute),
		authFailures: middleware.NewRateLimiter(5, 15*time.Minute),
	}
}

// RateLimiters returns the limiters for periodic cleanup.
func (s *Server) RateLimiters() []*middleware.RateLimiter {
	return []*middleware.RateLimiter{s.rateLimiter, s.authFailures}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	s.registerReadRoutes(mux)
	s.registerWriteRoutes(mux)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "database unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"status": status, "clients": s.hub.ClientCount()})
}

func (s *Server) registerReadRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rooms", s.tenantH.Rooms)
	mux.HandleFunc("GET /api/rooms/{name}/tenant", s.tenantH.RoomTenant)
	mux.HandleFunc("GET /api/tenants/{name}/room", s.tenantH.TenantRoom)

	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("GET /api/exemptions", s.exemptionH.List)

	mux.HandleFunc("GET /api/plan", s.planH.Future)
	mux.HandleFunc("GET /api/plan/past", s.planH.Past)
	mux.HandleFunc("GET /api/plan/candidates", s.planH.Candidates)
	mux.HandleFunc("GET /api/week", s.planH.Week)

	mux.HandleFunc("GET /api/ratings/due", s.ratingH.Due)
	mux.HandleFunc("GET /api/ratings/polls", s.ratingH.OpenPolls)
}

// registerWriteRoutes registers the mutating routes behind the rate limit
// and the admin token.
func (s *Server) registerWriteRoutes(mux *http.ServeMux) {
	limit := middleware.RateLimit(s.rateLimiter)
	auth := middleware.RequireToken(s.cfg.AdminTokenHash, s.authFailures, s.logger.With("component", "auth"))
	guard := func(h http.HandlerFunc) http.Handler {
		return limit(auth(h))
	}

	mux.Handle("POST /api/rooms", guard(s.tenantH.CreateRoom))
	mux.Handle("POST /api/tenants/move-in", guard(s.tenantH.MoveIn))
	mux.Handle("POST /api/tenants/move-out", guard(s.tenantH.MoveOut))
	mux.Handle("POST /api/unwilling", guard(s.tenantH.Unwilling))

	mux.Handle("POST /api/chores", guard(s.choreH.Create))
	mux.Handle("PUT /api/chores/{name}/active", guard(s.choreH.SetActive))

	mux.Handle("POST /api/exemptions", guard(s.exemptionH.Create))
	mux.Handle("PUT /api/exemptions/{reason}", guard(s.exemptionH.Update))
	mux.Handle("POST /api/exemptions/{reason}/grant", guard(s.exemptionH.Grant))
	mux.Handle("POST /api/exemptions/{reason}/revoke", guard(s.exemptionH.Revoke))

	mux.Handle("POST /api/plan/maintain", guard(s.planH.Maintain))
	mux.Handle("POST /api/week/advance", guard(s.planH.Advance))

	mux.Handle("POST /api/ratings/polls", guard(s.ratingH.AttachPoll))
	mux.Handle("POST /api/ratings/polls/{ref}/complete", guard(s.ratingH.CompletePoll))

	if s.snapshotH != nil {
		mux.Handle("GET /api/snapshots", guard(s.snapshotH.List))
		mux.Handle("POST /api/snapshots", guard(s.snapshotH.Create))
		mux.Handle("GET /api/snapshots/{id}", guard(s.snapshotH.Download))
		mux.Handle("POST /api/snapshots/{id}/verify", guard(s.snapshotH.Verify))
	}
}
