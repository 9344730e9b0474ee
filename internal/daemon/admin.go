package daemon

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/netutil"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/depotwatch/internal/config"
	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/depotwatch/internal/logfields"
	"git.home.luguber.info/inful/depotwatch/internal/metrics"
	"git.home.luguber.info/inful/depotwatch/internal/report"
	"git.home.luguber.info/inful/depotwatch/internal/snapshot"
	"git.home.luguber.info/inful/depotwatch/internal/store"
)

var reportPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>depotwatch: {{.ID}}</title></head>
<body>
{{.Body}}
</body>
</html>
`))

// TrackResponse is the payload of POST /api/records/{id}/track.
type TrackResponse struct {
	CycleID    string                `json:"cycle_id"`
	Identifier string                `json:"identifier"`
	Rotated    bool                  `json:"rotated"`
	DurationMS int64                 `json:"duration_ms"`
	Report     snapshot.ChangeReport `json:"report"`
}

// AdminServer serves status, records, reports, metrics and manual tracking.
type AdminServer struct {
	daemon     *Daemon
	cfg        config.AdminConfig
	router     *chi.Mux
	server     *http.Server
	listener   net.Listener
	errAdapter *errors.HTTPErrorAdapter
	renderer   *report.Renderer
}

// NewAdminServer creates the admin server for d.
func NewAdminServer(d *Daemon, cfg config.AdminConfig) *AdminServer {
	s := &AdminServer{
		daemon:     d,
		cfg:        cfg,
		router:     chi.NewRouter(),
		errAdapter: errors.NewHTTPErrorAdapter(d.logger),
		renderer:   report.NewRenderer(language.English),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// setupRoutes configures all admin routes.
func (s *AdminServer) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(45 * time.Second))

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", metrics.HTTPHandler(s.daemon.Registry()))

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/status/{id}", s.handleCycleStatus)
		r.Get("/records/{id}", s.handleRecord)
		r.Get("/records/{id}/report", s.handleReport)
		r.Post("/records/{id}/track", s.handleTrack)
	})

	s.router.Get("/reports/{id}", s.handleReportPage)
}

// Handler returns the router, for tests and embedding.
func (s *AdminServer) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background.
// Concurrent connections are capped at MaxConnections.
func (s *AdminServer) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	s.listener = ln

	s.daemon.logger.Info("Admin server listening", slog.String("addr", ln.Addr().String()))
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.daemon.logger.Error("Admin server failed", logfields.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *AdminServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the server.
func (s *AdminServer) Stop(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *AdminServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := s.daemon.PerformHealthChecks()
	code := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, health)
}

func (s *AdminServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.Snapshot())
}

func (s *AdminServer) handleCycleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := store.ValidateIdentifier(id); err != nil {
		s.errAdapter.WriteErrorResponse(w, r, err)
		return
	}
	st, ok := s.daemon.CycleStatus(id)
	if !ok {
		s.errAdapter.WriteErrorResponse(w, r,
			errors.NotFoundError("no cycle has run").WithContext("identifier", id).Build())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *AdminServer) handleRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := store.ValidateIdentifier(id); err != nil {
		s.errAdapter.WriteErrorResponse(w, r, err)
		return
	}

	rec, err := s.daemon.Store().Load(r.Context(), id)
	if err != nil {
		s.errAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if rec.IsZero() {
		s.errAdapter.WriteErrorResponse(w, r, noRecord(id))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *AdminServer) handleReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rep, ok := s.loadReport(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *AdminServer) handleReportPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rep, ok := s.loadReport(w, r, id)
	if !ok {
		return
	}

	body, err := s.renderer.HTML(id, rep)
	if err != nil {
		s.errAdapter.WriteErrorResponse(w, r, errors.InternalError("failed to render report").WithCause(err).Build())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = reportPage.Execute(w, struct {
		ID   string
		Body template.HTML
	}{ID: id, Body: template.HTML(body)}) // #nosec G203 -- goldmark escapes raw HTML
}

func (s *AdminServer) handleTrack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.daemon.TrackOne(r.Context(), id)
	if err != nil {
		s.errAdapter.WriteErrorResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TrackResponse{
		CycleID:    res.CycleID,
		Identifier: res.Identifier,
		Rotated:    res.Rotated,
		DurationMS: res.Duration.Milliseconds(),
		Report:     res.Report,
	})
}

func (s *AdminServer) loadReport(w http.ResponseWriter, r *http.Request, id string) (snapshot.ChangeReport, bool) {
	if err := store.ValidateIdentifier(id); err != nil {
		s.errAdapter.WriteErrorResponse(w, r, err)
		return snapshot.ChangeReport{}, false
	}
	rep, found, err := s.daemon.Store().LoadReport(r.Context(), id)
	if err != nil {
		s.errAdapter.WriteErrorResponse(w, r, err)
		return snapshot.ChangeReport{}, false
	}
	if !found {
		s.errAdapter.WriteErrorResponse(w, r, noReport(id))
		return snapshot.ChangeReport{}, false
	}
	return rep, true
}

func noRecord(id string) error {
	return errors.NotFoundError("no record stored").WithContext("identifier", id).Build()
}

func noReport(id string) error {
	return errors.NotFoundError("no report stored").WithContext("identifier", id).Build()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
