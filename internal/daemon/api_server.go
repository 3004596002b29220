package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"caseflow/internal/config"
	"caseflow/internal/logging"
	"caseflow/internal/store"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{bind: bind, logger: logger, daemon: d}

	router := chi.NewRouter()
	router.Get("/healthz", srv.handleHealth)
	router.Route("/api", func(r chi.Router) {
		r.Get("/progress", srv.handleProgress)
		r.Get("/cases", srv.handleCases)
		r.Get("/cases/{caseID}", srv.handleCase)
	})

	srv.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)

	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

type healthResponse struct {
	Ready  bool          `json:"ready"`
	Stages []stageHealth `json:"stages"`
}

type stageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.daemon.workflow.Health(r.Context())
	resp := healthResponse{Ready: true}
	for _, h := range health {
		resp.Stages = append(resp.Stages, stageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
		if !h.Ready {
			resp.Ready = false
		}
	}
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

type progressResponse struct {
	Total           int            `json:"total"`
	Pending         int            `json:"pending"`
	Processing      int            `json:"processing"`
	Completed       int            `json:"completed"`
	Failed          int            `json:"failed"`
	AssetsDone      int            `json:"assets_done"`
	AssetsExpected  int            `json:"assets_expected"`
	CompletionRatio float64        `json:"completion_ratio"`
	AssetStatuses   map[string]int `json:"asset_statuses"`
}

func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.daemon.store.ProgressSnapshot(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	counts, err := s.daemon.store.AssetStatusCounts(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	statuses := make(map[string]int, len(counts))
	for status, n := range counts {
		statuses[status.String()] = n
	}
	s.writeJSON(w, http.StatusOK, progressResponse{
		Total:           snapshot.Total,
		Pending:         snapshot.Pending,
		Processing:      snapshot.Processing,
		Completed:       snapshot.Completed,
		Failed:          snapshot.Failed,
		AssetsDone:      snapshot.AssetsDone,
		AssetsExpected:  snapshot.AssetsExpected,
		CompletionRatio: snapshot.CompletionRatio(),
		AssetStatuses:   statuses,
	})
}

func (s *apiServer) handleCases(w http.ResponseWriter, r *http.Request) {
	var statuses []store.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			code, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				s.writeError(w, http.StatusBadRequest, "invalid status code: "+part)
				return
			}
			statuses = append(statuses, store.Status(code))
		}
	}
	cases, err := s.daemon.store.ListCasesByConvertStatus(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"cases": cases, "count": len(cases)})
}

func (s *apiServer) handleCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	record, err := s.daemon.store.GetCase(r.Context(), caseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "unknown case: "+caseID)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	assets, err := s.daemon.store.ListAssets(r.Context(), caseID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	complete, err := s.daemon.store.CaseComplete(r.Context(), caseID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"case":     record,
		"assets":   assets,
		"complete": complete,
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("api response write failed", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}
