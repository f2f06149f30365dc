package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"breakwatch/internal/acs"
	"breakwatch/internal/config"
	"breakwatch/internal/model"
	"breakwatch/internal/publish"
	"breakwatch/internal/report"
)

// ReportService is what the handlers need from the report builder.
type ReportService interface {
	Build(ctx context.Context, doorID, dateISO string, thresholdMinutes int) (model.BreakReport, error)
	Doors(ctx context.Context) ([]model.Door, error)
	DefaultThreshold() int
}

type Server struct {
	cfg       *config.Manager
	reports   ReportService
	publisher *publish.Publisher
	logger    *slog.Logger
	version   string
}

func NewServer(cfg *config.Manager, reports ReportService, publisher *publish.Publisher, logger *slog.Logger, version string) *Server {
	return &Server{
		cfg:       cfg,
		reports:   reports,
		publisher: publisher,
		logger:    logger,
		version:   version,
	}
}

func Start(ctx context.Context, cfg *config.Manager, reports ReportService, publisher *publish.Publisher, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := NewServer(cfg, reports, publisher, logger, version)

	httpServer := &http.Server{Addr: current.Addr, Handler: server.Handler()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/report", s.handleReport)
	mux.HandleFunc("/doors", s.handleDoors)
	mux.HandleFunc("/violations", s.handleViolations)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	return s.withRequestLog(mux)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	doorID := r.URL.Query().Get("door")
	if doorID == "" {
		writeError(w, http.StatusBadRequest, "door parameter is required")
		return
	}
	dateISO := r.URL.Query().Get("date")
	if dateISO == "" {
		writeError(w, http.StatusBadRequest, "date parameter is required (YYYY-MM-DD)")
		return
	}
	threshold := s.reports.DefaultThreshold()
	if v := r.URL.Query().Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "threshold must be a non-negative integer")
			return
		}
		threshold = n
	}

	result, err := s.reports.Build(r.Context(), doorID, dateISO, threshold)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, report.ErrInvalidDate):
			status = http.StatusBadRequest
		case errors.Is(err, report.ErrDoorNotFound):
			status = http.StatusNotFound
		case errors.Is(err, acs.ErrUpstream):
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDoors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	doors, err := s.reports.Doors(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doors": doors,
		"count": len(doors),
	})
}

func (s *Server) handleViolations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	list := s.publisher.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"violations": list,
		"count":      len(list),
	})
}

type statusResponse struct {
	Status     string `json:"status"`
	Time       string `json:"time"`
	Version    string `json:"version"`
	ConfigPath string `json:"config_path"`
	VendorURL  string `json:"vendor_url"`
	SiteID     string `json:"site_id"`
	Threshold  int    `json:"default_threshold_minutes"`
	AreaLabel  string `json:"area_label"`
	CredDriver string `json:"credentials_driver"`
	Publish    bool   `json:"publish_enabled"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	writeJSON(w, http.StatusOK, statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		VendorURL:  cfg.Vendor.BaseURL,
		SiteID:     cfg.Vendor.SiteID,
		Threshold:  cfg.Report.DefaultThresholdMinutes,
		AreaLabel:  cfg.Report.AreaLabel,
		CredDriver: cfg.Credentials.Driver,
		Publish:    cfg.Publish.Enabled,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
