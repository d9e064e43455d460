package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intraday-scanner/internal/markethours"
	"intraday-scanner/internal/metrics"
	"intraday-scanner/internal/model"
	"intraday-scanner/internal/scanner"
)

// Scanner runs a scan for one tier.
type Scanner interface {
	Scan(ctx context.Context, tier model.RiskTier) model.ScanResult
}

// DetailLookup builds the single-symbol view.
type DetailLookup interface {
	Detail(ctx context.Context, symbol string) (model.Detail, error)
}

// Deps are the collaborators of the HTTP API. Only Scanner and Lookup are
// required.
type Deps struct {
	Scanner   Scanner
	Lookup    DetailLookup
	Cache     model.ScanCache       // optional scan cache
	Metrics   *metrics.Metrics      // optional
	Health    *metrics.HealthStatus // optional, served at /healthz
	Gatherer  prometheus.Gatherer   // optional, served at /metrics
	Hub       *Hub                  // optional, served at /ws
	Backend   string                // provider name shown by /api/health
	StaticDir string                // optional SPA directory
	Now       func() time.Time
}

// Server is the REST/WS API.
type Server struct {
	d Deps
}

// NewServer creates the API server.
func NewServer(d Deps) *Server {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Server{d: d}
}

// SetCORS sets permissive CORS headers; the API carries no credentials.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return cors(mux)
}

// RegisterRoutes registers all HTTP routes on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/scan", s.handleScan)
	mux.HandleFunc("GET /api/stock/{symbol}", s.handleStock)

	if s.d.Hub != nil {
		mux.HandleFunc("GET /ws", s.d.Hub.ServeWS)
	}
	if s.d.Health != nil {
		mux.Handle("GET /healthz", s.d.Health)
	}
	if s.d.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.d.Gatherer, promhttp.HandlerOpts{}))
	}
	if s.d.StaticDir != "" {
		mux.Handle("GET /", spaHandler(s.d.StaticDir))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Backend: s.d.Backend + " (Go)",
		Market:  markethours.StatusString(s.d.Now()),
	})
}

// handleScan serves GET /api/scan?risk=&refresh=. Results for a known tier
// are served from the cache while fresh unless refresh=true.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tier := model.ParseRiskTier(q.Get("risk"))
	refresh := q.Get("refresh") == "true"
	useCache := s.d.Cache != nil && tier.Known()

	if useCache && !refresh {
		res, ok, err := s.d.Cache.Get(r.Context(), tier)
		if err != nil {
			slog.Warn("scan cache read failed", "risk", tier, "err", err)
		}
		if ok {
			s.countCache(true)
			writeJSON(w, http.StatusOK, NewScanResponse(res, true))
			return
		}
		s.countCache(false)
	}

	res := s.d.Scanner.Scan(r.Context(), tier)
	if s.d.Health != nil {
		s.d.Health.SetLastScan(res.GeneratedAt)
	}
	if useCache && r.Context().Err() == nil {
		if err := s.d.Cache.Set(r.Context(), res); err != nil {
			slog.Warn("scan cache write failed", "risk", tier, "err", err)
		}
	}
	writeJSON(w, http.StatusOK, NewScanResponse(res, false))
}

func (s *Server) countCache(hit bool) {
	if s.d.Metrics == nil {
		return
	}
	if hit {
		s.d.Metrics.CacheHits.Inc()
	} else {
		s.d.Metrics.CacheMisses.Inc()
	}
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	symbol := model.CleanSymbol(r.PathValue("symbol"))

	d, err := s.d.Lookup.Detail(r.Context(), symbol)
	switch {
	case errors.Is(err, scanner.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Status: "error", Message: "Stock data not found"})
	case err != nil:
		slog.Error("stock detail failed", "symbol", symbol, "err", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Status:  "error",
			Message: "Internal Server Error",
			Detail:  err.Error(),
		})
	default:
		writeJSON(w, http.StatusOK, DetailResponse{Status: "success", Data: NewDetailOut(d)})
	}
}

// spaHandler serves files from dir and falls back to index.html for
// client-side routes.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Status: "error", Message: "not found"})
			return
		}
		p := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	})
}
