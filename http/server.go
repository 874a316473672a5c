package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fwojciec/kbase"
	"github.com/fwojciec/kbase/cache"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ShutdownTimeout bounds graceful shutdown of the server.
const ShutdownTimeout = 10 * time.Second

// maxRequestBody caps JSON request bodies.
const maxRequestBody = 1 << 20

// CacheInspector exposes read-only cache views to the API.
type CacheInspector interface {
	Stats() cache.Stats
	FindSimilar(question string, threshold float64) []cache.SimilarMatch
}

// Server exposes ingestion, querying and cache inspection over HTTP.
type Server struct {
	Queries kbase.QueryService
	Ingests kbase.IngestService
	Cache   CacheInspector

	// Metrics serves GET /metrics when set.
	Metrics http.Handler

	// Middleware is applied to every route after the built-in ones.
	Middleware []func(http.Handler) http.Handler

	Logger *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	for _, mw := range s.Middleware {
		r.Use(mw)
	}

	r.Get("/healthz", s.handleHealth)
	r.Post("/query", s.handleQuery)
	r.Post("/ingest", s.handleIngest)
	r.Route("/cache", func(r chi.Router) {
		r.Get("/stats", s.handleCacheStats)
		r.Get("/similar", s.handleCacheSimilar)
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger().Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// answerResponse is the wire form of kbase.Answer.
type answerResponse struct {
	Answer           string          `json:"answer"`
	Sources          []kbase.Snippet `json:"sources"`
	Confidence       float64         `json:"confidence"`
	ProcessingTimeMS int64           `json:"processing_time_ms"`
	CacheTierHit     kbase.CacheTier `json:"cache_tier_hit"`
	Degraded         bool            `json:"degraded,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.Queries == nil {
		s.writeError(w, r, kbase.Errorf(kbase.ENOTFOUND, "query service not configured"))
		return
	}
	var q kbase.Query
	if err := decodeJSON(w, r, &q); err != nil {
		s.writeError(w, r, err)
		return
	}

	a, err := s.Queries.Ask(r.Context(), &q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sources := a.Sources
	if sources == nil {
		sources = []kbase.Snippet{}
	}
	writeJSON(w, http.StatusOK, answerResponse{
		Answer:           a.Answer,
		Sources:          sources,
		Confidence:       a.Confidence,
		ProcessingTimeMS: a.ProcessingTimeMS(),
		CacheTierHit:     a.CacheTier,
		Degraded:         a.Degraded,
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.Ingests == nil {
		s.writeError(w, r, kbase.Errorf(kbase.ENOTFOUND, "ingest service not configured"))
		return
	}
	var req kbase.IngestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.Ingests.Ingest(r.Context(), req)
	if err != nil {
		if result != nil && kbase.ErrorCode(err) != kbase.EINVALID {
			// Run-level failure: report the partial result alongside the error.
			s.logger().Error("ingest failed", "region", req.Region, "error", err)
			writeJSON(w, http.StatusBadGateway, struct {
				*kbase.IngestResult
				Error string `json:"error"`
			}{result, kbase.ErrorMessage(err)})
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.Cache == nil {
		s.writeError(w, r, kbase.Errorf(kbase.ENOTFOUND, "cache not configured"))
		return
	}
	st := s.Cache.Stats()
	writeJSON(w, http.StatusOK, struct {
		cache.Stats
		AvgLatencyMS int64 `json:"avg_latency_ms"`
	}{st, st.AvgLatency.Milliseconds()})
}

func (s *Server) handleCacheSimilar(w http.ResponseWriter, r *http.Request) {
	if s.Cache == nil {
		s.writeError(w, r, kbase.Errorf(kbase.ENOTFOUND, "cache not configured"))
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		s.writeError(w, r, kbase.Errorf(kbase.EINVALID, "query parameter q required"))
		return
	}
	var threshold float64
	if v := r.URL.Query().Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			s.writeError(w, r, kbase.Errorf(kbase.EINVALID, "threshold must be a number between 0 and 1"))
			return
		}
		threshold = f
	}

	matches := s.Cache.FindSimilar(q, threshold)
	if matches == nil {
		matches = []cache.SimilarMatch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		return kbase.Errorf(kbase.EINVALID, "invalid request body: %v", err)
	}
	return nil
}

// errorStatus maps application error codes to HTTP status codes.
var errorStatus = map[string]int{
	kbase.EINVALID:     http.StatusBadRequest,
	kbase.ENOTFOUND:    http.StatusNotFound,
	kbase.ECONFLICT:    http.StatusConflict,
	kbase.EFETCH:       http.StatusBadGateway,
	kbase.EUNAVAILABLE: http.StatusBadGateway,
	kbase.EGENERATE:    http.StatusBadGateway,
	kbase.EPERSIST:     http.StatusServiceUnavailable,
}

// ErrorStatusCode returns the HTTP status for an application error code.
func ErrorStatusCode(code string) int {
	if v, ok := errorStatus[code]; ok {
		return v
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := kbase.ErrorCode(err), kbase.ErrorMessage(err)
	if code == kbase.EINTERNAL {
		s.logger().Error("http error", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, ErrorStatusCode(code), map[string]string{"code": code, "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
