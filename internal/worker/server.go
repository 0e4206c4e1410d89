package worker

import (
	"encoding/json"
	"ingestion/internal/apperrors"
	"ingestion/internal/job"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// statusResponse is the body of every status-bearing RPC response.
type statusResponse struct {
	Status job.Status `json:"status,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// Server exposes an Engine over the worker RPC surface.
type Server struct {
	engine *Engine
	logger *slog.Logger
}

// NewServer creates the RPC server for engine.
func NewServer(engine *Engine) *Server {
	return &Server{
		engine: engine,
		logger: slog.With("component", "worker-rpc"),
	}
}

// Routes builds the chi router. HTTPMetrics, when non-nil, wraps every request.
func (s *Server) Routes(httpMetrics func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	if httpMetrics != nil {
		r.Use(httpMetrics)
	}

	r.Get("/livez", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Post("/ingestion", s.start)
	r.Get("/status/{id}", s.status)
	for _, c := range []job.Control{job.ControlCancel, job.ControlPause, job.ControlResume, job.ControlRetry} {
		r.Get("/"+string(c)+"/{id}", s.control(c))
	}
	r.Get("/embedding/{id}", s.embedding)

	return r
}

// start handles POST /ingestion with body {id, ...payload}.
func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Error: "body must be a JSON object"})
		return
	}

	var id string
	if err := json.Unmarshal(body["id"], &id); err != nil || id == "" {
		writeJSON(w, http.StatusBadRequest, statusResponse{Error: "id is required"})
		return
	}
	delete(body, "id")

	payload, err := json.Marshal(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, statusResponse{Error: "invalid payload"})
		return
	}

	status := s.engine.Start(id, payload)
	writeJSON(w, http.StatusOK, statusResponse{Status: status})
}

// status handles GET /status/{id}.
func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	status := s.engine.Status(chi.URLParam(r, "id"))
	code := http.StatusOK
	if status == job.StatusNotFound {
		code = http.StatusNotFound
	}
	writeJSON(w, code, statusResponse{Status: status})
}

// control handles GET /{cancel|pause|resume|retry}/{id}.
func (s *Server) control(c job.Control) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := s.engine.Control(chi.URLParam(r, "id"), c)
		if err != nil {
			// 404 for unknown ids, 409 for rejected transitions.
			writeJSON(w, apperrors.HTTPStatus(err), statusResponse{Status: status, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: status})
	}
}

// embedding handles GET /embedding/{id}.
func (s *Server) embedding(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Embedding(chi.URLParam(r, "id")))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.InfoContext(r.Context(), "HTTP request",
			"reqId", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
