package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/internal/pipeline"
	"github.com/sells-group/candidate-profiler/internal/status"
	"github.com/sells-group/candidate-profiler/internal/store"
)

// Triggerer runs a single out-of-schedule cycle of a named pipeline.
type Triggerer interface {
	Trigger(ctx context.Context, name string) error
}

// CandidateStore is the slice of the store the API reads and remediates.
type CandidateStore interface {
	GetCandidate(ctx context.Context, id string) (*candidate.Candidate, error)
	Retry(ctx context.Context, id string) (candidate.State, error)
	CountByState(ctx context.Context) (map[candidate.State]int, error)
}

// API serves pipeline monitoring and candidate endpoints.
type API struct {
	registry       *status.Registry
	pipelines      Triggerer
	candidates     CandidateStore
	streamInterval time.Duration
	corsOrigins    []string
	log            *zap.Logger
}

// APIOption configures the API.
type APIOption func(*API)

// WithStreamInterval sets how often the SSE stream pushes a snapshot.
func WithStreamInterval(d time.Duration) APIOption {
	return func(a *API) {
		if d > 0 {
			a.streamInterval = d
		}
	}
}

// WithCORSOrigins sets the allowed cross-origin callers.
func WithCORSOrigins(origins []string) APIOption {
	return func(a *API) {
		a.corsOrigins = origins
	}
}

// NewAPI creates the HTTP API. pipelines and candidates may be nil, in
// which case their endpoints answer 503.
func NewAPI(registry *status.Registry, pipelines Triggerer, candidates CandidateStore, opts ...APIOption) *API {
	a := &API{
		registry:       registry,
		pipelines:      pipelines,
		candidates:     candidates,
		streamInterval: 2 * time.Second,
		corsOrigins:    []string{"*"},
		log:            zap.L().With(zap.String("component", "monitoring.api")),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Routes returns the router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/monitor/status", a.handleStatusAll)
		r.Get("/monitor/status/{name}", a.handleStatus)
		r.Get("/monitor/stream", a.handleStream)
		r.Post("/pipelines/{name}/trigger", a.handleTrigger)
		r.Get("/candidates/counts", a.handleCounts)
		r.Get("/candidates/{id}", a.handleCandidate)
		r.Post("/candidates/{id}/retry", a.handleRetry)
	})
	return r
}

func (a *API) handleStatusAll(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.registry.All())
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := a.registry.Get(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "Pipeline not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleStream pushes the full status map as an SSE data frame every
// interval until the client goes away.
func (a *API) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(a.streamInterval)
	defer ticker.Stop()
	for {
		payload, err := json.Marshal(a.registry.All())
		if err != nil {
			a.log.Error("encode status stream frame", zap.Error(err))
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *API) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if a.pipelines == nil {
		writeError(w, http.StatusServiceUnavailable, "pipelines unavailable")
		return
	}
	name := chi.URLParam(r, "name")
	err := a.pipelines.Trigger(r.Context(), name)
	if errors.Is(err, pipeline.ErrUnknownPipeline) {
		writeError(w, http.StatusNotFound, "Pipeline not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "pipeline": name})
}

func (a *API) handleCounts(w http.ResponseWriter, r *http.Request) {
	if a.candidates == nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	counts, err := a.candidates.CountByState(r.Context())
	if err != nil {
		a.log.Error("count candidates", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "count failed")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *API) handleCandidate(w http.ResponseWriter, r *http.Request) {
	if a.candidates == nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	c, err := a.candidates.GetCandidate(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Candidate not found")
		return
	}
	if err != nil {
		a.log.Error("get candidate", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleRetry(w http.ResponseWriter, r *http.Request) {
	if a.candidates == nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	id := chi.URLParam(r, "id")
	target, err := a.candidates.Retry(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Candidate not found")
	case errors.Is(err, store.ErrNotRetryable), errors.Is(err, store.ErrStaleState):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		a.log.Error("retry candidate", zap.String("candidate_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "retry failed")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "pipeline_status": string(target)})
	}
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
