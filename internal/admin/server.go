// Package admin serves an operator HTTP API over a set of named caches:
// statistics, key listings, targeted deletes, tag invalidation and the
// Prometheus scrape endpoint.
package admin

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tagcache/internal/cache"
)

// Store is the slice of *cache.Cache[V] the admin API needs. Any value type works.
type Store interface {
	Stats() cache.Stats
	Keys() []string
	Delete(key string) bool
	InvalidateByTags(tags ...string) int
	Clear()
}

// Server routes admin requests to registered caches.
type Server struct {
	caches      map[string]Store
	gatherer    prometheus.Gatherer
	metricsPath string
	logger      *zap.Logger
}

// NewServer builds a server. gatherer may be nil to disable the metrics route.
func NewServer(caches map[string]Store, gatherer prometheus.Gatherer, metricsPath string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		caches:      caches,
		gatherer:    gatherer,
		metricsPath: metricsPath,
		logger:      logger,
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, s.accessLog)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle(s.metricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/caches", func(r chi.Router) {
		r.Get("/", s.listCaches)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/stats", s.withCache(s.stats))
			r.Get("/keys", s.withCache(s.keys))
			r.Delete("/keys/{key}", s.withCache(s.deleteKey))
			r.Post("/invalidate", s.withCache(s.invalidate))
			r.Post("/clear", s.withCache(s.clear))
		})
	})
	return r
}

type cacheHandler func(w http.ResponseWriter, r *http.Request, c Store)

func (s *Server) withCache(h cacheHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		c, ok := s.caches[name]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown cache "+name)
			return
		}
		h(w, r, c)
	}
}

func (s *Server) listCaches(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.caches))
	for name := range s.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string][]string{"caches": names})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request, c Store) {
	writeJSON(w, http.StatusOK, c.Stats())
}

func (s *Server) keys(w http.ResponseWriter, r *http.Request, c Store) {
	writeJSON(w, http.StatusOK, map[string][]string{"keys": c.Keys()})
}

func (s *Server) deleteKey(w http.ResponseWriter, r *http.Request, c Store) {
	key := chi.URLParam(r, "key")
	if !c.Delete(key) {
		writeError(w, http.StatusNotFound, "unknown key "+key)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type invalidateRequest struct {
	Tags []string `json:"tags"`
}

func (s *Server) invalidate(w http.ResponseWriter, r *http.Request, c Store) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	removed := c.InvalidateByTags(req.Tags...)
	s.logger.Info("Invalidated cache entries",
		zap.String("cache", chi.URLParam(r, "name")),
		zap.Strings("tags", req.Tags),
		zap.Int("removed", removed),
	)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request, c Store) {
	c.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// requestID echoes X-Request-ID or assigns a fresh one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Admin request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", w.Header().Get("X-Request-ID")),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
