// Package fixture serves a local mirror of the sharded repository layout so
// the harness can be validated without the real server.
package fixture

import (
	"bytes"
	"errors"
	"io/fs"
	"net/http"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/shardprobe/internal/domain"
)

// Options controls which variants are served and how badly the mirror
// behaves.
type Options struct {
	// Variants served; requests under any other prefix get 404.
	Variants []domain.PathVariant
	// Files is laid out as <bucket>/<subbucket>/<file>, shared by all variants.
	Files fs.FS
	// RejectHead answers HEAD with 405.
	RejectHead bool
	// Delay is applied before every file response.
	Delay time.Duration
	// FailFirst answers the first N file requests with 503.
	FailFirst int
}

type Server struct {
	Logger *zap.Logger
	opts   Options

	served map[domain.PathVariant]bool
	fails  atomic.Int64

	mu   sync.Mutex
	hits map[string]int
}

func New(l *zap.Logger, opts Options) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	served := make(map[domain.PathVariant]bool, len(opts.Variants))
	for _, v := range opts.Variants {
		served[v] = true
	}
	return &Server{Logger: l, opts: opts, served: served, hits: map[string]int{}}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("shardprobe fixture"))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/{variant}", func(r chi.Router) {
		r.Get("/{bucket}/{sub}/{file}", s.handleFile)
		r.Head("/{bucket}/{sub}/{file}", s.handleFile)
	})
	return r
}

// Hits returns how many file requests arrived with the given method.
func (s *Server) Hits(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method]
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.Method]++
	s.mu.Unlock()

	variant := domain.PathVariant(chi.URLParam(r, "variant"))
	name := path.Join(chi.URLParam(r, "bucket"), chi.URLParam(r, "sub"), chi.URLParam(r, "file"))
	log := s.Logger.With(
		zap.String("method", r.Method),
		zap.String("variant", string(variant)),
		zap.String("file", name),
	)

	if s.opts.RejectHead && r.Method == http.MethodHead {
		log.Debug("fixture_head_rejected")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.fails.Add(1) <= int64(s.opts.FailFirst) {
		log.Debug("fixture_injected_failure")
		http.Error(w, "try again", http.StatusServiceUnavailable)
		return
	}
	if s.opts.Delay > 0 {
		select {
		case <-time.After(s.opts.Delay):
		case <-r.Context().Done():
			return
		}
	}
	if !s.served[variant] || s.opts.Files == nil {
		log.Debug("fixture_variant_not_served")
		http.NotFound(w, r)
		return
	}

	data, err := fs.ReadFile(s.opts.Files, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		log.Warn("fixture_read_error", zap.Error(err))
		http.Error(w, "read error", http.StatusInternalServerError)
		return
	}
	log.Debug("fixture_serve", zap.Int("bytes", len(data)))
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}
