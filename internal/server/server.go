// Package server exposes the merge pipeline over HTTP: an upload form, the
// /process endpoint returning the ZIP bundle, the saved exports and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/KaramelBytes/trendmerge/internal/config"
	"github.com/KaramelBytes/trendmerge/internal/pipeline"
	"github.com/KaramelBytes/trendmerge/internal/publish"
	"github.com/KaramelBytes/trendmerge/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options wires the server's collaborators.
type Options struct {
	Config     *config.Global
	Log        *slog.Logger
	Store      *store.Store
	Publishers []publish.Publisher
	// Registry defaults to a fresh registry with Go and process collectors.
	Registry *prometheus.Registry
}

// Server is the HTTP upload layer.
type Server struct {
	cfg     *config.Global
	log     *slog.Logger
	store   *store.Store
	pubs    []publish.Publisher
	metrics *Metrics
	router  *gin.Engine
	// inlined into every viewer when configured
	plotlyJS []byte
}

// New builds the router.
func New(opt Options) (*Server, error) {
	if opt.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if opt.Store == nil {
		return nil, errors.New("server: exports store is required")
	}
	log := opt.Log
	if log == nil {
		log = slog.Default()
	}
	reg := opt.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	plotlyJS, err := pipeline.PlotlyScript(opt.Config)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      opt.Config,
		log:      log,
		store:    opt.Store,
		pubs:     opt.Publishers,
		metrics:  NewMetrics(reg),
		plotlyJS: plotlyJS,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.MaxMultipartMemory = int64(opt.Config.MaxUploadMB) << 20

	r.GET("/", s.handleIndex)
	r.POST("/process", s.handleProcess)
	r.GET("/health", handleHealth)
	r.GET("/api/exports", s.handleExports)
	r.Static("/static/exports", opt.Store.Dir())
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	s.router = r
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.ListenAddr, "exports_dir", s.store.Dir(), "publishers", len(s.pubs))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}
