package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/collector"
	"github.com/bbernstein/flowebb/tidesensors/internal/models"
	"github.com/bbernstein/flowebb/tidesensors/internal/setup"
)

// EntryHook reacts to config entries created or removed over HTTP.
type EntryHook func(ctx context.Context, entry *models.ConfigEntry) error

type Server struct {
	router       *gin.Engine
	server       *http.Server
	addr         string
	manager      *collector.Manager
	flow         *setup.Flow
	onConfigured EntryHook
	onRemoved    EntryHook
	now          func() time.Time
}

type ServerConfig struct {
	Addr         string
	Manager      *collector.Manager
	Flow         *setup.Flow
	OnConfigured EntryHook
	OnRemoved    EntryHook
}

func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	if cfg.Manager == nil {
		cfg.Manager = collector.NewManager()
	}

	s := &Server{
		router:       router,
		addr:         cfg.Addr,
		manager:      cfg.Manager,
		flow:         cfg.Flow,
		onConfigured: cfg.OnConfigured,
		onRemoved:    cfg.OnRemoved,
		now:          time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthHandler)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	instances := s.router.Group("/instances")
	{
		instances.GET("", s.listInstancesHandler)
		instances.GET("/:id/readings", s.readingsHandler)
		instances.POST("/:id/refresh", s.refreshHandler)
		instances.DELETE("/:id", s.removeInstanceHandler)
	}

	if s.flow != nil {
		setupGroup := s.router.Group("/setup")
		{
			setupGroup.POST("/identify", s.identifyHandler)
			setupGroup.POST("/configure", s.configureHandler)
			setupGroup.PUT("/configure/:id", s.reconfigureHandler)
		}
	}
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("HTTP server starting")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"instances": len(s.manager.List()),
		"timestamp": s.now().UTC(),
	})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}
