package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fraudsynth/internal/auth"
	"fraudsynth/internal/config"
	"fraudsynth/internal/inference"
	"fraudsynth/internal/store"
)

// Server owns the HTTP surface. All fields are set at construction and
// read-only afterwards; per-request state never leaks into them.
type Server struct {
	cfg      *config.Config
	log      *zap.Logger
	engine   *inference.Engine
	store    store.Store
	verifier auth.Verifier
	router   *gin.Engine
}

func New(cfg *config.Config, log *zap.Logger, engine *inference.Engine, st store.Store, verifier auth.Verifier) *Server {
	s := &Server{cfg: cfg, log: log, engine: engine, store: st, verifier: verifier}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())

	r.GET("/", s.handleHealth)
	r.GET("/debug/origins", s.handleDebugOrigins)
	r.POST("/auth/verify", s.handleVerify)

	api := r.Group("/api")
	api.POST("/predict", s.handlePredict)
	api.POST("/predict-csv", s.handlePredictCSV)
	api.GET("/template", s.handleTemplate)
	api.GET("/metrics", s.handleMetrics)
	api.GET("/top-risks", s.handleTopRisks)
	api.GET("/curves", s.handleCurves)

	s.router = r
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Run() error {
	s.log.Info("listening", zap.String("port", s.cfg.Port))
	return s.router.Run(":" + s.cfg.Port)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "FraudSynth backend is running"})
}

func (s *Server) handleDebugOrigins(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"allow_origins": s.cfg.AllowedOrigins})
}

// corsMiddleware mirrors the frontend contract: configured origins only,
// credentials allowed, preflight answered inline.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowed := map[string]bool{}
	for _, o := range s.cfg.AllowedOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowed[origin] {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
