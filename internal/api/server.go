package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"esimsync/internal/api/handlers"
	"esimsync/internal/api/middleware"
	"esimsync/internal/catalog"
	"esimsync/internal/config"
	"esimsync/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the HTTP surface dispatches to.
type Deps struct {
	Fulfiller      handlers.Fulfiller
	Recoverer      handlers.Recoverer
	Syncer         handlers.CatalogSyncer
	CatalogOptions catalog.Options
	Usage          handlers.UsageProvider
	Pending        handlers.PendingLister
	Deliveries     handlers.DeliveryLister
	Gatherer       prometheus.Gatherer
}

type Server struct {
	config *config.Config
	logger *logger.Logger
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, deps Deps) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics())

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(deps.Fulfiller, logger)
	jobHandler := handlers.NewJobHandler(deps.Recoverer, deps.Syncer, deps.CatalogOptions, logger)
	orderHandler := handlers.NewOrderHandler(deps.Pending, deps.Deliveries, deps.Usage)

	// Routes
	router.GET("/health", handlers.Health)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/orders/paid", webhookHandler.OrderPaid)
	}

	jobs := router.Group("/jobs")
	{
		jobs.POST("/recovery", jobHandler.Recovery)
		jobs.POST("/catalog-sync", jobHandler.CatalogSync)
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/pending-orders", orderHandler.ListPending)
		v1.GET("/deliveries", orderHandler.ListDeliveries)
		v1.GET("/orders/:code/usage", orderHandler.Usage)
	}

	return &Server{
		config: cfg,
		logger: logger,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	// Webhook handling polls the provider, so the write timeout has to cover
	// the full retry budget of one order.
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.writeTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// Router returns the gin engine, used by the serverless entrypoint and tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) writeTimeout() time.Duration {
	r := s.config.Retry
	budget := time.Duration(r.CompleteAttempts)*r.CompleteDelay +
		time.Duration(r.LookupAttempts)*r.LookupDelay +
		time.Duration(r.ArtifactAttempts)*r.ArtifactDelay
	return budget + time.Minute
}
