// Package restserver exposes a review session over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/welltie/internal/engine"
	"github.com/chrissnell/welltie/internal/storage"
	"github.com/chrissnell/welltie/pkg/config"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Controller represents the REST server controller
type Controller struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	restConfig  config.RESTData
	scanConfig  config.AnomalyData
	Server      http.Server
	engine      *engine.Engine
	health      *storage.HealthManager
	backend     storage.HealthChecker
	backendName string
	logger      *zap.SugaredLogger
	handlers    *Handlers
}

// Options are the pieces a Controller serves
type Options struct {
	Engine      *engine.Engine
	Backend     storage.HealthChecker
	BackendName string
	REST        config.RESTData
	Anomaly     config.AnomalyData
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, opts Options, logger *zap.SugaredLogger) (*Controller, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("REST server requires an engine")
	}

	rc := opts.REST
	if rc.ListenAddr == "" {
		logger.Info("rest.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}
	if rc.Port == 0 {
		logger.Infof("rest.port not provided; defaulting to %d", config.DefaultRESTPort)
		rc.Port = config.DefaultRESTPort
	}

	ctrl := &Controller{
		ctx:         ctx,
		wg:          wg,
		restConfig:  rc,
		scanConfig:  opts.Anomaly,
		engine:      opts.Engine,
		health:      storage.NewHealthManager(),
		backend:     opts.Backend,
		backendName: opts.BackendName,
		logger:      logger,
	}
	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// Handler returns the routed HTTP handler
func (c *Controller) Handler() http.Handler {
	return c.Server.Handler
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("Starting REST server on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				c.logger.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.loggingMiddleware)
	router.Use(c.corsMiddleware)

	h := c.handlers

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Series store
	router.HandleFunc("/series", h.ListSeries).Methods(http.MethodGet)
	router.HandleFunc("/series/overlays", h.AddOverlay).Methods(http.MethodPost)
	router.HandleFunc("/series/overlays/reorder", h.ReorderOverlays).Methods(http.MethodPost)
	router.HandleFunc("/series/overlays/{id}", h.RemoveOverlay).Methods(http.MethodDelete)
	router.HandleFunc("/series/{id}/visible", h.SetVisible).Methods(http.MethodPut)
	router.HandleFunc("/series/{id}/color", h.SetColor).Methods(http.MethodPut)

	// Alignment
	router.HandleFunc("/offset", h.GetOffset).Methods(http.MethodGet)
	router.HandleFunc("/offset", h.SetOffset).Methods(http.MethodPut)
	router.HandleFunc("/align", h.AutoAlign).Methods(http.MethodPost)

	// Derived data
	router.HandleFunc("/combined", h.GetCombined).Methods(http.MethodGet)
	router.HandleFunc("/scores", h.GetScores).Methods(http.MethodGet)

	// Anomalies
	router.HandleFunc("/scan", h.Scan).Methods(http.MethodPost)
	router.HandleFunc("/audit", h.VarianceAudit).Methods(http.MethodPost)
	router.HandleFunc("/anomalies", h.ListAnomalies).Methods(http.MethodGet)
	router.HandleFunc("/anomalies/{id}/report", h.Report).Methods(http.MethodPost)
	router.HandleFunc("/anomalies/{id}/archive", h.ArchiveReport).Methods(http.MethodPost)
	router.HandleFunc("/reports", h.ListReports).Methods(http.MethodGet)

	// Session
	router.HandleFunc("/session/save", h.SaveSession).Methods(http.MethodPost)
	router.HandleFunc("/session/restore", h.RestoreSession).Methods(http.MethodPost)

	return router
}

// loggingMiddleware logs all requests except for the metrics scrape
func (c *Controller) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		if r.URL.Path != "/metrics" {
			c.logger.Infof("%s %s %s %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
		}
	})
}

// corsMiddleware adds CORS headers
func (c *Controller) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
