package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kilianp07/emsdispatch/config"
	"github.com/kilianp07/emsdispatch/infra/logger"
)

const shutdownTimeout = 5 * time.Second

// NewRouter builds the gin engine: /healthz is public, everything under /api
// goes through the bearer check when a token is configured.
func NewRouter(h *Handler, cfg config.APIConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware(cfg.CORSOrigins))
	router.GET("/healthz", h.healthCheck)
	api := router.Group("/api", BearerAuth(cfg.Token))
	h.RegisterRoutes(api)
	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
		}
	}
	if !c.AllowAllOrigins {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}

// Serve runs the API on cfg.Addr until ctx is canceled.
func Serve(ctx context.Context, h *Handler, cfg config.APIConfig) error {
	log := logger.New("api")
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(h, cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("api server shutdown: %v", err)
		}
		cancel()
	}()
	log.Infof("serving api on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
