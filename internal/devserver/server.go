package devserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Config describes the single site a devserver hosts.
type Config struct {
	BindAddress string
	Port        int
	Site        string
	APIKey      string
	// Username and Password are accepted by the key endpoint.
	Username string
	Password string
	Debug    bool
}

// Server is a local stand-in for the NeoCities API. The API lives under
// /api/ and published files are served under /site/.
type Server struct {
	config  Config
	handler *Handler
	logger  *logrus.Logger
	router  *gin.Engine
	srv     *http.Server
}

// NewServer creates a new devserver storing site files in fs
func NewServer(cfg Config, fs afero.Fs, logger *logrus.Logger) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	})

	handler := NewHandler(cfg, NewStore(fs), logger)

	api := router.Group("/api")
	api.GET("/key", handler.Key)

	authed := api.Group("", handler.RequireKey)
	authed.GET("/info", handler.Info)
	authed.GET("/list", handler.List)
	authed.POST("/upload", handler.Upload)
	authed.POST("/delete", handler.Delete)

	router.GET("/site/*filepath", handler.ServeFile)

	return &Server{
		config:  cfg,
		handler: handler,
		logger:  logger,
		router:  router,
	}
}

// Start starts the devserver with a background context.
func (s *Server) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext starts the devserver and shuts down gracefully when the context is canceled.
func (s *Server) StartWithContext(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)
	s.logger.Infof("Starting devserver for %s at http://%s/api/", s.config.Site, addr)

	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// GetRouter returns the underlying gin router (useful for testing)
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
