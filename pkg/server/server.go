package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/cellsim/pkg/config"
	"github.com/charlie0129/cellsim/pkg/session"
)

//go:embed templates/*.html static/*.js
var assets embed.FS

// Server serves the simulator UI and its JSON API. Each browser session gets
// its own cell store.
type Server struct {
	conf     config.Config
	sessions *session.Manager
	router   *gin.Engine
	now      func() time.Time
}

// New builds a server backed by conf.
func New(conf config.Config) *Server {
	s := &Server{
		conf: conf,
		now:  time.Now,
	}
	s.sessions = session.NewManager(func() session.Controls {
		return config.SessionDefaults(s.conf)
	}, s.sessionTTL())
	s.router = s.setupRoutes()
	return s
}

func (s *Server) sessionTTL() time.Duration {
	return time.Duration(s.conf.SessionTTLMinutes()) * time.Minute
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.SetHTMLTemplate(template.Must(template.New("").Funcs(templateFuncs).ParseFS(assets, "templates/*.html")))
	router.StaticFileFS("/static/app.js", "static/app.js", http.FS(assets))

	router.GET("/version", getVersion)

	ui := router.Group("/", s.withSession)
	ui.GET("/", s.getIndex)

	api := router.Group("/api", s.withSession)
	api.GET("/controls", s.getControls)
	api.PUT("/controls", s.setControls)
	api.POST("/controls/reseed", s.reseed)
	api.POST("/cells/generate", s.generate)
	api.POST("/cells/random", s.addRandom)
	api.DELETE("/cells", s.clearCells)
	api.GET("/view", s.getView)
	api.PUT("/view", s.putView)
	api.GET("/stats", s.getStats)
	api.GET("/charts/:name", s.getChart)
	api.GET("/export/:format", s.getExport)
	api.POST("/import", s.postImport)
	api.GET("/events", s.getEvents)
	api.DELETE("/session", s.endSession)

	cfg := router.Group("/api/config")
	cfg.GET("", s.getConfig)
	cfg.PUT("/max-count", s.setMaxCount)
	cfg.PUT("/default-count", s.setDefaultCount)
	cfg.PUT("/default-precision", s.setDefaultPrecision)
	cfg.PUT("/session-ttl", s.setSessionTTL)

	return router
}

// Reload re-reads the config file and applies what can change at runtime.
func (s *Server) Reload() error {
	if err := s.conf.Load(); err != nil {
		return err
	}
	s.sessions.SetTTL(s.sessionTTL())
	return nil
}

// Run loads the config, serves until SIGINT or SIGTERM, and reloads the
// config on SIGHUP. listen overrides the configured address when non-empty.
func Run(configPath string, listen string) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	gin.SetMode(gin.ReleaseMode)
	s := New(conf)

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := s.Reload()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
		}
	}()

	if listen == "" {
		listen = conf.Listen()
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	l, err := net.Listen("tcp", listen)
	if err != nil {
		logrus.Fatal(err)
	}

	go func() {
		logrus.Infof("http server listening on http://%s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("exiting")
	return nil
}
