package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"gorm.io/gorm"

	"github.com/dnsscience/telemetry/api"
	"github.com/dnsscience/telemetry/api/handlers"
	"github.com/dnsscience/telemetry/config"
	"github.com/dnsscience/telemetry/internal/cron"
)

type Server struct {
	*Runtime
	httpServer  *http.Server
	router      *gin.Engine
	cronManager *cron.CronManager
}

func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	rt, err := NewRuntime(cfg, db)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	k8s := cron.NewKubernetesClient(cfg.CronConfig, rt.Log)

	return &Server{
		Runtime:     rt,
		router:      router,
		cronManager: cron.NewCronManager(cfg, rt.Log, k8s, rt.Services.StatsPopulator),
		httpServer: &http.Server{
			Addr:              ":" + cfg.AppConfig.APIPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *Server) Initialize() {
	svcs := s.Services
	api.RegisterRoutes(s.router, handlers.Services{
		Stats:       svcs.StatsGateway,
		Reputation:  svcs.Aggregator,
		Geolocation: svcs.Geolocator,
		Security:    svcs.SecurityScore,
	}, s.Config.AppConfig.APIKey, s.Log)

	if s.Config.AppConfig.APIKey == "" {
		s.Log.Warn("API_KEY not set, /v1 endpoints will refuse every request")
	}
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		s.Log.Errorf("Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	s.Initialize()

	s.wrapGoroutine("cron_manager", func() {
		if err := s.cronManager.Start(); err != nil {
			s.Log.Errorf("Cron manager error: %v", err)
		}
	})

	go s.wrapGoroutine("http_server", func() {
		s.Log.Infof("Starting HTTP server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Log.Errorf("HTTP server error: %v", err)
		}
	})
	s.Log.Info("Telemetry API is now running. Press Ctrl+C to exit.")

	return s.waitForShutdown()
}

func (s *Server) waitForShutdown() error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	s.Log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.Log.Errorf("HTTP server shutdown error: %v", err)
	} else {
		s.Log.Info("HTTP server shut down successfully")
	}

	stopDone := make(chan struct{})
	go s.wrapGoroutine("cron_shutdown", func() {
		defer close(stopDone)
		s.cronManager.Stop()
	})

	select {
	case <-stopDone:
		s.Log.Info("Cron manager stopped gracefully")
	case <-time.After(10 * time.Second):
		s.Log.Warn("Cron manager stop timed out")
	}

	s.Close()
	return nil
}
