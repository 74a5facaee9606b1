package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/avengersguard/guard/moderation"
	"github.com/avengersguard/guard/moderation/dispatch"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

const healthTimeout = 3 * time.Second

// collectors are registered globally, so the middleware is only built once per process
var metricsMiddleware = sync.OnceValue(func() echo.MiddlewareFunc {
	return echoprometheus.NewMiddleware("aguard")
})

// HTTP surface: liveness for the host, health with engine counters, and prometheus metrics.
type Server struct {
	logger *slog.Logger
	loop   *dispatch.Loop
	engine *moderation.Engine
	echo   *echo.Echo
	httpd  *http.Server
}

type HealthStatus struct {
	Status  string `json:"status"`
	Daemon  string `json:"daemon"`
	Version string `json:"version"`
	Message string `json:"msg,omitempty"`
	Rooms   int    `json:"rooms"`
	Flows   int    `json:"flows"`
}

func NewServer(logger *slog.Logger, loop *dispatch.Loop, eng *moderation.Engine, addr string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("aguard"))
	e.Use(metricsMiddleware())

	srv := &Server{
		logger: logger.With("system", "http"),
		loop:   loop,
		engine: eng,
		echo:   e,
		httpd: &http.Server{
			Addr:              addr,
			Handler:           e,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}

	e.GET("/", srv.HandleRoot)
	e.GET("/_health", srv.HandleHealthCheck)
	e.GET("/metrics", echoprometheus.NewHandler())
	return srv
}

// Serves until ctx ends, then shuts down gracefully.
func (srv *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		srv.logger.Info("starting HTTP server", "addr", srv.httpd.Addr)
		if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.httpd.Shutdown(shutdownCtx); err != nil {
		srv.logger.Error("failed to shut down HTTP server", "err", err)
		return err
	}
	srv.logger.Info("HTTP server shut down")
	return nil
}

func (srv *Server) HandleRoot(c echo.Context) error {
	return c.String(http.StatusOK, "AvengersGuard is running ✅")
}

// Engine state is only read on the control thread, so a wedged loop shows up as a failed check.
func (srv *Server) HandleHealthCheck(c echo.Context) error {
	st := HealthStatus{
		Status:  "ok",
		Daemon:  "aguard",
		Version: versioninfo.Short(),
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()
	err := srv.loop.Do(ctx, "health", func(context.Context) {
		st.Rooms = srv.engine.Rooms.Len()
		st.Flows = srv.engine.Flows.Len()
	})
	if err != nil {
		srv.logger.Warn("health check failed", "err", err)
		return c.JSON(http.StatusServiceUnavailable, HealthStatus{
			Status:  "error",
			Daemon:  "aguard",
			Version: st.Version,
			Message: "moderation engine not responding",
		})
	}
	return c.JSON(http.StatusOK, st)
}
