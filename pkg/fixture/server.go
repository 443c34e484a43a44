// Package fixture serves the page guards are exercised against: one link that
// triggers no request, one that sends an XMLHttpRequest, and one that loads a
// document.
package fixture

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odvcencio/reqguard/pkg/logging"
	"github.com/odvcencio/reqguard/pkg/observability"
	"github.com/odvcencio/reqguard/pkg/script"
)

//go:embed templates/page.html
var templates embed.FS

var pageTemplate = template.Must(template.ParseFS(templates, "templates/page.html"))

// Server is the fixture HTTP server.
type Server struct {
	logger *logging.Logger
	router *chi.Mux

	pages atomic.Int64
	ajax  atomic.Int64

	httpServer *http.Server
	listener   net.Listener
}

// NewServer builds the fixture router. A nil logger is allowed.
func NewServer(logger *logging.Logger) *Server {
	s := &Server{logger: logger}

	router := chi.NewRouter()
	router.Use(s.noStoreMiddleware)
	router.Use(s.metricsMiddleware)
	router.Get("/", s.handlePage)
	router.Get("/ajax", s.handleAjax)
	router.Get("/scripts/{name}", s.handleScript)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	s.router = router
	return s
}

// Handler returns the fixture router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Counts returns how many pages and ajax requests were served.
func (s *Server) Counts() (pages, ajax int64) {
	return s.pages.Load(), s.ajax.Load()
}

// Listen binds addr. Use ":0" for an ephemeral port and URL for the result.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}
	return nil
}

// URL returns the base URL of a listening server.
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// Serve serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	if s.httpServer == nil {
		return errors.New("fixture: Listen must be called before Serve")
	}
	_ = s.logger.Info(logging.CategoryFixture, "fixture.listening", "serving fixture page", map[string]any{"url": s.URL()})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown fixture server: %w", err)
		}
		<-serverErr
		return nil
	}
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	reload, _ := strconv.Atoi(r.URL.Query().Get("reload"))
	if reload < 0 {
		reload = 0
	}
	s.pages.Add(1)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Reload int
		Next   int
	}{Reload: reload, Next: reload + 1}
	if err := pageTemplate.Execute(w, data); err != nil {
		_ = s.logger.Error(logging.CategoryFixture, "fixture.render_failed", err.Error(), nil)
	}
}

func (s *Server) handleAjax(w http.ResponseWriter, r *http.Request) {
	n := s.ajax.Add(1)
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"count":%d}`, n)
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	js, err := script.FromResource(chi.URLParam(r, "name"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	_, _ = w.Write([]byte(js.Source))
}

func (s *Server) noStoreMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("Cache-Control", "no-store")
		headers.Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware counts requests by route pattern once routing has resolved it.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		observability.FixtureRequests.WithLabelValues(route).Inc()
		_ = s.logger.Debug(logging.CategoryFixture, "fixture.request", r.URL.String(), map[string]any{"route": route})
	})
}
