package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// StatusFunc returns the document served at /status.
type StatusFunc func() any

// StatusServer is the optional local HTTP surface: /health, /status, /metrics.
type StatusServer struct {
	addr    string
	router  *gin.Engine
	srv     *http.Server
	ln      net.Listener
	started time.Time
}

// unmatchedRoute labels requests that hit no registered route, so unknown
// paths cannot grow the metric label set.
const unmatchedRoute = "unmatched"

func NewStatusServer(addr string, status StatusFunc, corsOrigins []string) *StatusServer {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(accessLog())
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &StatusServer{
		addr:    addr,
		router:  r,
		started: time.Now(),
	}
	s.registerRoutes(status)
	return s
}

func (s *StatusServer) registerRoutes(status StatusFunc) {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).String(),
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		if status == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "status unavailable"})
			return
		}
		c.JSON(http.StatusOK, status())
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// accessLog records one metric sample and one debug line per request, keyed
// by route template.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		RecordHTTPRequest(c.Request.Method, route, status, elapsed)

		event := log.Debug()
		if status >= 500 {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("observability.StatusServer request")
	}
}

func (s *StatusServer) Handler() http.Handler {
	return s.router
}

// Start binds addr and serves in the background.
func (s *StatusServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Str("addr", s.addr).Msg("observability.StatusServer serve")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("observability.StatusServer listening")
	return nil
}

// Addr reports the bound address once started.
func (s *StatusServer) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{"http://127.0.0.1", "http://localhost"}
	}
	return out
}
