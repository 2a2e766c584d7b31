// Package httpserver exposes a Node's RPC surface as JSON over HTTP,
// built on labstack/echo with recover, request-id and CORS middleware,
// plus optional OTel tracing.
package httpserver

import (
	"context"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"chorddht/internal/logger"
	"chorddht/internal/node"
	"chorddht/internal/telemetry/lookuptrace"
)

// Server wraps an echo.Echo hosting a single Node's RPC surface.
type Server struct {
	echo     *echo.Echo
	listener net.Listener
	lgr      logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger injects a custom logger into the Server.
func WithLogger(lgr logger.Logger) Option {
	return func(s *Server) { s.lgr = lgr }
}

// New builds a Server bound to lis, routing the JSON RPC surface to n.
// When tracing is enabled, wrap the returned *Server.Handler() with
// otelhttp.NewHandler before passing it to http.Serve (done in cmd/node).
func New(lis net.Listener, n *node.Node, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(lookuptrace.Middleware())

	s := &Server{echo: e, listener: lis, lgr: logger.NopLogger{}}
	for _, opt := range opts {
		opt(s)
	}

	e.Use(requestLogger(s.lgr))
	e.HTTPErrorHandler = jsonErrorHandler(s.lgr)

	h := &rpcHandler{node: n, lgr: s.lgr}
	h.registerRoutes(e)

	return s
}

// Handler exposes the underlying http.Handler, e.g. to wrap with
// otelhttp.NewHandler before serving.
func (s *Server) Handler() http.Handler { return s.echo }

// Serve blocks serving HTTP on the server's listener, optionally through a
// tracing-wrapped handler (see WrapTracing, used by cmd/node).
func (s *Server) Serve(handler http.Handler) error {
	if handler == nil {
		handler = s.echo
	}
	s.echo.Server.Handler = handler
	return s.echo.Server.Serve(s.listener)
}

// Shutdown gracefully stops the underlying echo instance.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// WrapTracing wraps handler with otelhttp server instrumentation under the
// given operation name.
func WrapTracing(handler http.Handler, operation string) http.Handler {
	return otelhttp.NewHandler(handler, operation)
}
