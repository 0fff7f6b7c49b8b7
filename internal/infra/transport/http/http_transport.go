package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkrupp/homecase-lending/internal/infra/logging"
	"github.com/mkrupp/homecase-lending/internal/svc/authsvc/authclient"
)

// HTTPTransportConfig contains configuration parameters for HTTP servers.
type HTTPTransportConfig struct {
	// ServerAddr is the network address to listen on
	ServerAddr string `env:"SERVER_ADDR" default:":8080"`
	// ReadHeaderTimeout bounds reading the request headers
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" default:"5s"`

	ReadTimeout     time.Duration `env:"READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" default:"5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`

	CORS CORSConfig `envPrefix:"CORS_"`
}

// HTTPTransport is implemented by every service transport. Routes are
// registered on a shared router so the services can run in one process.
type HTTPTransport interface {
	RegisterRoutes(r chi.Router)
}

// NewRouter builds the root router: CORS, then session resolution, then the
// routes of every transport.
func NewRouter(authClient authclient.AuthClient, cfg HTTPTransportConfig, transports ...HTTPTransport) http.Handler {
	log := logging.GetLogger("infra.transport.http.router")

	router := chi.NewRouter()
	router.Use(CORSMiddleware(cfg.CORS))
	router.Use(func(next http.Handler) http.Handler {
		return SessionMiddleware(next, authClient, log)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, ErrRouteNotFound)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, ErrMethodNotAllowed)
	})

	for _, transport := range transports {
		transport.RegisterRoutes(router)
	}

	return router
}

// ListenAndServe starts an HTTP server with the given handler and configuration.
// It sets up standard middleware for logging, tracing, and panic recovery.
// The server shuts down gracefully once ctx is cancelled.
func ListenAndServe(ctx context.Context, handler http.Handler, cfg HTTPTransportConfig) error {
	sock, err := net.Listen("tcp", cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	return Serve(ctx, sock, handler, cfg)
}

// Serve serves handler on sock until ctx is cancelled, then drains in-flight
// requests for at most cfg.ShutdownTimeout. Request contexts do not inherit the
// cancellation of ctx, so requests accepted before shutdown run to completion.
func Serve(ctx context.Context, sock net.Listener, handler http.Handler, cfg HTTPTransportConfig) error {
	log := logging.GetLogger("infra.transport.http")

	handler = RescueingMiddleware(handler, log)
	handler = LoggingMiddleware(handler, log)
	handler = TracingMiddleware(handler)

	baseCtx := context.WithoutCancel(ctx)

	//nolint:exhaustruct
	server := &http.Server{
		Handler:           handler,
		ErrorLog:          logging.GetLogLogger(log, logging.LevelError),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	log.InfoContext(ctx, "listening", "addr", sock.Addr().String())

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- server.Serve(sock)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	log.InfoContext(baseCtx, "shutting down", "timeout", cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(baseCtx, cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
