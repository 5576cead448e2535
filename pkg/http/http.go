package http

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"k8s.io/klog/v2"

	"github.com/lambdamechanic/scrapinghub-mcp/pkg/config"
	"github.com/lambdamechanic/scrapinghub-mcp/pkg/mcp"
)

const (
	healthEndpoint  = "/healthz"
	mcpEndpoint     = "/mcp"
	metricsEndpoint = "/metrics"

	shutdownTimeout = 10 * time.Second
)

// NewHandler returns the HTTP handler serving the MCP streamable HTTP transport, health
// and metrics endpoints.
func NewHandler(mcpServer *mcp.Server, serverConfig config.ServerConfig) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(mcpEndpoint, mcpServer.ServeHTTP())
	mux.Handle(metricsEndpoint, mcpServer.Metrics().Handler())
	mux.HandleFunc(healthEndpoint, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RequestMiddleware(CORSMiddleware(serverConfig.CORS)(mux))
}

func Serve(ctx context.Context, mcpServer *mcp.Server, serverConfig config.ServerConfig) error {
	httpServer := &http.Server{
		Addr:              ":" + serverConfig.Port,
		Handler:           NewHandler(mcpServer, serverConfig),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErr := make(chan error, 1)
	go func() {
		klog.V(0).Infof("Streamable HTTP server starting on port %s and path %s", serverConfig.Port, mcpEndpoint)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		klog.V(0).Infof("Received signal %v, initiating graceful shutdown", sig)
		cancel()
	case <-ctx.Done():
		klog.V(0).Infof("Context cancelled, initiating graceful shutdown")
	case err := <-serverErr:
		klog.Errorf("HTTP server error: %v", err)
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	klog.V(0).Infof("Shutting down HTTP server gracefully...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		klog.Errorf("HTTP server shutdown error: %v", err)
		return err
	}

	klog.V(0).Infof("HTTP server shutdown complete")
	return nil
}

// RequestMiddleware logs every request at high verbosity.
func RequestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		klog.V(5).Infof("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}
