package workerserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"google.golang.org/grpc"

	"food-router/internal/adapter/worker/workerpb"
	"food-router/internal/domain"
	"food-router/internal/infra/config"
	"food-router/internal/infra/middleware"
)

const shutdownTimeout = 5 * time.Second

// Server runs a worker's skills over HTTP, gRPC and MCP.
type Server struct {
	reg    *Registry
	cfg    config.WorkerServerConfig
	mcp    *server.MCPServer
	logger *slog.Logger
}

// New creates a Server. extra tools are only offered over MCP.
func New(reg *Registry, cfg config.WorkerServerConfig, logger *slog.Logger, extra ...server.ServerTool) *Server {
	return &Server{
		reg:    reg,
		cfg:    cfg,
		mcp:    NewMCPServer(reg, extra...),
		logger: logger,
	}
}

// Handler returns the HTTP surface: tasks, card, health and, when enabled,
// the streamable MCP endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+tasksPath, tasksHandler(s.reg))
	mux.HandleFunc("GET "+cardPath, cardHandler(s.reg))
	mux.HandleFunc("GET "+healthPath, healthHandler)
	if s.cfg.MCPEnabled {
		mux.Handle(mcpPath, server.NewStreamableHTTPServer(s.mcp))
	}
	return middleware.Chain(mux, middleware.RequestLogger(s.logger), middleware.SecurityHeaders)
}

// RegisterGRPC registers exec as the WorkerService on g.
func RegisterGRPC(g grpc.ServiceRegistrar, exec domain.Executor) {
	workerpb.RegisterWorkerServiceServer(g, &grpcService{exec: exec})
}

// Start serves HTTP and, when configured, gRPC until ctx is cancelled or a
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("worker http listen: %w", err)
	}
	httpSrv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 2)

	go func() {
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("worker http serve: %w", err)
		}
	}()
	s.logger.Info("worker http listening", "addr", httpLis.Addr().String(), "mcp", s.cfg.MCPEnabled)

	var grpcSrv *grpc.Server
	if s.cfg.GRPCAddr != "" {
		grpcLis, err := net.Listen("tcp", s.cfg.GRPCAddr)
		if err != nil {
			httpSrv.Close()
			return fmt.Errorf("worker grpc listen: %w", err)
		}
		grpcSrv = grpc.NewServer()
		RegisterGRPC(grpcSrv, s.reg)
		go func() {
			if err := grpcSrv.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("worker grpc serve: %w", err)
			}
		}()
		s.logger.Info("worker grpc listening", "addr", grpcLis.Addr().String())
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	s.logger.Info("worker stopped")
	return runErr
}

// ServeStdio speaks MCP on stdin/stdout until the peer disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}
