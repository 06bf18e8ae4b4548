// Package grpc exposes pkg/pipeline's Align() over a gRPC service, mirroring
// therealutkarshpriyadarshi-vector/pkg/api/grpc's server lifecycle (TLS,
// keepalive, graceful shutdown, reflection) around registration instead of
// vector search.
package grpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	apiproto "github.com/arjun-mehta/pointcloudkit/pkg/api/grpc/proto"
	"github.com/arjun-mehta/pointcloudkit/pkg/config"
	"github.com/arjun-mehta/pointcloudkit/pkg/observability"
	"github.com/arjun-mehta/pointcloudkit/pkg/pipeline"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// Server is the gRPC front end over a pkg/pipeline.Pipeline.
type Server struct {
	cfg        *config.Config
	pipeline   *pipeline.Pipeline
	logger     *observability.Logger
	metrics    *observability.Metrics
	grpcServer *grpc.Server
	listener   net.Listener
	startTime  time.Time
	shutdownMu sync.Mutex
	isShutdown bool
}

// NewServer builds a Server from cfg, constructing its own Pipeline from
// cfg.Pipeline/cfg.Registration.
func NewServer(cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = observability.GetGlobalLogger()
	}
	return &Server{
		cfg:       cfg,
		pipeline:  pipeline.New(*cfg, logger, metrics),
		logger:    logger,
		metrics:   metrics,
		startTime: time.Now(),
	}, nil
}

// Start begins serving on cfg.Server's configured address in a goroutine.
func (s *Server) Start() error {
	var opts []grpc.ServerOption

	if s.cfg.Server.EnableTLS {
		cert, err := tls.LoadX509KeyPair(s.cfg.Server.CertFile, s.cfg.Server.KeyFile)
		if err != nil {
			return fmt.Errorf("loading TLS certificates: %w", err)
		}
		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
		s.logger.Info("TLS enabled")
	}

	opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{
		MaxConnectionIdle: 15 * time.Second,
		MaxConnectionAge:  30 * time.Second,
		Time:              5 * time.Second,
		Timeout:           1 * time.Second,
	}))
	opts = append(opts, grpc.MaxConcurrentStreams(uint32(s.cfg.Server.MaxConnections)))

	s.grpcServer = grpc.NewServer(opts...)
	apiproto.RegisterRegistrationServiceServer(s.grpcServer, s)
	reflection.Register(s.grpcServer)

	addr := s.cfg.Server.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = listener
	s.logger.WithStage("grpc").Info(fmt.Sprintf("registration gRPC server listening on %s", addr))

	go func() {
		if err := s.grpcServer.Serve(listener); err != nil {
			s.logger.Errorf("gRPC server error: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down, falling back to a hard stop once
// cfg.Server.ShutdownTimeout elapses.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	if s.isShutdown {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info("gRPC server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("shutdown timeout exceeded, forcing stop")
		s.grpcServer.Stop()
	}

	s.isShutdown = true
	return nil
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}
