// Package rest exposes the registration gRPC service over plain JSON HTTP,
// mirroring therealutkarshpriyadarshi-vector/pkg/api/rest's gRPC-gateway
// pattern: a thin HTTP handler layer that dials the gRPC service as its own
// client and forwards requests.
package rest

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	pb "github.com/arjun-mehta/pointcloudkit/pkg/api/grpc/proto"
	"github.com/arjun-mehta/pointcloudkit/pkg/api/rest/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config holds the REST front end's configuration.
type Config struct {
	Host        string
	Port        int
	GRPCAddress string
	CORSEnabled bool
	CORSOrigins []string
	Auth        middleware.AuthConfig
	RateLimit   middleware.RateLimitConfig
}

// Server is the REST API server.
type Server struct {
	config     Config
	handler    *Handler
	httpServer *http.Server
	grpcConn   *grpc.ClientConn
	mux        *http.ServeMux
}

// NewServer dials config.GRPCAddress and wires up the REST routes on top
// of it.
func NewServer(cfg Config) (*Server, error) {
	conn, err := grpc.NewClient(
		cfg.GRPCAddress,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(pb.JSONCodec{}.Name())),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to gRPC server: %w", err)
	}

	s := &Server{
		config:   cfg,
		handler:  NewHandler(pb.NewRegistrationServiceClient(conn)),
		grpcConn: conn,
		mux:      http.NewServeMux(),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.withMiddleware(s.mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/v1/health", s.handler.HealthCheck)
	s.mux.HandleFunc("/v1/align", s.handler.Align)
}

func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	handler = loggingMiddleware(handler)
	if s.config.CORSEnabled {
		handler = corsMiddleware(s.config.CORSOrigins)(handler)
	}
	rateLimiter := middleware.NewRateLimiter(s.config.RateLimit)
	handler = middleware.RateLimitMiddleware(rateLimiter)(handler)
	handler = middleware.AuthMiddleware(s.config.Auth)(handler)
	return handler
}

// Start serves HTTP until Stop is called or an unrecoverable error occurs.
func (s *Server) Start() error {
	log.Printf("starting REST API server on %s:%d", s.config.Host, s.config.Port)
	log.Printf("proxying to registration gRPC server at %s", s.config.GRPCAddress)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the HTTP server down and closes its gRPC
// connection.
func (s *Server) Stop(ctx context.Context) error {
	log.Println("shutting down REST API server")
	if s.grpcConn != nil {
		if err := s.grpcConn.Close(); err != nil {
			log.Printf("error closing gRPC connection: %v", err)
		}
	}
	return s.httpServer.Shutdown(ctx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Printf("%s %s %d %v", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				allowed = true
				origin = "*"
			} else {
				for _, o := range allowedOrigins {
					if o == origin {
						allowed = true
						break
					}
				}
			}
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
