// Command pointcloudkit-server runs the registration gRPC service and its
// REST gateway side by side, grounded on
// therealutkarshpriyadarshi-vector/cmd/server's flag parsing, banner/startup
// printouts, and signal-driven graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	grpcserver "github.com/arjun-mehta/pointcloudkit/pkg/api/grpc"
	"github.com/arjun-mehta/pointcloudkit/pkg/api/rest"
	"github.com/arjun-mehta/pointcloudkit/pkg/api/rest/middleware"
	"github.com/arjun-mehta/pointcloudkit/pkg/config"
	"github.com/arjun-mehta/pointcloudkit/pkg/observability"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	var (
		showVersion  = flag.Bool("version", false, "show version and exit")
		showHelp     = flag.Bool("help", false, "show help and exit")
		configFile   = flag.String("config", "", "path to YAML configuration file")
		host         = flag.String("host", "", "server host (overrides config/env)")
		port         = flag.Int("port", 0, "gRPC server port (overrides config/env)")
		restEnabled  = flag.Bool("rest", true, "serve the REST gateway alongside gRPC")
		restPort     = flag.Int("rest-port", 0, "REST gateway port (default: grpc port + 1)")
		jwtSecretEnv = flag.String("jwt-secret-env", "POINTCLOUD_JWT_SECRET", "environment variable holding the REST bearer-token signing secret")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("pointcloudkit-server v%s (commit: %s)\n", version, commit)
		os.Exit(0)
	}
	if *showHelp {
		showUsage()
		os.Exit(0)
	}

	printBanner()

	cfg := loadConfig(*configFile)
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout)
	observability.SetGlobalLogger(logger)
	metrics := observability.NewMetrics()

	log.Println("initializing registration server...")
	grpcServer, err := grpcserver.NewServer(cfg, logger, metrics)
	if err != nil {
		log.Fatalf("failed to create gRPC server: %v", err)
	}

	printStartupInfo(cfg, *restEnabled, *restPort)

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("starting gRPC server...")
		if err := grpcServer.Start(); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	var restServer *rest.Server
	if *restEnabled {
		effectiveRESTPort := *restPort
		if effectiveRESTPort == 0 {
			effectiveRESTPort = cfg.Server.Port + 1
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			// Give the gRPC listener a moment to come up before the REST
			// gateway dials it.
			time.Sleep(500 * time.Millisecond)

			restConfig := rest.Config{
				Host:        cfg.Server.Host,
				Port:        effectiveRESTPort,
				GRPCAddress: cfg.Server.Address(),
				CORSEnabled: true,
				CORSOrigins: []string{"*"},
				Auth: middleware.AuthConfig{
					Enabled:     cfg.Server.RequireAuth,
					JWTSecret:   os.Getenv(*jwtSecretEnv),
					PublicPaths: []string{"/v1/health"},
				},
				RateLimit: middleware.RateLimitConfig{
					Enabled:        cfg.Server.RateLimitRPS > 0,
					RequestsPerSec: cfg.Server.RateLimitRPS,
					Burst:          int(cfg.Server.RateLimitRPS * 2),
				},
			}

			var err error
			restServer, err = rest.NewServer(restConfig)
			if err != nil {
				errChan <- fmt.Errorf("failed to create REST server: %w", err)
				return
			}

			log.Println("starting REST API gateway...")
			if err := restServer.Start(); err != nil {
				errChan <- fmt.Errorf("REST server error: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	log.Println("servers ready. Press Ctrl+C to stop.")
	select {
	case sig := <-sigChan:
		log.Printf("received signal: %v", sig)
	case err := <-errChan:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if restServer != nil {
		if err := restServer.Stop(ctx); err != nil {
			log.Printf("error stopping REST server: %v", err)
		}
	}
	if err := grpcServer.Stop(); err != nil {
		log.Printf("error stopping gRPC server: %v", err)
	}

	wg.Wait()
	log.Println("servers stopped. goodbye!")
}

func loadConfig(configFile string) *config.Config {
	if configFile != "" {
		cfg, err := config.LoadFromFile(configFile)
		if err != nil {
			log.Fatalf("loading config file %s: %v", configFile, err)
		}
		return cfg
	}
	return config.LoadFromEnv()
}

func printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║   pointcloudkit — point cloud registration service       ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
	fmt.Printf("Version: %s (commit: %s)\n\n", version, commit)
}

func printStartupInfo(cfg *config.Config, restEnabled bool, restPort int) {
	if restPort == 0 {
		restPort = cfg.Server.Port + 1
	}
	fmt.Println("\n╔════════════════════════════════════════════════════════╗")
	fmt.Println("║            gRPC Server Configuration                   ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Address:          %-35s ║\n", cfg.Server.Address())
	fmt.Printf("║ TLS Enabled:      %-35v ║\n", cfg.Server.EnableTLS)
	fmt.Printf("║ Max Connections:  %-35d ║\n", cfg.Server.MaxConnections)
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║            REST Gateway Configuration                  ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Enabled:          %-35v ║\n", restEnabled)
	if restEnabled {
		fmt.Printf("║ Address:          %-35s ║\n", fmt.Sprintf("%s:%d", cfg.Server.Host, restPort))
		fmt.Printf("║ Auth Required:    %-35v ║\n", cfg.Server.RequireAuth)
		fmt.Printf("║ Rate Limit:       %-35s ║\n", fmt.Sprintf("%.1f req/s", cfg.Server.RateLimitRPS))
	}
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║            Pipeline Configuration                      ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Keypoint Detector: %-34s ║\n", valueOr(cfg.Pipeline.KeypointDetector, "(none)"))
	fmt.Printf("║ Descriptor Kind:   %-34s ║\n", cfg.Pipeline.DescriptorKind)
	fmt.Printf("║ Coarse Method:     %-34s ║\n", valueOr(cfg.Pipeline.CoarseMethod, "(skip)"))
	fmt.Printf("║ Fine Method:       %-34s ║\n", cfg.Pipeline.FineMethod)
	fmt.Println("╚════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func showUsage() {
	fmt.Println("pointcloudkit-server - point cloud registration service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pointcloudkit-server [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -help               Show this help message")
	fmt.Println("  -version            Show version information")
	fmt.Println("  -config PATH        Path to a YAML configuration file")
	fmt.Println("  -host HOST          Server host (default: 0.0.0.0)")
	fmt.Println("  -port PORT          gRPC server port (default: 50151)")
	fmt.Println("  -rest               Serve the REST gateway alongside gRPC (default: true)")
	fmt.Println("  -rest-port PORT     REST gateway port (default: grpc port + 1)")
	fmt.Println("  -jwt-secret-env VAR Environment variable holding the REST JWT signing secret")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  POINTCLOUD_HOST                 Server host")
	fmt.Println("  POINTCLOUD_PORT                 Server port")
	fmt.Println("  POINTCLOUD_MAX_CONNECTIONS      Max concurrent connections")
	fmt.Println("  POINTCLOUD_REQUEST_TIMEOUT      Request timeout (e.g., 30s)")
	fmt.Println("  POINTCLOUD_ENABLE_TLS           Enable TLS (true/false)")
	fmt.Println("  POINTCLOUD_TLS_CERT             TLS certificate file")
	fmt.Println("  POINTCLOUD_TLS_KEY              TLS key file")
	fmt.Println("  POINTCLOUD_REQUIRE_AUTH          Require bearer-token auth on REST")
	fmt.Println("  POINTCLOUD_KEYPOINT_DETECTOR    Keypoint detector name")
	fmt.Println("  POINTCLOUD_DESCRIPTOR_KIND      Descriptor kind")
	fmt.Println("  POINTCLOUD_COARSE_METHOD        Coarse registration method")
	fmt.Println("  POINTCLOUD_FINE_METHOD          Fine registration method")
	fmt.Println("  POINTCLOUD_WORKERS              Pipeline worker count")
	fmt.Println("  POINTCLOUD_LOG_LEVEL            Log level (debug/info/warn/error)")
	fmt.Println()
}
