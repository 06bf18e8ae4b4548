package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Registration  RegistrationConfig  `yaml:"registration"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds gRPC/REST server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`             // Server host (default: "0.0.0.0")
	Port            int           `yaml:"port"`              // Server port (default: 50151)
	MaxConnections  int           `yaml:"max_connections"`   // Max concurrent connections
	RequestTimeout  time.Duration `yaml:"request_timeout"`   // Request timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`  // Graceful shutdown timeout
	EnableTLS       bool          `yaml:"enable_tls"`        // Enable TLS
	CertFile        string        `yaml:"cert_file"`         // TLS certificate file
	KeyFile         string        `yaml:"key_file"`          // TLS key file
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`    // REST rate limit, requests/sec
	RequireAuth     bool          `yaml:"require_auth"`      // Require bearer-token auth on REST
}

// PipelineConfig holds end-to-end Align() stage configuration.
type PipelineConfig struct {
	VoxelLeafSize       float64 `yaml:"voxel_leaf_size"`       // pre-filter voxel-grid leaf size, 0 disables
	KeypointDetector    string  `yaml:"keypoint_detector"`     // "iss", "harris3d", "sift3d", ...; "" = no keypoint subsampling
	NormalNumNeighbors  int     `yaml:"normal_num_neighbors"`  // neighbours for normal estimation
	DescriptorKind      string  `yaml:"descriptor_kind"`       // "fpfh" (also used when empty), "pfh", "shot"
	CorrespondenceTopK  int     `yaml:"correspondence_top_k"`  // best-ranked correspondences kept in total; <= 0 keeps all
	CoarseMethod        string  `yaml:"coarse_method"`         // "ransac", "fourpcs", "super4pcs", "" = skip coarse
	FineMethod          string  `yaml:"fine_method"`           // "point_to_point", "point_to_plane", "generalized", "aa", "ndt"
	Workers             int     `yaml:"workers"`                // parallelism for the normal-estimation stage
}

// RegistrationConfig holds default parameters shared by the coarse/fine
// registration methods pkg/pipeline dispatches to.
type RegistrationConfig struct {
	MaxIterations             int     `yaml:"max_iterations"`
	TransformationEpsilon     float64 `yaml:"transformation_epsilon"`
	EuclideanFitnessEpsilon   float64 `yaml:"euclidean_fitness_epsilon"`
	MaxCorrespondenceDistance float64 `yaml:"max_correspondence_distance"`
	RANSACConfidence          float64 `yaml:"ransac_confidence"`
	RANSACInlierThreshold     float64 `yaml:"ransac_inlier_threshold"`
	Seed                      int64   `yaml:"seed"`
}

// ObservabilityConfig holds logging/metrics configuration.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`       // "debug", "info", "warn", "error"
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsPort    int    `yaml:"metrics_port"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            50151,
			MaxConnections:  1000,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			EnableTLS:       false,
			RateLimitRPS:    50,
			RequireAuth:     false,
		},
		Pipeline: PipelineConfig{
			VoxelLeafSize:      0.0,
			KeypointDetector:   "",
			NormalNumNeighbors: 20,
			DescriptorKind:     "fpfh",
			CorrespondenceTopK: 1,
			CoarseMethod:       "ransac",
			FineMethod:         "point_to_point",
			Workers:            4,
		},
		Registration: RegistrationConfig{
			MaxIterations:             50,
			TransformationEpsilon:     1e-6,
			EuclideanFitnessEpsilon:   1e-6,
			MaxCorrespondenceDistance: 1.0,
			RANSACConfidence:          0.99,
			RANSACInlierThreshold:     0.05,
			Seed:                      0,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			MetricsEnabled: true,
			MetricsPort:    9091,
		},
	}
}

// LoadFromEnv loads configuration from environment variables, layered
// on top of Default().
func LoadFromEnv() *Config {
	cfg := Default()

	if host := os.Getenv("POINTCLOUD_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("POINTCLOUD_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if maxConn := os.Getenv("POINTCLOUD_MAX_CONNECTIONS"); maxConn != "" {
		if mc, err := strconv.Atoi(maxConn); err == nil {
			cfg.Server.MaxConnections = mc
		}
	}
	if timeout := os.Getenv("POINTCLOUD_REQUEST_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			cfg.Server.RequestTimeout = t
		}
	}
	if enableTLS := os.Getenv("POINTCLOUD_ENABLE_TLS"); enableTLS == "true" {
		cfg.Server.EnableTLS = true
		cfg.Server.CertFile = os.Getenv("POINTCLOUD_TLS_CERT")
		cfg.Server.KeyFile = os.Getenv("POINTCLOUD_TLS_KEY")
	}
	if requireAuth := os.Getenv("POINTCLOUD_REQUIRE_AUTH"); requireAuth == "true" {
		cfg.Server.RequireAuth = true
	}

	if detector := os.Getenv("POINTCLOUD_KEYPOINT_DETECTOR"); detector != "" {
		cfg.Pipeline.KeypointDetector = detector
	}
	if desc := os.Getenv("POINTCLOUD_DESCRIPTOR_KIND"); desc != "" {
		cfg.Pipeline.DescriptorKind = desc
	}
	if coarse := os.Getenv("POINTCLOUD_COARSE_METHOD"); coarse != "" {
		cfg.Pipeline.CoarseMethod = coarse
	}
	if fine := os.Getenv("POINTCLOUD_FINE_METHOD"); fine != "" {
		cfg.Pipeline.FineMethod = fine
	}
	if workers := os.Getenv("POINTCLOUD_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			cfg.Pipeline.Workers = w
		}
	}

	if maxIter := os.Getenv("POINTCLOUD_MAX_ITERATIONS"); maxIter != "" {
		if m, err := strconv.Atoi(maxIter); err == nil {
			cfg.Registration.MaxIterations = m
		}
	}
	if seed := os.Getenv("POINTCLOUD_SEED"); seed != "" {
		if s, err := strconv.ParseInt(seed, 10, 64); err == nil {
			cfg.Registration.Seed = s
		}
	}

	if logLevel := os.Getenv("POINTCLOUD_LOG_LEVEL"); logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}
	if metricsEnabled := os.Getenv("POINTCLOUD_METRICS_ENABLED"); metricsEnabled == "false" {
		cfg.Observability.MetricsEnabled = false
	}

	return cfg
}

// LoadFromFile reads a YAML configuration file and overlays it on top of
// Default(), wiring up the teacher's own "// TODO: support loading from
// YAML/JSON config file" left in cmd/server/main.go.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.MaxConnections < 1 {
		return fmt.Errorf("invalid max connections: %d (must be > 0)", c.Server.MaxConnections)
	}
	if c.Server.EnableTLS {
		if c.Server.CertFile == "" || c.Server.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("invalid rate limit: %v (must be >= 0)", c.Server.RateLimitRPS)
	}

	if c.Pipeline.NormalNumNeighbors < 3 {
		return fmt.Errorf("invalid normal_num_neighbors: %d (must be >= 3)", c.Pipeline.NormalNumNeighbors)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("invalid workers: %d (must be > 0)", c.Pipeline.Workers)
	}

	if c.Registration.MaxIterations < 1 {
		return fmt.Errorf("invalid max_iterations: %d (must be > 0)", c.Registration.MaxIterations)
	}
	if c.Registration.RANSACConfidence <= 0 || c.Registration.RANSACConfidence >= 1 {
		return fmt.Errorf("invalid ransac_confidence: %v (must be in (0,1))", c.Registration.RANSACConfidence)
	}

	return nil
}

// Address returns the server address (host:port)
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
