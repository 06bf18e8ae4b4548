package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 50151 {
		t.Errorf("Expected port 50151, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("Expected request timeout 30s, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Pipeline.CoarseMethod != "ransac" {
		t.Errorf("Expected default coarse method ransac, got %s", cfg.Pipeline.CoarseMethod)
	}
	if cfg.Pipeline.FineMethod != "point_to_point" {
		t.Errorf("Expected default fine method point_to_point, got %s", cfg.Pipeline.FineMethod)
	}
	if cfg.Registration.MaxIterations != 50 {
		t.Errorf("Expected max iterations 50, got %d", cfg.Registration.MaxIterations)
	}
	if !cfg.Observability.MetricsEnabled {
		t.Error("Expected metrics enabled by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	envVars := []string{
		"POINTCLOUD_HOST", "POINTCLOUD_PORT", "POINTCLOUD_COARSE_METHOD",
		"POINTCLOUD_FINE_METHOD", "POINTCLOUD_MAX_ITERATIONS", "POINTCLOUD_SEED",
	}
	original := make(map[string]string)
	for _, key := range envVars {
		original[key] = os.Getenv(key)
	}
	defer func() {
		for key, value := range original {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	os.Setenv("POINTCLOUD_HOST", "127.0.0.1")
	os.Setenv("POINTCLOUD_PORT", "8080")
	os.Setenv("POINTCLOUD_COARSE_METHOD", "super4pcs")
	os.Setenv("POINTCLOUD_FINE_METHOD", "ndt")
	os.Setenv("POINTCLOUD_MAX_ITERATIONS", "100")
	os.Setenv("POINTCLOUD_SEED", "42")

	cfg := LoadFromEnv()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Pipeline.CoarseMethod != "super4pcs" {
		t.Errorf("Expected coarse method super4pcs, got %s", cfg.Pipeline.CoarseMethod)
	}
	if cfg.Pipeline.FineMethod != "ndt" {
		t.Errorf("Expected fine method ndt, got %s", cfg.Pipeline.FineMethod)
	}
	if cfg.Registration.MaxIterations != 100 {
		t.Errorf("Expected max iterations 100, got %d", cfg.Registration.MaxIterations)
	}
	if cfg.Registration.Seed != 42 {
		t.Errorf("Expected seed 42, got %d", cfg.Registration.Seed)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
server:
  host: 10.0.0.5
  port: 9999
pipeline:
  coarse_method: fourpcs
  fine_method: generalized
registration:
  max_iterations: 75
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Server.Host != "10.0.0.5" {
		t.Errorf("Expected host 10.0.0.5, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Pipeline.CoarseMethod != "fourpcs" {
		t.Errorf("Expected coarse method fourpcs, got %s", cfg.Pipeline.CoarseMethod)
	}
	if cfg.Registration.MaxIterations != 75 {
		t.Errorf("Expected max iterations 75, got %d", cfg.Registration.MaxIterations)
	}
	// Untouched fields should keep their defaults.
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Observability.LogLevel)
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"Valid default config", Default(), false},
		{"Invalid port (too low)", &Config{Server: ServerConfig{Port: 0}}, true},
		{"Invalid port (too high)", &Config{Server: ServerConfig{Port: 70000}}, true},
		{
			"Invalid normal_num_neighbors",
			&Config{Server: ServerConfig{Port: 50151}, Pipeline: PipelineConfig{NormalNumNeighbors: 1, Workers: 1}},
			true,
		},
		{
			"Invalid max_iterations",
			&Config{
				Server:       ServerConfig{Port: 50151},
				Pipeline:     PipelineConfig{NormalNumNeighbors: 10, Workers: 1},
				Registration: RegistrationConfig{MaxIterations: 0, RANSACConfidence: 0.5},
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{Host: "localhost", Port: 8080}
	if addr := cfg.Address(); addr != "localhost:8080" {
		t.Errorf("Expected address localhost:8080, got %s", addr)
	}
}
