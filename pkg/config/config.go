package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/client-go/util/homedir"
)

// Config holds application configuration
type Config struct {
	// Cluster access
	Kubeconfig    string `yaml:"kubeconfig"`
	PrometheusURL string `yaml:"prometheus_url"`

	// Analysis
	MaxAPICalls     int           `yaml:"max_api_calls"`
	ContinueOnError bool          `yaml:"continue_on_error"`
	MetricsLookback time.Duration `yaml:"metrics_lookback"`
	CallTimeout     time.Duration `yaml:"call_timeout"`

	// Output
	OutputFormat string `yaml:"output_format"` // text, json, markdown
	Verbose      bool   `yaml:"verbose"`
}

// New creates a configuration from environment variables with defaults.
func New() *Config {
	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	}

	return &Config{
		Kubeconfig:      getEnv("KUBECONFIG", kubeconfig),
		PrometheusURL:   getEnv("PROMETHEUS_URL", ""),
		MaxAPICalls:     getEnvInt("MAX_API_CALLS", 50),
		ContinueOnError: getEnvBool("CONTINUE_ON_ERROR", true),
		MetricsLookback: 7 * 24 * time.Hour,
		CallTimeout:     30 * time.Second,
		OutputFormat:    "text",
		Verbose:         false,
	}
}

// LoadFile overlays settings from a YAML file onto the config.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.MaxAPICalls <= 0 {
		return fmt.Errorf("max API calls must be positive")
	}
	if c.MetricsLookback < time.Hour {
		return fmt.Errorf("metrics lookback must be at least 1 hour")
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive")
	}
	switch c.OutputFormat {
	case "text", "json", "markdown":
	default:
		return fmt.Errorf("output format must be text, json, or markdown")
	}
	return nil
}
