// Package config provides unified configuration loading for SwarmRoute:
// defaults → YAML file → environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("SWARMROUTE").
//	    Load()
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete SwarmRoute configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Routing   RoutingConfig   `yaml:"routing" env:"ROUTING"`
	Directory DirectoryConfig `yaml:"directory" env:"DIRECTORY"`
	Invoker   InvokerConfig   `yaml:"invoker" env:"INVOKER"`
	Session   SessionConfig   `yaml:"session" env:"SESSION"`
	Analytics AnalyticsConfig `yaml:"analytics" env:"ANALYTICS"`
	Auth      AuthConfig      `yaml:"auth" env:"AUTH"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig configures the HTTP API and metrics listeners.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// RoutingConfig holds the classifier weights, selector confidence levels,
// and orchestrator guard settings. The numeric values are empirically chosen
// defaults; only their monotonicity and boundaries are contractual.
type RoutingConfig struct {
	// MaxHandoffs bounds the number of transitions per session.
	MaxHandoffs int `yaml:"max_handoffs" env:"MAX_HANDOFFS"`
	// HandoffsEnabled is read at session start and fixed for its lifetime.
	HandoffsEnabled bool `yaml:"handoffs_enabled" env:"HANDOFFS_ENABLED"`
	// FallbackSpecialist receives queries with no mapped domain.
	FallbackSpecialist string `yaml:"fallback_specialist" env:"FALLBACK_SPECIALIST"`

	// BaseComplexity is the starting complexity score before modifiers.
	BaseComplexity int `yaml:"base_complexity" env:"BASE_COMPLEXITY"`
	// ScaleThreshold is the quantity at or above which the scale modifier fires.
	ScaleThreshold int `yaml:"scale_threshold" env:"SCALE_THRESHOLD"`

	// Additive complexity weights. All non-negative.
	WeightMultiDomain int `yaml:"weight_multi_domain" env:"WEIGHT_MULTI_DOMAIN"`
	WeightMultiStep   int `yaml:"weight_multi_step" env:"WEIGHT_MULTI_STEP"`
	WeightScale       int `yaml:"weight_scale" env:"WEIGHT_SCALE"`
	WeightIntegration int `yaml:"weight_integration" env:"WEIGHT_INTEGRATION"`
	WeightMigration   int `yaml:"weight_migration" env:"WEIGHT_MIGRATION"`
	WeightCustom      int `yaml:"weight_custom" env:"WEIGHT_CUSTOM"`
	WeightUrgency     int `yaml:"weight_urgency" env:"WEIGHT_URGENCY"`

	// Confidence levels per decision-table row, plus per-domain decay for
	// the high-complexity row and a hard floor.
	ConfidenceSingle  float64 `yaml:"confidence_single" env:"CONFIDENCE_SINGLE"`
	ConfidenceMedium  float64 `yaml:"confidence_medium" env:"CONFIDENCE_MEDIUM"`
	ConfidenceComplex float64 `yaml:"confidence_complex" env:"CONFIDENCE_COMPLEX"`
	ConfidenceDecay   float64 `yaml:"confidence_decay" env:"CONFIDENCE_DECAY"`
	ConfidenceFloor   float64 `yaml:"confidence_floor" env:"CONFIDENCE_FLOOR"`
}

// DirectoryConfig configures specialist discovery.
type DirectoryConfig struct {
	// Path is a directory of YAML specialist definition files. Empty means
	// the in-memory directory is used and specialists are registered
	// programmatically.
	Path string `yaml:"path" env:"PATH"`
}

// InvokerConfig points at the external specialist execution service. The
// orchestrator POSTs {specialist_id, context} and reads back the
// specialist's output text. Empty endpoint disables execution endpoints;
// routing stays available.
type InvokerConfig struct {
	Endpoint string        `yaml:"endpoint" env:"ENDPOINT"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// SessionStoreType selects the session store backend.
type SessionStoreType string

const (
	SessionStoreMemory   SessionStoreType = "memory"
	SessionStoreFile     SessionStoreType = "file"
	SessionStoreRedis    SessionStoreType = "redis"
	SessionStoreDatabase SessionStoreType = "database"
)

// SessionConfig configures the session recorder backend.
type SessionConfig struct {
	Type     SessionStoreType `yaml:"type" env:"TYPE"`
	BaseDir  string           `yaml:"base_dir" env:"BASE_DIR"`
	Redis    RedisConfig      `yaml:"redis" env:"REDIS"`
	Database DatabaseConfig   `yaml:"database" env:"DATABASE"`
}

// RedisConfig configures the redis-backed session store.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB"`
	PoolSize  int    `yaml:"pool_size" env:"POOL_SIZE"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// DatabaseConfig configures the gorm-backed session and analytics stores.
type DatabaseConfig struct {
	// Driver: postgres, mysql, sqlite
	Driver   string `yaml:"driver" env:"DRIVER"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Name     string `yaml:"name" env:"NAME"`
	SSLMode  string `yaml:"ssl_mode" env:"SSL_MODE"`
}

// AnalyticsConfig configures the pattern analytics sink.
type AnalyticsConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Type: memory or database
	Type     string         `yaml:"type" env:"TYPE"`
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`
}

// AuthConfig secures the HTTP API with JWT bearer tokens. Disabled by
// default; when enabled, every /v1 route requires a valid token signed
// with either the HMAC secret (HS256) or the RSA public key (RS256, PEM).
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Secret    string `yaml:"secret" env:"SECRET"`
	PublicKey string `yaml:"public_key" env:"PUBLIC_KEY"`
	Issuer    string `yaml:"issuer" env:"ISSUER"`
	Audience  string `yaml:"audience" env:"AUDIENCE"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Routing.MaxHandoffs <= 0 {
		errs = append(errs, "max_handoffs must be positive")
	}
	if c.Routing.BaseComplexity < 1 || c.Routing.BaseComplexity > 10 {
		errs = append(errs, "base_complexity must be in [1,10]")
	}
	if c.Routing.FallbackSpecialist == "" {
		errs = append(errs, "fallback_specialist must be set")
	}
	if c.Routing.ConfidenceSingle < c.Routing.ConfidenceMedium ||
		c.Routing.ConfidenceMedium < c.Routing.ConfidenceComplex {
		errs = append(errs, "confidence levels must be non-increasing with complexity")
	}
	if c.Routing.ConfidenceFloor < 0 || c.Routing.ConfidenceFloor > c.Routing.ConfidenceComplex {
		errs = append(errs, "confidence_floor must be in [0, confidence_complex]")
	}
	for name, w := range map[string]int{
		"weight_multi_domain": c.Routing.WeightMultiDomain,
		"weight_multi_step":   c.Routing.WeightMultiStep,
		"weight_scale":        c.Routing.WeightScale,
		"weight_integration":  c.Routing.WeightIntegration,
		"weight_migration":    c.Routing.WeightMigration,
		"weight_custom":       c.Routing.WeightCustom,
		"weight_urgency":      c.Routing.WeightUrgency,
	} {
		if w < 0 {
			errs = append(errs, name+" must be non-negative")
		}
	}

	if c.Auth.Enabled && c.Auth.Secret == "" && c.Auth.PublicKey == "" {
		errs = append(errs, "auth enabled but neither secret nor public_key configured")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN returns the database connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
