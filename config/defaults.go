package config

import "time"

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Routing:   DefaultRoutingConfig(),
		Directory: DirectoryConfig{},
		Invoker:   DefaultInvokerConfig(),
		Session:   DefaultSessionConfig(),
		Analytics: AnalyticsConfig{Enabled: true, Type: "memory"},
		Auth:      AuthConfig{Enabled: false},
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultRoutingConfig returns the default routing weights and guard limits.
// The confidence values and complexity weights are empirically chosen; only
// monotonicity and the decision-table boundaries are contractual.
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		MaxHandoffs:        5,
		HandoffsEnabled:    true,
		FallbackSpecialist: "general_specialist",
		BaseComplexity:     3,
		ScaleThreshold:     100,
		WeightMultiDomain:  2,
		WeightMultiStep:    2,
		WeightScale:        2,
		WeightIntegration:  2,
		WeightMigration:    2,
		WeightCustom:       2,
		WeightUrgency:      1,
		ConfidenceSingle:   0.9,
		ConfidenceMedium:   0.81,
		ConfidenceComplex:  0.68,
		ConfidenceDecay:    0.05,
		ConfidenceFloor:    0.1,
	}
}

// DefaultInvokerConfig returns the default invocation boundary settings.
func DefaultInvokerConfig() InvokerConfig {
	return InvokerConfig{
		Timeout: 60 * time.Second,
	}
}

// DefaultSessionConfig returns the default session store configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Type:    SessionStoreMemory,
		BaseDir: "./data",
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "swarmroute:",
		},
		Database: DatabaseConfig{
			Driver:  "sqlite",
			Name:    "swarmroute.db",
			SSLMode: "disable",
		},
	}
}

// DefaultLogConfig returns the default log configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "swarmroute",
		SampleRate:   1.0,
	}
}
