// Command swarmroute runs the handoff routing service.
//
// Usage:
//
//	swarmroute serve                       # start the HTTP API
//	swarmroute serve --config config.yaml  # with a config file
//	swarmroute route "How do I ...?"       # print the routing decision
//	swarmroute version                     # show version information
//	swarmroute health                      # check a running server
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/swarmroute/swarmroute"
	"github.com/swarmroute/swarmroute/config"
	"github.com/swarmroute/swarmroute/directory"
	"github.com/swarmroute/swarmroute/internal/telemetry"
	"github.com/swarmroute/swarmroute/orchestrator"
)

// Version information, injected at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "route":
		runRoute(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting swarmroute",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	server, err := NewServer(cfg, logger, otelProviders)
	if err != nil {
		logger.Fatal("failed to build server", zap.Error(err))
	}
	if err := server.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	server.WaitForShutdown()

	logger.Info("swarmroute stopped")
}

// runRoute classifies one query from the command line and prints the
// decision as JSON. No session is created; routing alone is pure.
func runRoute(args []string) {
	fs := flag.NewFlagSet("route", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "route: missing query argument")
		os.Exit(1)
	}
	query := strings.Join(fs.Args(), " ")

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	dir, err := buildDirectory(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load specialist directory: %v\n", err)
		os.Exit(1)
	}

	noInvoker := orchestrator.InvokerFunc(func(_ context.Context, _ string, _ map[string]any) (string, error) {
		return "", fmt.Errorf("no invoker configured")
	})
	engine, err := swarmroute.New(dir, noInvoker,
		swarmroute.WithConfig(cfg),
		swarmroute.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	decision := engine.Route(query)
	out, _ := json.MarshalIndent(decision, "", "  ")
	fmt.Println(string(out))
}

func runHealthCheck(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	fs.Parse(args)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/healthz")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("OK")
}

func loadConfig(configPath string) *config.Config {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// buildDirectory loads the file-backed directory when a path is
// configured, otherwise an in-memory directory holding only the fallback
// specialist.
func buildDirectory(cfg *config.Config, logger *zap.Logger) (directory.Directory, error) {
	if cfg.Directory.Path != "" {
		return directory.NewFileDirectory(cfg.Directory.Path, logger)
	}
	mem := directory.NewMemoryDirectory(logger)
	mem.Register(directory.Descriptor{
		ID:              cfg.Routing.FallbackSpecialist,
		SupportsHandoff: true,
	})
	return mem, nil
}

func printVersion() {
	fmt.Printf("swarmroute %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`swarmroute - multi-specialist handoff router

Usage:
  swarmroute <command> [options]

Commands:
  serve     Start the routing server
  route     Print the routing decision for a query
  version   Show version information
  health    Check server health
  help      Show this help message

Options for 'serve' and 'route':
  --config <path>   Path to configuration file (YAML)

Examples:
  swarmroute serve
  swarmroute serve --config /etc/swarmroute/config.yaml
  swarmroute route "How do I configure SPF records?"
  swarmroute health --addr http://localhost:8080
  swarmroute version`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputPaths,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
