// kqmld is the kqml agent daemon: it loads configuration, wires the
// transports to the dispatcher, and runs the subscription poller until
// terminated.
//
// Usage:
//
//	kqmld serve                      # start the agent
//	kqmld serve --config config.yaml # with a config file
//	kqmld version                    # show version information
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/agentwire/kqml/agent"
	"github.com/agentwire/kqml/config"
	"github.com/agentwire/kqml/internal/metrics"
	"github.com/agentwire/kqml/transport"
)

// Version information, set at build time.
var (
	Version   = "dev"
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
	case "version":
		fmt.Printf("kqmld %s (%s)\n", Version, GitCommit)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file (YAML)")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
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

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting kqmld",
		zap.String("version", Version),
		zap.String("agent", cfg.Agent.Name),
	)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, prometheus.DefaultRegisterer, logger)
	}

	a := agent.New(agent.Config{
		Name:         cfg.Agent.Name,
		Description:  cfg.Agent.Description,
		PollInterval: cfg.Poll.Interval.Std(),
	}, collector, logger)

	srv := transport.NewServer(&transport.Config{
		Addr:        cfg.Transport.Listen,
		AcceptRate:  cfg.Transport.AcceptRate,
		AcceptBurst: cfg.Transport.AcceptBurst,
		Logger:      logger,
	}, a)
	a.SetSender(srv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(ctx) })
	g.Go(func() error { return srv.Serve(ctx) })

	if cfg.Transport.WSListen != "" {
		ws := &http.Server{
			Addr:              cfg.Transport.WSListen,
			Handler:           transport.NewWSServer(a, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("websocket transport listening", zap.String("addr", cfg.Transport.WSListen))
			if err := ws.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return ws.Shutdown(shutdownCtx)
		})
	}

	if cfg.Metrics.Enabled {
		ms := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics listening", zap.String("addr", cfg.Metrics.Listen))
			if err := ms.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return ms.Shutdown(shutdownCtx)
		})
	}

	if cfg.Agent.Facilitator != "" {
		regCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		host, _ := os.Hostname()
		if err := transport.Register(regCtx, cfg.Agent.Facilitator, cfg.Agent.Name, host); err != nil {
			logger.Warn("facilitator registration failed", zap.Error(err))
		}
		cancel()
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("kqmld stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("kqmld stopped")
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

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func printUsage() {
	fmt.Println(`kqmld - KQML agent daemon

Usage:
  kqmld <command> [options]

Commands:
  serve     Start the agent
  version   Show version information
  help      Show this help message

Options for 'serve':
  --config <path>   Path to configuration file (YAML)

Examples:
  kqmld serve
  kqmld serve --config /etc/kqml/config.yaml
  kqmld version`)
}
