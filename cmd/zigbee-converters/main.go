package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/niracler/zigbee-herdsman-converters/internal/coordinator"
	"github.com/niracler/zigbee-herdsman-converters/internal/devices"
	"github.com/niracler/zigbee-herdsman-converters/internal/ncp"
	"github.com/niracler/zigbee-herdsman-converters/internal/store"
	"github.com/niracler/zigbee-herdsman-converters/internal/web"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl"
	"github.com/niracler/zigbee-herdsman-converters/internal/zcl/clusters"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type Config struct {
	NCP struct {
		Broker      string        `yaml:"broker"`
		Username    string        `yaml:"username"`
		Password    string        `yaml:"password"`
		ClientID    string        `yaml:"client_id"`
		TopicPrefix string        `yaml:"topic_prefix"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"ncp"`
	Coordinator struct {
		Endpoint uint8 `yaml:"endpoint"`
		// ManualConfigure disables configuring devices when they register.
		ManualConfigure bool `yaml:"manual_configure"`
	} `yaml:"coordinator"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		ClientID    string `yaml:"client_id"`
		TopicPrefix string `yaml:"topic_prefix"`
		Discovery   bool   `yaml:"discovery"`
	} `yaml:"mqtt"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	ClustersDir   string `yaml:"clusters_dir"`
	ConvertersDir string `yaml:"converters_dir"`
}

func (c *Config) validate() error {
	if c.NCP.Broker == "" {
		return fmt.Errorf("ncp.broker is required")
	}
	if c.NCP.TopicPrefix == "" {
		return fmt.Errorf("ncp.topic_prefix is required")
	}
	if c.Coordinator.Endpoint == 0 || c.Coordinator.Endpoint > 240 {
		return fmt.Errorf("coordinator.endpoint must be 1-240, got %d", c.Coordinator.Endpoint)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("zigbee-converters starting", "version", version)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
	logger.Info("goodbye")
}

func run(cfg *Config, logger *slog.Logger) error {
	registry := zcl.NewRegistry(logger)
	clusters.RegisterAll(registry)
	n, err := devices.LoadClusterDir(cfg.ClustersDir, registry, logger)
	if err != nil {
		return fmt.Errorf("load cluster overlays: %w", err)
	}
	logger.Info("ZCL registry initialized", "clusters", len(registry.All()), "overlays", n)

	// External converters are no-op when built with the no_external tag.
	ext, err := initExternal(cfg, logger)
	if err != nil {
		return fmt.Errorf("load external converters: %w", err)
	}
	defer ext.Close()

	catalog, err := devices.NewCatalog(logger, append(devices.Builtin(), ext.Profiles...)...)
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return fmt.Errorf("validate catalog: %w", err)
	}

	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	backend, err := ncp.NewRemoteNCP(ncp.RemoteConfig{
		Broker:      cfg.NCP.Broker,
		Username:    cfg.NCP.Username,
		Password:    cfg.NCP.Password,
		ClientID:    cfg.NCP.ClientID,
		TopicPrefix: cfg.NCP.TopicPrefix,
		Timeout:     cfg.NCP.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect NCP: %w", err)
	}
	defer backend.Close()

	events := coordinator.NewEventBus(logger)
	coord := coordinator.New(backend, db, registry, catalog, events, coordinator.Config{
		Endpoint:        cfg.Coordinator.Endpoint,
		ConfigureOnJoin: !cfg.Coordinator.ManualConfigure,
	}, logger)

	webOpts := []web.ServerOption{
		web.WithCatalog(catalog),
		web.WithVersion(version),
	}
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webServer := web.NewServer(coord, logger, webOpts...)
	defer webServer.Stop()

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// MQTT bridge is no-op when built with the no_mqtt tag.
	mqtt := initMQTT(coord, cfg, logger)
	defer mqtt.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "zigbee-converters.db"
	}
	if cfg.NCP.TopicPrefix == "" {
		cfg.NCP.TopicPrefix = "zigbee-ncp"
	}
	if cfg.NCP.Timeout == 0 {
		cfg.NCP.Timeout = 10 * time.Second
	}
	if cfg.Coordinator.Endpoint == 0 {
		cfg.Coordinator.Endpoint = 1
	}
	if cfg.ClustersDir == "" {
		cfg.ClustersDir = "clusters"
	}
	if cfg.ConvertersDir == "" {
		cfg.ConvertersDir = "converters"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "zigbee2mqtt"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
