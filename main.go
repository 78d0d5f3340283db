package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"exointel/history"
	qhttp "exointel/http"
	"exointel/logging"
	"exointel/ml"
	"exointel/monitoring"
)

// Config is the service configuration loaded from config.yaml.
type Config struct {
	Http struct {
		Port           int      `yaml:"port"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`
	Models struct {
		Dir       string `yaml:"dir"`
		CacheSize int    `yaml:"cache_size"`
		Watch     bool   `yaml:"watch"`
	} `yaml:"models"`
	History struct {
		Backend string `yaml:"backend"` // memory or sqlite
		Path    string `yaml:"path"`
	} `yaml:"history"`
	Log logging.Config `yaml:"log"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "config file path")
	flag.Parse()

	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(config.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	store, err := buildStore(config)
	if err != nil {
		logger.Fatal("failed to initialize history store", zap.Error(err))
	}
	defer store.Close()

	registry := ml.NewRegistry(config.Models.Dir, config.Models.CacheSize, logger)
	registry.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.Models.Watch {
		go func() {
			if err := ml.WatchArtifacts(ctx, registry, logger); err != nil {
				logger.Warn("artifact watcher stopped", zap.Error(err))
			}
		}()
	}

	feed := monitoring.NewFeed(logger)
	go feed.Run(ctx)

	serverConfig := qhttp.DefaultServerConfig()
	if config.Http.Port > 0 {
		serverConfig.Port = config.Http.Port
	}
	if config.Http.TimeoutSeconds > 0 {
		serverConfig.Timeout = time.Duration(config.Http.TimeoutSeconds) * time.Second
	}
	if len(config.Http.AllowedOrigins) > 0 {
		serverConfig.AllowedOrigins = config.Http.AllowedOrigins
	}

	api := &qhttp.API{
		Registry:  registry,
		Store:     store,
		Publisher: feed,
		Feed:      feed,
		Logger:    logger,
	}

	server := qhttp.NewServer(serverConfig, api, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	cancel()
	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}

	logger.Info("exiting")
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func buildStore(config *Config) (history.Store, error) {
	if config.History.Backend == "sqlite" {
		path := config.History.Path
		if path == "" {
			path = "./data/predictions.db"
		}
		return history.NewSQLiteStore(path)
	}
	return history.NewMemoryStore(), nil
}
