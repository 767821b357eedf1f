package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"ngm-go/internal/config"
	"ngm-go/internal/controller"
	"ngm-go/internal/handler"
	"ngm-go/internal/service/ngram"
	"ngm-go/pkg/mcp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	var configPath = flag.String("config", "", "Path to configuration file")
	var workDir = flag.String("workdir", "", "Working directory to store files")
	var port = flag.Int("port", 0, "Server port")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatal("Failed to load configuration:", err)
		}
		cfg = loaded
	}

	if *workDir != "" {
		cfg.App.WorkDir = *workDir
	}
	if *port != 0 {
		cfg.App.Port = *port
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully", zap.Any("config", cfg))

	ngramService, err := ngram.NewNGramService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize N-gram service", zap.Error(err))
	}
	logger.Info("N-gram service initialized successfully",
		zap.String("model_dir", cfg.ModelDir()),
		zap.Int("default_threads", ngramService.DefaultThreads()))

	var mcpServer *mcp.NgramServer
	if cfg.Mcp.Enabled {
		mcpServer = mcp.NewNgramServer(ngramService, cfg, logger)
	} else {
		logger.Info("MCP server disabled")
	}

	modelController := controller.NewModelController(ngramService, logger)
	router := handler.SetupRouter(modelController, mcpServer, logger)

	logger.Info("Starting server", zap.Int("port", cfg.App.Port))
	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.App.Port), router); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	cfgZap := zap.NewProductionConfig()
	cfgZap.Level.SetLevel(level)
	cfgZap.OutputPaths = cfg.OutputPaths
	return cfgZap.Build()
}
