package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mydayplanner/config"
	"mydayplanner/connection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := connection.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	gin.SetMode(gin.ReleaseMode)
	if err := connection.StartServer(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
