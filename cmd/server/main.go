package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"markettrend/server/config"
	"markettrend/server/internal/api"
	"markettrend/server/internal/database"
	"markettrend/server/internal/engine"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	aliases, err := config.LoadAliases(cfg.Analysis.ColumnAliasesFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load column aliases")
	}

	var db *database.Database
	if cfg.Database.Path != "" {
		logger.Infof("Using sale store at: %s", cfg.Database.Path)
		db, err = database.NewDatabase(cfg.Database.Path, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize database")
		}
		defer db.Close()

		logger.Info("Running database migrations...")
		if err := db.Migrate(); err != nil {
			logger.WithError(err).Fatal("Failed to run database migrations")
		}
	}

	eng := engine.New(aliases, cfg.Analysis.Workers, logger)
	handler := api.NewHandler(eng, db, cfg.AnalysisDefaults(), logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, handler, cfg.Server.CORSOrigins)

	logger.Infof("Starting server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
