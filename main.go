package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hamzak-27/curestock-app/internal/api"
	"github.com/hamzak-27/curestock-app/internal/billing"
	"github.com/hamzak-27/curestock-app/internal/config"
	"github.com/hamzak-27/curestock-app/internal/database"
	"github.com/hamzak-27/curestock-app/internal/migrations"
	"github.com/hamzak-27/curestock-app/internal/seed"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		logger.Fatal().Err(err).Msg("schema migration failed")
	}
	if cfg.SeedCSV != "" {
		seed.LoadCatalog(db, cfg.SeedCSV, logger)
	}

	renderer := billing.NewOpenAIRenderer(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, cfg.OpenAITimeout)
	generator := billing.NewGenerator(db, renderer, logger)
	handler := api.New(db, cfg.Secret, logger, generator)

	logger.Info().Str("port", cfg.HTTPPort).Msg("Curestock pharmacy server starting")
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
