package main

import (
	"path/filepath"

	"go.uber.org/zap"

	"fraudsynth/internal/artifacts"
	"fraudsynth/internal/auth"
	"fraudsynth/internal/config"
	"fraudsynth/internal/inference"
	"fraudsynth/internal/metrics"
	"fraudsynth/internal/models"
	"fraudsynth/internal/server"
	"fraudsynth/internal/store"
	"fraudsynth/pkg/utils"
)

func main() {
	logger := utils.Logger()
	defer logger.Sync()

	cfg := config.Load()
	logger.Info("config loaded",
		zap.String("artifact_dir", cfg.ArtifactDir),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.Bool("database_configured", cfg.DatabaseURL != ""),
		zap.Bool("google_client_id_set", cfg.GoogleClientID != ""),
	)

	bundle, err := artifacts.Load(cfg.ArtifactDir)
	if err != nil {
		logger.Fatal("load artifact bundle", zap.Error(err))
	}

	model, err := models.Load(filepath.Join(cfg.ArtifactDir, artifacts.ModelFile), bundle.Metadata.ModelType)
	if err != nil {
		logger.Fatal("load model", zap.Error(err))
	}
	logger.Info("model loaded", zap.String("model", model.Name()))

	// Best-effort: regenerate curve/importance artifacts if missing. Never
	// blocks startup.
	metrics.EnsureCurveArtifacts(cfg.ArtifactDir, model, logger)

	var st store.Store
	if cfg.DatabaseURL == "" {
		logger.Info("no DATABASE_URL, persistence disabled")
		st = store.NewNoop()
	} else {
		st, err = store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("connect database", zap.Error(err))
		}
	}

	verifier, err := auth.NewGoogleVerifier(cfg.GoogleClientID)
	if err != nil {
		logger.Warn("google jwks unavailable, auth will reject all tokens", zap.Error(err))
		verifier = auth.Unavailable(err)
	}

	engine := inference.NewEngine(bundle, model, logger)
	if err := server.New(cfg, logger, engine, st, verifier).Run(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
