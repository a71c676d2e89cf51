package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/kolenyo2099/change-detection-tool/internal/api"
	"github.com/kolenyo2099/change-detection-tool/internal/config"
	"github.com/kolenyo2099/change-detection-tool/internal/core"
	"github.com/kolenyo2099/change-detection-tool/internal/domain/model"
	"github.com/kolenyo2099/change-detection-tool/internal/domain/repository"
	"github.com/kolenyo2099/change-detection-tool/internal/infrastructure/imagery"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Collaborators: imagery catalog and vector feature source.
	catalog := imagery.NewHTTPCatalogClient(
		cfg.Imagery.Endpoint,
		time.Duration(cfg.Imagery.TimeoutSeconds)*time.Second,
	)
	overpassRepo := repository.NewOverpassRepository(
		cfg.Overpass.Endpoint,
		time.Duration(cfg.Overpass.TimeoutSeconds)*time.Second,
	)

	// Optional run history.
	var recorder repository.RunRecorder
	if cfg.Postgres.URL != "" {
		recorder = repository.NewPostgresRunRecorder(cfg.Postgres.URL)
	}

	detectionService := core.NewDetectionService(
		catalog,
		overpassRepo,
		recorder,
		cfg.Postgres.SaveRuns,
		core.Options{
			MaxPixels: cfg.Detection.MaxPixels,
			Cutoffs: core.TierCutoffs{
				model.TierHigh:     cfg.Detection.HighCutoff,
				model.TierVeryHigh: cfg.Detection.VeryHighCutoff,
				model.TierExtreme:  cfg.Detection.ExtremeCutoff,
			},
			ToleranceMeters:       cfg.Detection.ToleranceMeters,
			BurnCutoff:            cfg.Detection.BurnCutoff,
			SingleImageWindowDays: cfg.Detection.SingleImageWindowDays,
		},
	)

	handler := api.NewHandler(
		detectionService,
		recorder,
		cfg.Imagery.Collection,
		cfg.Imagery.BurntCollection,
		cfg.Detection.PercentileOnAbs,
	)
	http.HandleFunc("/api/detect", handler.Detect)
	http.HandleFunc("/api/detect/single", handler.DetectSingle)
	http.HandleFunc("/api/burnt", handler.BurntArea)
	http.HandleFunc("/api/runs", handler.Runs)

	log.Printf("Starting server on %s", cfg.Server.Addr)
	log.Fatal(http.ListenAndServe(cfg.Server.Addr, nil))
}
