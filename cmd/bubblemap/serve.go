package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bubblemap/server/internal/api"
	"github.com/bubblemap/server/internal/service"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interactive bubble map",
	Long: `Load every configured dataset and serve it over HTTP.

Routes:
  /                           redirect to the default dataset
  /api/datasets               configured datasets
  /d/{dataset}/               interactive page
  /d/{dataset}/api/bubbles    bubble table (?min_count=N)
  /d/{dataset}/api/stats      count summary and binding report
  /d/{dataset}/preview.png    static preview (?colormap=name)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.Printf("Starting bubblemap server on port %d", cfg.Server.Port)

	// Shared across all datasets
	cacheManager, err := newCacheManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheManager.Close()

	renderer, err := newRenderer(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize renderer: %w", err)
	}

	datasetIDs := cfg.Data.DatasetIDs()
	registry := api.NewDatasetRegistry(api.RegistryConfig{
		DefaultDataset: cfg.Data.DefaultDataset,
		Order:          datasetIDs,
		Title:          cfg.Server.Title,
		Cache:          cacheManager,
	})

	log.Printf("Initializing %d dataset(s), default: %s", len(datasetIDs), cfg.Data.DefaultDataset)

	for _, datasetID := range datasetIDs {
		dataset, err := buildDataset(cfg, datasetID)
		if err != nil {
			log.Fatalf("Failed to load dataset: %v", err)
		}

		svc := service.NewBubbleService(service.BubbleServiceConfig{
			DatasetID: datasetID,
			Dataset:   dataset,
			Cache:     cacheManager,
			Renderer:  renderer,
			Page:      pageOptions(cfg, datasetID),
			Colormap:  cfg.Render.Colormap,
		})
		if err := registry.Register(datasetID, svc); err != nil {
			return err
		}
	}

	router := api.NewRouter(api.RouterConfig{
		Registry:    registry,
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   cfg.Server.RateLimit,
		RateBurst:   cfg.Server.RateBurst,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
	return nil
}
