// Package main is the entry point for the bubblemap server and tools.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bubblemap/server/internal/bubble"
	"github.com/bubblemap/server/internal/cache"
	"github.com/bubblemap/server/internal/config"
	"github.com/bubblemap/server/internal/data/artifacts"
	"github.com/bubblemap/server/internal/render"
	"github.com/bubblemap/server/internal/service"
	"github.com/bubblemap/server/internal/view"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bubblemap",
	Short: "Interactive bubble map of sparse-autoencoder features",
	Long: `bubblemap turns precomputed sparse-autoencoder activations, feature labels
and 2D coordinates into an interactive bubble chart.

Each bubble is a distinct feature label sized by how many examples activate it.
Zoom in to reveal labels, drag the slider to hide rare features and click a
bubble to list the examples that activate it most.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/server.yaml", "Path to configuration file")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func datasetPaths(ds config.DatasetConfig) artifacts.Paths {
	return artifacts.Paths{
		Questions:   ds.QuestionsPath(),
		Activations: ds.ActivationsPath(),
		Labels:      ds.LabelsPath(),
		Coords:      ds.CoordsPath(),
	}
}

func aggregateOptions(cfg *config.Config) bubble.Options {
	return bubble.Options{
		SkipTop:            cfg.Aggregate.SkipTop,
		MinCount:           cfg.Aggregate.MinCount,
		MaxExpansions:      cfg.Aggregate.MaxExpansions,
		ExpansionThreshold: cfg.Aggregate.ExpansionThreshold,
	}
}

func pageOptions(cfg *config.Config, datasetID string) view.Options {
	return view.Options{
		Title:          cfg.Server.Title,
		Width:          cfg.View.Width,
		Height:         cfg.View.Height,
		SliderFloor:    cfg.View.SliderFloor,
		SliderFallback: cfg.View.SliderDefaultMax,
		ZoomThresholdX: cfg.View.ZoomThresholdX,
		ZoomThresholdY: cfg.View.ZoomThresholdY,
		APIBase:        "/d/" + datasetID,
	}
}

// buildDataset loads and aggregates one configured dataset, logging how the
// coordinates were bound.
func buildDataset(cfg *config.Config, datasetID string) (*bubble.Dataset, error) {
	ds, ok := cfg.Data.Datasets[datasetID]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", datasetID)
	}

	start := time.Now()
	d, err := service.BuildDataset(datasetPaths(ds), bubble.BuildOptions{
		Aggregate:   aggregateOptions(cfg),
		KeyCoords:   cfg.Aggregate.KeyCoords,
		TruncateLen: cfg.View.TruncateLen,
	})
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", datasetID, err)
	}

	report := d.BindReport()
	mode := "positional"
	if report.Keyed {
		mode = "keyed"
	}
	log.Printf("  [%s] Loaded from: %s (%d bubbles, %s binding, %s)",
		datasetID, ds.Dir, d.Len(), mode, time.Since(start).Round(time.Millisecond))
	if report.Mismatched() {
		log.Printf("  [%s] Warning: %d bubbles and %d coordinates; dropped %d bubbles and %d coordinates",
			datasetID, report.Bubbles, report.Coords, report.DroppedBubbles, report.DroppedCoords)
	}
	return d, nil
}

func newCacheManager(cfg *config.Config) (*cache.Manager, error) {
	return cache.NewManager(cache.Config{
		PageCacheSizeMB: cfg.Cache.PageSizeMB,
		PageTTL:         time.Duration(cfg.Cache.PageTTLMinutes) * time.Minute,
		QueryCacheSize:  cfg.Cache.QueryCacheSize,
	})
}

func newRenderer(cfg *config.Config) (*render.PreviewRenderer, error) {
	return render.NewPreviewRenderer(render.Config{
		Size:            cfg.Render.PreviewSize,
		DefaultColormap: cfg.Render.Colormap,
		ChartWidth:      cfg.View.Width,
	})
}
