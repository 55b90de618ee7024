// Package config handles configuration loading for the bubblemap server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the YAML file.
const (
	EnvPort    = "BUBBLEMAP_PORT"
	EnvDataDir = "BUBBLEMAP_DATA_DIR"
)

// Config represents the server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Aggregate AggregateConfig `yaml:"aggregate"`
	View      ViewConfig      `yaml:"view"`
	Cache     CacheConfig     `yaml:"cache"`
	Render    RenderConfig    `yaml:"render"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	Title       string   `yaml:"title"`
	// RateLimit is the sustained number of API requests per second; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// DatasetConfig locates the precomputed artifacts of one dataset.
type DatasetConfig struct {
	Dir         string `yaml:"dir"`
	Questions   string `yaml:"questions"`
	Activations string `yaml:"activations"`
	Labels      string `yaml:"labels"`
	Coords      string `yaml:"coords"`
}

// DataConfig contains data source settings for every configured dataset.
//
// Two YAML forms are accepted. The single-dataset form lists the artifact fields
// directly under `data:` and registers them as dataset "default". The multi-dataset
// form maps dataset IDs to artifact fields; the first ID is the default unless
// `default_dataset` names another.
type DataConfig struct {
	DefaultDataset string
	Datasets       map[string]DatasetConfig
	order          []string
}

// AggregateConfig controls how features are turned into bubbles.
// Keys left out of the file keep their defaults; negative values also mean default.
type AggregateConfig struct {
	SkipTop            int     `yaml:"skip_top"`
	MinCount           int     `yaml:"min_count"`
	MaxExpansions      int     `yaml:"max_expansions"`
	ExpansionThreshold float64 `yaml:"expansion_threshold"`
	// KeyCoords joins coordinates by feature index when the coords artifact carries one.
	KeyCoords bool `yaml:"key_coords"`
}

// ViewConfig contains interactive page settings.
type ViewConfig struct {
	SliderFloor      int     `yaml:"slider_floor"`
	SliderDefaultMax int     `yaml:"slider_default_max"`
	ZoomThresholdX   float64 `yaml:"zoom_threshold_x"`
	ZoomThresholdY   float64 `yaml:"zoom_threshold_y"`
	TruncateLen      int     `yaml:"truncate_len"`
	Width            int     `yaml:"width"`
	Height           int     `yaml:"height"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	PageSizeMB     int `yaml:"page_size_mb"`
	PageTTLMinutes int `yaml:"page_ttl_minutes"`
	QueryCacheSize int `yaml:"query_cache_size"`
}

// RenderConfig contains preview rendering settings.
type RenderConfig struct {
	PreviewSize int    `yaml:"preview_size"`
	Colormap    string `yaml:"colormap"`
}

var legacyDataKeys = map[string]bool{
	"dir": true, "questions": true, "activations": true, "labels": true, "coords": true,
}

// UnmarshalYAML accepts both the single-dataset and the multi-dataset form.
func (d *DataConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("data: expected mapping, got %v", node.Tag)
	}

	legacy := false
	for i := 0; i < len(node.Content); i += 2 {
		if legacyDataKeys[node.Content[i].Value] {
			legacy = true
			break
		}
	}

	d.Datasets = make(map[string]DatasetConfig)
	d.order = nil

	if legacy {
		var ds DatasetConfig
		if err := node.Decode(&ds); err != nil {
			return err
		}
		d.Datasets["default"] = ds
		d.order = []string{"default"}
		d.DefaultDataset = "default"
		return nil
	}

	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		if key == "default_dataset" {
			d.DefaultDataset = val.Value
			continue
		}
		var ds DatasetConfig
		if err := val.Decode(&ds); err != nil {
			return fmt.Errorf("data.%s: %w", key, err)
		}
		d.Datasets[key] = ds
		d.order = append(d.order, key)
	}
	if d.DefaultDataset == "" && len(d.order) > 0 {
		d.DefaultDataset = d.order[0]
	}
	return nil
}

// DatasetIDs returns all dataset IDs in config order.
func (d DataConfig) DatasetIDs() []string {
	return d.order
}

// Path resolves an artifact name against the dataset directory.
func (ds DatasetConfig) Path(name string) string {
	if filepath.IsAbs(name) || ds.Dir == "" {
		return name
	}
	return filepath.Join(ds.Dir, name)
}

// QuestionsPath returns the location of the index-to-text mapping.
func (ds DatasetConfig) QuestionsPath() string { return ds.Path(ds.Questions) }

// ActivationsPath returns the location of the sparse activation store.
func (ds DatasetConfig) ActivationsPath() string { return ds.Path(ds.Activations) }

// LabelsPath returns the location of the feature label mapping.
func (ds DatasetConfig) LabelsPath() string { return ds.Path(ds.Labels) }

// CoordsPath returns the location of the 2D coordinate store.
func (ds DatasetConfig) CoordsPath() string { return ds.Path(ds.Coords) }

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		cfg := DefaultConfig()
		if err := applyEnv(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	// Keys absent from the file keep their default values.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Explicit zero values fall back to defaults as well.
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultDatasetConfig returns the artifact layout written by the upstream pipeline.
func DefaultDatasetConfig() DatasetConfig {
	return DatasetConfig{
		Dir:         "./feature_viz",
		Questions:   "ind_to_question.json",
		Activations: "rand_activations_sparse.zarr",
		Labels:      "feature_labels.json",
		Coords:      "coords_2d.zarr",
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			Title:       "Data Viz w/ SAEs",
			RateLimit:   50,
			RateBurst:   100,
		},
		Data: DataConfig{
			DefaultDataset: "default",
			Datasets:       map[string]DatasetConfig{"default": DefaultDatasetConfig()},
			order:          []string{"default"},
		},
		Aggregate: AggregateConfig{
			SkipTop:            100,
			MinCount:           50,
			MaxExpansions:      10,
			ExpansionThreshold: 0.1,
		},
		View: ViewConfig{
			SliderFloor:      5,
			SliderDefaultMax: 100,
			ZoomThresholdX:   5,
			ZoomThresholdY:   5,
			TruncateLen:      20,
			Width:            1000,
			Height:           1000,
		},
		Cache: CacheConfig{
			PageSizeMB:     64,
			PageTTLMinutes: 10,
			QueryCacheSize: 256,
		},
		Render: RenderConfig{
			PreviewSize: 512,
			Colormap:    "viridis",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Server.Title == "" {
		cfg.Server.Title = defaults.Server.Title
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = defaults.Server.RateBurst
	}

	if len(cfg.Data.Datasets) == 0 {
		cfg.Data = defaults.Data
	}
	base := DefaultDatasetConfig()
	for id, ds := range cfg.Data.Datasets {
		if ds.Questions == "" {
			ds.Questions = base.Questions
		}
		if ds.Activations == "" {
			ds.Activations = base.Activations
		}
		if ds.Labels == "" {
			ds.Labels = base.Labels
		}
		if ds.Coords == "" {
			ds.Coords = base.Coords
		}
		cfg.Data.Datasets[id] = ds
	}

	// Zero is a meaningful aggregation setting, so only negative values fall back.
	if cfg.Aggregate.SkipTop < 0 {
		cfg.Aggregate.SkipTop = defaults.Aggregate.SkipTop
	}
	if cfg.Aggregate.MinCount < 0 {
		cfg.Aggregate.MinCount = defaults.Aggregate.MinCount
	}
	if cfg.Aggregate.MaxExpansions < 0 {
		cfg.Aggregate.MaxExpansions = defaults.Aggregate.MaxExpansions
	}
	if cfg.Aggregate.ExpansionThreshold < 0 {
		cfg.Aggregate.ExpansionThreshold = defaults.Aggregate.ExpansionThreshold
	}

	if cfg.View.SliderFloor == 0 {
		cfg.View.SliderFloor = defaults.View.SliderFloor
	}
	if cfg.View.SliderDefaultMax == 0 {
		cfg.View.SliderDefaultMax = defaults.View.SliderDefaultMax
	}
	if cfg.View.ZoomThresholdX == 0 {
		cfg.View.ZoomThresholdX = defaults.View.ZoomThresholdX
	}
	if cfg.View.ZoomThresholdY == 0 {
		cfg.View.ZoomThresholdY = defaults.View.ZoomThresholdY
	}
	if cfg.View.TruncateLen == 0 {
		cfg.View.TruncateLen = defaults.View.TruncateLen
	}
	if cfg.View.Width == 0 {
		cfg.View.Width = defaults.View.Width
	}
	if cfg.View.Height == 0 {
		cfg.View.Height = defaults.View.Height
	}

	if cfg.Cache.PageSizeMB == 0 {
		cfg.Cache.PageSizeMB = defaults.Cache.PageSizeMB
	}
	if cfg.Cache.PageTTLMinutes == 0 {
		cfg.Cache.PageTTLMinutes = defaults.Cache.PageTTLMinutes
	}
	if cfg.Cache.QueryCacheSize == 0 {
		cfg.Cache.QueryCacheSize = defaults.Cache.QueryCacheSize
	}

	if cfg.Render.PreviewSize == 0 {
		cfg.Render.PreviewSize = defaults.Render.PreviewSize
	}
	if cfg.Render.Colormap == "" {
		cfg.Render.Colormap = defaults.Render.Colormap
	}
}

func validate(cfg *Config) error {
	if _, ok := cfg.Data.Datasets[cfg.Data.DefaultDataset]; !ok {
		return fmt.Errorf("data.default_dataset %q is not a configured dataset (have %v)",
			cfg.Data.DefaultDataset, cfg.Data.DatasetIDs())
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		id := cfg.Data.DefaultDataset
		ds := cfg.Data.Datasets[id]
		ds.Dir = v
		cfg.Data.Datasets[id] = ds
	}
	return nil
}
