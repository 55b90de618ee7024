package api

import (
	"fmt"

	"github.com/bubblemap/server/internal/cache"
	"github.com/bubblemap/server/internal/service"
	"github.com/bubblemap/server/pkg/colormap"
)

const defaultTitle = "Data Viz w/ SAEs"

// DatasetInfo describes one served dataset.
type DatasetInfo struct {
	ID       string `json:"id"`
	Bubbles  int    `json:"bubbles"`
	MaxCount int    `json:"max_count"`
	Keyed    bool   `json:"keyed"`
}

// Catalog is the payload of /api/datasets.
type Catalog struct {
	Default   string                 `json:"default"`
	Title     string                 `json:"title"`
	Datasets  []DatasetInfo          `json:"datasets"`
	Colormaps []string               `json:"colormaps"`
	Cache     map[string]interface{} `json:"cache,omitempty"`
}

// RegistryConfig contains registry configuration.
type RegistryConfig struct {
	DefaultDataset string
	// Order lists the dataset IDs that may be registered, in display order.
	Order []string
	Title string
	// Cache is shared by all datasets; its counters are reported in the catalog.
	Cache *cache.Manager
}

// DatasetRegistry maps dataset IDs to their bubble services.
type DatasetRegistry struct {
	cfg      RegistryConfig
	allowed  map[string]bool
	services map[string]*service.BubbleService
}

// NewDatasetRegistry creates an empty registry for the configured datasets.
func NewDatasetRegistry(cfg RegistryConfig) *DatasetRegistry {
	if cfg.Title == "" {
		cfg.Title = defaultTitle
	}
	allowed := make(map[string]bool, len(cfg.Order))
	for _, id := range cfg.Order {
		allowed[id] = true
	}
	return &DatasetRegistry{
		cfg:      cfg,
		allowed:  allowed,
		services: make(map[string]*service.BubbleService),
	}
}

// Register attaches the service of a configured dataset. Unknown and
// already registered IDs are rejected.
func (r *DatasetRegistry) Register(datasetID string, svc *service.BubbleService) error {
	if !r.allowed[datasetID] {
		return fmt.Errorf("dataset %q is not configured", datasetID)
	}
	if _, dup := r.services[datasetID]; dup {
		return fmt.Errorf("dataset %q registered twice", datasetID)
	}
	r.services[datasetID] = svc
	return nil
}

// Get returns the bubble service for a dataset, or nil if not found.
func (r *DatasetRegistry) Get(datasetID string) *service.BubbleService {
	return r.services[datasetID]
}

// DefaultDatasetID returns the default dataset ID.
func (r *DatasetRegistry) DefaultDatasetID() string {
	return r.cfg.DefaultDataset
}

// Catalog lists the registered datasets in configured order.
func (r *DatasetRegistry) Catalog() Catalog {
	c := Catalog{
		Default:   r.cfg.DefaultDataset,
		Title:     r.cfg.Title,
		Datasets:  make([]DatasetInfo, 0, len(r.services)),
		Colormaps: colormap.Names(),
	}
	for _, id := range r.cfg.Order {
		svc := r.services[id]
		if svc == nil {
			continue
		}
		d := svc.Dataset()
		maxCount, _ := d.MaxCount()
		c.Datasets = append(c.Datasets, DatasetInfo{
			ID:       id,
			Bubbles:  d.Len(),
			MaxCount: maxCount,
			Keyed:    d.BindReport().Keyed,
		})
	}
	if r.cfg.Cache != nil {
		c.Cache = r.cfg.Cache.Stats()
	}
	return c
}
