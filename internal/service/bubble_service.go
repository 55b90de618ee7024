// Package service provides the per-dataset logic behind the HTTP handlers.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/bubblemap/server/internal/bubble"
	"github.com/bubblemap/server/internal/cache"
	"github.com/bubblemap/server/internal/data/artifacts"
	"github.com/bubblemap/server/internal/render"
	"github.com/bubblemap/server/internal/view"
)

// ErrBubbleNotFound is returned for an out-of-range bubble index.
var ErrBubbleNotFound = errors.New("bubble not found")

// BubbleServiceConfig contains bubble service configuration.
type BubbleServiceConfig struct {
	DatasetID string
	Dataset   *bubble.Dataset
	Cache     *cache.Manager
	Renderer  *render.PreviewRenderer
	Page      view.Options
	Colormap  string
}

// BubbleService serves one immutable dataset.
type BubbleService struct {
	datasetID string
	dataset   *bubble.Dataset
	cache     *cache.Manager
	renderer  *render.PreviewRenderer
	page      view.Options
	colormap  string

	statsOnce sync.Once
	stats     Stats
}

// NewBubbleService creates a new bubble service.
func NewBubbleService(cfg BubbleServiceConfig) *BubbleService {
	datasetID := cfg.DatasetID
	if datasetID == "" {
		datasetID = "default"
	}

	return &BubbleService{
		datasetID: datasetID,
		dataset:   cfg.Dataset,
		cache:     cfg.Cache,
		renderer:  cfg.Renderer,
		page:      cfg.Page,
		colormap:  cfg.Colormap,
	}
}

// BuildDataset loads the artifacts and turns them into a dataset.
func BuildDataset(paths artifacts.Paths, opts bubble.BuildOptions) (*bubble.Dataset, error) {
	a, err := artifacts.Load(paths)
	if err != nil {
		return nil, err
	}

	return bubble.Build(bubble.Input{
		Activations:   a.Activations,
		Labels:        a.Labels,
		Texts:         a,
		Coords:        a.Coords,
		CoordFeatures: a.CoordFeatures,
	}, opts)
}

// DatasetID returns the dataset identifier.
func (s *BubbleService) DatasetID() string {
	return s.datasetID
}

// Dataset returns the served dataset.
func (s *BubbleService) Dataset() *bubble.Dataset {
	return s.dataset
}

// Page returns the rendered interactive page.
func (s *BubbleService) Page() ([]byte, error) {
	key := cache.PageKey(s.datasetID)
	if data, ok := s.cache.GetPage(key); ok {
		return data, nil
	}

	data, err := view.GeneratePage(s.dataset, s.page)
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	if err := s.cache.SetPage(key, data); err != nil {
		log.Printf("Warning: failed to cache page for %s: %v", s.datasetID, err)
	}
	return data, nil
}

// TableJSON returns the table of bubbles whose count is at least minCount.
func (s *BubbleService) TableJSON(minCount float64) ([]byte, error) {
	key := cache.FilterKey(s.datasetID, minCount)
	if data, ok := s.cache.GetQuery(key); ok {
		return data, nil
	}

	data, err := json.Marshal(s.dataset.Table().Filter(minCount))
	if err != nil {
		return nil, err
	}
	s.cache.SetQuery(key, data)
	return data, nil
}

// BubbleDetail is one bubble together with its rendered detail panel.
type BubbleDetail struct {
	Index int `json:"index"`
	bubble.Bubble
	DetailHTML string `json:"detail_html"`
}

// Bubble returns bubble i of the full table.
func (s *BubbleService) Bubble(i int) (BubbleDetail, error) {
	b, ok := s.dataset.Bubble(i)
	if !ok {
		return BubbleDetail{}, fmt.Errorf("%w: index %d of %d", ErrBubbleNotFound, i, s.dataset.Len())
	}
	return BubbleDetail{
		Index:      i,
		Bubble:     b,
		DetailHTML: view.DetailHTML(&b),
	}, nil
}

// Stats summarizes the bubble counts.
type Stats struct {
	N      int               `json:"n"`
	Min    int               `json:"min"`
	Max    int               `json:"max"`
	Mean   float64           `json:"mean"`
	StdDev float64           `json:"stddev"`
	Median float64           `json:"median"`
	Slider view.Slider       `json:"slider"`
	Bind   bubble.BindReport `json:"bind"`
}

// Stats returns the count summary, computed once.
func (s *BubbleService) Stats() Stats {
	s.statsOnce.Do(func() {
		s.stats = computeStats(s.dataset, s.page)
	})
	return s.stats
}

func computeStats(d *bubble.Dataset, page view.Options) Stats {
	counts := d.Counts()
	st := Stats{
		N:      len(counts),
		Slider: view.SliderRange(counts, page.SliderFloor, page.SliderFallback),
		Bind:   d.BindReport(),
	}
	if len(counts) == 0 {
		return st
	}

	xs := make([]float64, len(counts))
	for i, c := range counts {
		xs[i] = float64(c)
	}
	sort.Float64s(xs)

	st.Min = int(xs[0])
	st.Max = int(xs[len(xs)-1])
	st.Mean = stat.Mean(xs, nil)
	st.Median = stat.Quantile(0.5, stat.Empirical, xs, nil)
	if len(xs) > 1 {
		st.StdDev = stat.StdDev(xs, nil)
	}
	return st
}

// Preview renders the PNG preview with the named colormap; an empty name uses
// the configured one.
func (s *BubbleService) Preview(colormapName string) ([]byte, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("preview renderer not configured")
	}
	if colormapName == "" {
		colormapName = s.colormap
	}

	key := cache.PreviewKey(s.datasetID, s.renderer.Size(), colormapName)
	if data, ok := s.cache.GetPage(key); ok {
		return data, nil
	}

	data, err := s.renderer.Render(s.dataset.Bubbles(), colormapName)
	if err != nil {
		return nil, fmt.Errorf("render preview: %w", err)
	}
	if err := s.cache.SetPage(key, data); err != nil {
		log.Printf("Warning: failed to cache preview for %s: %v", s.datasetID, err)
	}
	return data, nil
}
