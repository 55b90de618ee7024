package api

import (
	"testing"

	"github.com/bubblemap/server/internal/bubble"
	"github.com/bubblemap/server/internal/service"
)

func newRegistryService(id string, bubbles []bubble.Bubble, report bubble.BindReport) *service.BubbleService {
	return service.NewBubbleService(service.BubbleServiceConfig{
		DatasetID: id,
		Dataset:   bubble.NewDataset(bubbles, 20, report),
	})
}

func TestDatasetRegistry_Register(t *testing.T) {
	r := NewDatasetRegistry(RegistryConfig{DefaultDataset: "a", Order: []string{"a", "b"}})

	if err := r.Register("a", newRegistryService("a", nil, bubble.BindReport{})); err != nil {
		t.Fatalf("Register(a): %v", err)
	}
	if err := r.Register("a", newRegistryService("a", nil, bubble.BindReport{})); err == nil {
		t.Error("expected error for duplicate registration")
	}
	if err := r.Register("c", newRegistryService("c", nil, bubble.BindReport{})); err == nil {
		t.Error("expected error for unconfigured dataset")
	}
	if r.Get("a") == nil || r.Get("c") != nil {
		t.Error("unexpected lookup results")
	}
}

func TestDatasetRegistry_Catalog(t *testing.T) {
	r := NewDatasetRegistry(RegistryConfig{DefaultDataset: "b", Order: []string{"a", "b", "missing"}})

	// Registration order does not affect catalog order.
	if err := r.Register("b", newRegistryService("b", []bubble.Bubble{{Text: "x", Count: 7}, {Text: "y", Count: 9}},
		bubble.BindReport{Keyed: true})); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("a", newRegistryService("a", nil, bubble.BindReport{})); err != nil {
		t.Fatal(err)
	}

	c := r.Catalog()
	if c.Default != "b" || c.Title != defaultTitle {
		t.Errorf("unexpected header: default=%q title=%q", c.Default, c.Title)
	}
	want := []DatasetInfo{
		{ID: "a"},
		{ID: "b", Bubbles: 2, MaxCount: 9, Keyed: true},
	}
	if len(c.Datasets) != len(want) {
		t.Fatalf("expected %d datasets, got %+v", len(want), c.Datasets)
	}
	for i := range want {
		if c.Datasets[i] != want[i] {
			t.Errorf("dataset %d = %+v, want %+v", i, c.Datasets[i], want[i])
		}
	}
	if len(c.Colormaps) == 0 {
		t.Error("expected colormap names")
	}
	if c.Cache != nil {
		t.Errorf("expected no cache counters without a cache, got %v", c.Cache)
	}
}
