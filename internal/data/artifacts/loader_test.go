package artifacts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, coordFeatures []int) Paths {
	t.Helper()

	dir := t.TempDir()
	p := Paths{
		Questions:   filepath.Join(dir, "ind_to_question.json"),
		Activations: filepath.Join(dir, "rand_activations_sparse.zarr"),
		Labels:      filepath.Join(dir, "feature_labels.json"),
		Coords:      filepath.Join(dir, "coords_2d.zarr"),
	}

	if err := WriteTexts(p.Questions, []string{"what is go?", "why rust?", "how to cook"}); err != nil {
		t.Fatalf("WriteTexts: %v", err)
	}
	if err := WriteLabels(p.Labels, map[int]string{0: "programming", 2: "cooking"}); err != nil {
		t.Fatalf("WriteLabels: %v", err)
	}
	// 3 examples x 3 features:
	//   row 0: f0=0.9
	//   row 1: f0=0.4 f1=0.2
	//   row 2: f2=0.7
	if err := WriteActivations(p.Activations, 3, 3,
		[]int{0, 1, 3, 4},
		[]int{0, 0, 1, 2},
		[]float64{0.9, 0.4, 0.2, 0.7},
	); err != nil {
		t.Fatalf("WriteActivations: %v", err)
	}
	if err := WriteCoords(p.Coords, [][2]float64{{1, 2}, {-3, 4.5}}, coordFeatures); err != nil {
		t.Fatalf("WriteCoords: %v", err)
	}
	return p
}

func TestLoad(t *testing.T) {
	a, err := Load(writeFixture(t, nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(a.Texts) != 3 || a.Texts[2] != "how to cook" {
		t.Errorf("unexpected texts: %v", a.Texts)
	}
	if a.Labels[2] != "cooking" || len(a.Labels) != 2 {
		t.Errorf("unexpected labels: %v", a.Labels)
	}

	rows, cols := a.Activations.Dims()
	if rows != 3 || cols != 3 {
		t.Fatalf("unexpected activation dims %dx%d", rows, cols)
	}
	if got := a.Activations.NonzeroCount(0); got != 2 {
		t.Errorf("NonzeroCount(0) = %d, want 2", got)
	}
	if got := float32(a.Activations.At(1, 1)); got != 0.2 {
		t.Errorf("At(1,1) = %v, want 0.2", got)
	}

	if len(a.Coords) != 2 || a.Coords[1] != [2]float64{-3, 4.5} {
		t.Errorf("unexpected coords: %v", a.Coords)
	}
	if a.CoordFeatures != nil {
		t.Errorf("expected no coordinate features, got %v", a.CoordFeatures)
	}
}

func TestLoad_CoordFeatures(t *testing.T) {
	a, err := Load(writeFixture(t, []int{2, 0}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(a.CoordFeatures) != 2 || a.CoordFeatures[0] != 2 || a.CoordFeatures[1] != 0 {
		t.Errorf("unexpected coordinate features: %v", a.CoordFeatures)
	}
}

func TestLoad_MissingArtifact(t *testing.T) {
	p := writeFixture(t, nil)
	if err := os.RemoveAll(p.Activations); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for missing activations")
	}
}

func TestLoadTexts_ObjectForm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texts.json")
	if err := os.WriteFile(path, []byte(`{"0": "a", "7": "b"}`), 0644); err != nil {
		t.Fatal(err)
	}

	texts, err := LoadTexts(path)
	if err != nil {
		t.Fatalf("LoadTexts: %v", err)
	}
	if texts[7] != "b" || len(texts) != 2 {
		t.Errorf("unexpected texts: %v", texts)
	}
}

func TestLoadLabels_InvalidKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.json")
	if err := os.WriteFile(path, []byte(`{"feature-3": "x"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLabels(path); err == nil {
		t.Fatal("expected error for non-numeric key")
	}
}

func TestText_Missing(t *testing.T) {
	a := &Artifacts{Texts: map[int]string{0: "x"}}
	if _, err := a.Text(4); !errors.Is(err, ErrMissingText) {
		t.Fatalf("expected ErrMissingText, got %v", err)
	}
}
