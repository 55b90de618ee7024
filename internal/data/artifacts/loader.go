// Package artifacts loads the precomputed inputs of a bubble dataset:
// example texts, the sparse activation matrix, feature labels and 2D coordinates.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/bubblemap/server/internal/activation"
	"github.com/bubblemap/server/internal/data/zarr"
)

// Array names inside the Zarr stores.
const (
	CoordsArray        = "coords_2d"
	CoordFeaturesArray = "feature_index"
	CSRData            = "data"
	CSRIndices         = "indices"
	CSRIndptr          = "indptr"
)

// ErrMissingText is returned when an example row has no text.
var ErrMissingText = errors.New("missing example text")

// Paths locates the artifacts of one dataset.
type Paths struct {
	Questions   string
	Activations string
	Labels      string
	Coords      string
}

// Artifacts holds everything the aggregator and binder need.
type Artifacts struct {
	Texts       map[int]string
	Activations *activation.Matrix
	Labels      map[int]string
	Coords      [][2]float64
	// CoordFeatures is the feature index of each coordinate row, when the
	// coordinates store carries one.
	CoordFeatures []int
}

// Text returns the text of an example row.
func (a *Artifacts) Text(row int) (string, error) {
	t, ok := a.Texts[row]
	if !ok {
		return "", fmt.Errorf("row %d: %w", row, ErrMissingText)
	}
	return t, nil
}

// Load reads all artifacts. Any failure is fatal for the dataset.
func Load(p Paths) (*Artifacts, error) {
	texts, err := LoadTexts(p.Questions)
	if err != nil {
		return nil, fmt.Errorf("failed to load texts: %w", err)
	}

	acts, err := LoadActivations(p.Activations)
	if err != nil {
		return nil, fmt.Errorf("failed to load activations: %w", err)
	}

	labels, err := LoadLabels(p.Labels)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}

	coords, features, err := LoadCoords(p.Coords)
	if err != nil {
		return nil, fmt.Errorf("failed to load coords: %w", err)
	}

	return &Artifacts{
		Texts:         texts,
		Activations:   acts,
		Labels:        labels,
		Coords:        coords,
		CoordFeatures: features,
	}, nil
}

// LoadTexts reads the index-to-text mapping. The file holds either a JSON
// array (row i is element i) or a JSON object keyed by decimal row index.
func LoadTexts(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		out := make(map[int]string, len(list))
		for i, t := range list {
			out[i] = t
		}
		return out, nil
	}

	return decodeIndexedStrings(data)
}

// LoadLabels reads the feature-index-to-label mapping (JSON object keyed by
// decimal feature index).
func LoadLabels(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeIndexedStrings(data)
}

func decodeIndexedStrings(data []byte) (map[int]string, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("expected JSON object of strings: %w", err)
	}

	out := make(map[int]string, len(raw))
	for k, v := range raw {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("invalid index key %q: %w", k, err)
		}
		out[idx] = v
	}
	return out, nil
}

// LoadActivations reads a CSR activation matrix from a Zarr group with
// attributes {"format": "csr", "shape": [rows, cols]}.
func LoadActivations(path string) (*activation.Matrix, error) {
	store, err := zarr.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	attrs := store.Attributes()
	if format, _ := attrs["format"].(string); format != "csr" {
		return nil, fmt.Errorf("unsupported sparse format %q", attrs["format"])
	}
	rows, cols, err := shapeAttr(attrs["shape"])
	if err != nil {
		return nil, err
	}

	values, err := store.ReadArray(CSRData)
	if err != nil {
		return nil, err
	}
	indices, err := store.ReadInts(CSRIndices)
	if err != nil {
		return nil, err
	}
	indptr, err := store.ReadInts(CSRIndptr)
	if err != nil {
		return nil, err
	}

	return activation.FromCSR(rows, cols, indptr, indices, values.Data)
}

func shapeAttr(v interface{}) (int, int, error) {
	list, ok := v.([]interface{})
	if !ok || len(list) != 2 {
		return 0, 0, fmt.Errorf("invalid shape attribute: %v", v)
	}
	dims := make([]int, 2)
	for i, d := range list {
		f, ok := d.(float64)
		if !ok || f < 0 {
			return 0, 0, fmt.Errorf("invalid shape attribute: %v", v)
		}
		dims[i] = int(f)
	}
	return dims[0], dims[1], nil
}

// LoadCoords reads the [N,2] coordinate array and, if present, the per-row
// feature index used for keyed binding.
func LoadCoords(path string) ([][2]float64, []int, error) {
	store, err := zarr.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()

	arr, err := store.ReadArray(CoordsArray)
	if err != nil {
		return nil, nil, err
	}
	if len(arr.Shape) != 2 || arr.Shape[1] != 2 {
		return nil, nil, fmt.Errorf("unexpected %s shape: %v (expected [N,2])", CoordsArray, arr.Shape)
	}

	coords := make([][2]float64, arr.Len())
	for i := range coords {
		coords[i] = [2]float64{arr.At(i, 0), arr.At(i, 1)}
	}

	var features []int
	if store.HasArray(CoordFeaturesArray) {
		features, err = store.ReadInts(CoordFeaturesArray)
		if err != nil {
			return nil, nil, err
		}
		if len(features) != len(coords) {
			return nil, nil, fmt.Errorf("%s has %d entries for %d coordinates", CoordFeaturesArray, len(features), len(coords))
		}
	}

	return coords, features, nil
}
