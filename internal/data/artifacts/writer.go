package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/bubblemap/server/internal/data/zarr"
)

// WriteTexts writes the index-to-text mapping as a JSON array.
func WriteTexts(path string, texts []string) error {
	return writeJSON(path, texts)
}

// WriteLabels writes the feature label mapping as a JSON object.
func WriteLabels(path string, labels map[int]string) error {
	raw := make(map[string]string, len(labels))
	for k, v := range labels {
		raw[strconv.Itoa(k)] = v
	}
	return writeJSON(path, raw)
}

// WriteActivations writes a CSR activation matrix as a Zarr group.
func WriteActivations(path string, rows, cols int, indptr, indices []int, data []float64) error {
	if len(indptr) != rows+1 {
		return fmt.Errorf("indptr has %d entries, expected %d", len(indptr), rows+1)
	}
	if err := zarr.WriteGroup(path, map[string]interface{}{
		"format": "csr",
		"shape":  []int{rows, cols},
	}); err != nil {
		return err
	}

	if err := zarr.WriteArray(path, CSRData, zarr.ArraySpec{
		Shape:      []int{len(data)},
		ChunkShape: []int{chunkLen(len(data))},
		DataType:   "float32",
	}, data); err != nil {
		return err
	}
	if err := zarr.WriteArray(path, CSRIndices, zarr.ArraySpec{
		Shape:      []int{len(indices)},
		ChunkShape: []int{chunkLen(len(indices))},
		DataType:   "int32",
	}, toFloats(indices)); err != nil {
		return err
	}
	return zarr.WriteArray(path, CSRIndptr, zarr.ArraySpec{
		Shape:      []int{len(indptr)},
		ChunkShape: []int{chunkLen(len(indptr))},
		DataType:   "int64",
	}, toFloats(indptr))
}

// WriteCoords writes the coordinate store. features may be nil.
func WriteCoords(path string, coords [][2]float64, features []int) error {
	if features != nil && len(features) != len(coords) {
		return fmt.Errorf("%d feature indices for %d coordinates", len(features), len(coords))
	}
	if err := zarr.WriteGroup(path, nil); err != nil {
		return err
	}

	flat := make([]float64, 0, 2*len(coords))
	for _, c := range coords {
		flat = append(flat, c[0], c[1])
	}
	if err := zarr.WriteArray(path, CoordsArray, zarr.ArraySpec{
		Shape:      []int{len(coords), 2},
		ChunkShape: []int{chunkLen(len(coords)), 2},
		DataType:   "float32",
	}, flat); err != nil {
		return err
	}

	if features == nil {
		return nil
	}
	return zarr.WriteArray(path, CoordFeaturesArray, zarr.ArraySpec{
		Shape:      []int{len(features)},
		ChunkShape: []int{chunkLen(len(features))},
		DataType:   "int32",
	}, toFloats(features))
}

func chunkLen(n int) int {
	const maxChunk = 65536
	if n <= 0 {
		return 1
	}
	if n > maxChunk {
		return maxChunk
	}
	return n
}

func toFloats(ints []int) []float64 {
	out := make([]float64, len(ints))
	for i, v := range ints {
		out[i] = float64(v)
	}
	return out
}

func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
