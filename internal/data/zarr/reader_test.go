package zarr

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func newTestGroup(t *testing.T, attrs map[string]interface{}) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "store.zarr")
	if err := WriteGroup(dir, attrs); err != nil {
		t.Fatalf("WriteGroup: %v", err)
	}
	return dir
}

func TestOpen_GroupAttributes(t *testing.T) {
	dir := newTestGroup(t, map[string]interface{}{"format": "csr", "shape": []int{3, 4}})

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if got, _ := s.Attributes()["format"].(string); got != "csr" {
		t.Fatalf("unexpected format attribute: %v", s.Attributes()["format"])
	}
	if s.HasArray("data") {
		t.Fatal("expected no data array in empty group")
	}
}

func TestOpen_Errors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		if _, err := Open(filepath.Join(t.TempDir(), "nope.zarr")); err == nil {
			t.Fatal("expected error for missing store")
		}
	})

	t.Run("arrayNode", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "zarr.json"), []byte(`{"zarr_format":3,"node_type":"array"}`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Open(dir); err == nil {
			t.Fatal("expected error when root is an array")
		}
	})

	t.Run("zarrV2", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "zarr.json"), []byte(`{"zarr_format":2,"node_type":"group"}`), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Open(dir); err == nil {
			t.Fatal("expected error for zarr_format 2")
		}
	})
}

func TestReadArray_ChunkedTwoDimensional(t *testing.T) {
	dir := newTestGroup(t, nil)

	// 5x2 coordinates split into 2-row chunks leaves a padded edge chunk.
	values := []float64{0.5, -1, 1.5, 2, 2.5, -3, 3.5, 4, 4.5, -5}
	spec := ArraySpec{Shape: []int{5, 2}, ChunkShape: []int{2, 2}, DataType: "float32"}
	if err := WriteArray(dir, "coords_2d", spec, values); err != nil {
		t.Fatalf("WriteArray: %v", err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	arr, err := s.ReadArray("coords_2d")
	if err != nil {
		t.Fatalf("ReadArray: %v", err)
	}
	if arr.Len() != 5 || arr.Shape[1] != 2 {
		t.Fatalf("unexpected shape %v", arr.Shape)
	}
	for i := 0; i < 5; i++ {
		for j := 0; j < 2; j++ {
			if got, want := arr.At(i, j), values[i*2+j]; got != want {
				t.Errorf("At(%d,%d) = %v, want %v", i, j, got, want)
			}
		}
	}
}

func TestReadArray_ColumnChunks(t *testing.T) {
	dir := newTestGroup(t, nil)

	values := make([]float64, 3*5)
	for i := range values {
		values[i] = float64(i)
	}
	spec := ArraySpec{Shape: []int{3, 5}, ChunkShape: []int{2, 2}, DataType: "float64"}
	if err := WriteArray(dir, "m", spec, values); err != nil {
		t.Fatalf("WriteArray: %v", err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	arr, err := s.ReadArray("m")
	if err != nil {
		t.Fatalf("ReadArray: %v", err)
	}
	for i, want := range values {
		if arr.Data[i] != want {
			t.Fatalf("Data[%d] = %v, want %v", i, arr.Data[i], want)
		}
	}
}

func TestReadInts(t *testing.T) {
	dir := newTestGroup(t, nil)

	spec := ArraySpec{Shape: []int{4}, ChunkShape: []int{3}, DataType: "int64"}
	if err := WriteArray(dir, "indptr", spec, []float64{0, 2, 2, 7}); err != nil {
		t.Fatalf("WriteArray: %v", err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	got, err := s.ReadInts("indptr")
	if err != nil {
		t.Fatalf("ReadInts: %v", err)
	}
	want := []int{0, 2, 2, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ReadInts = %v, want %v", got, want)
		}
	}
}

func TestReadArray_MissingChunkUsesFillValue(t *testing.T) {
	dir := newTestGroup(t, nil)

	spec := ArraySpec{Shape: []int{4}, ChunkShape: []int{2}, DataType: "int32"}
	if err := WriteArray(dir, "counts", spec, []float64{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteArray: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "counts", "c", "1")); err != nil {
		t.Fatalf("remove chunk: %v", err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	arr, err := s.ReadArray("counts")
	if err != nil {
		t.Fatalf("ReadArray: %v", err)
	}
	want := []float64{1, 2, 0, 0}
	for i := range want {
		if arr.Data[i] != want[i] {
			t.Fatalf("Data = %v, want %v", arr.Data, want)
		}
	}
}

func TestReadArray_GzipTruncatedChunk(t *testing.T) {
	dir := newTestGroup(t, nil)
	arrayPath := filepath.Join(dir, "values")
	if err := os.MkdirAll(filepath.Join(arrayPath, "c"), 0755); err != nil {
		t.Fatal(err)
	}

	meta := `{
  "zarr_format": 3,
  "node_type": "array",
  "shape": [3],
  "data_type": "float32",
  "chunk_grid": {"name": "regular", "configuration": {"chunk_shape": [4]}},
  "chunk_key_encoding": {"name": "default", "configuration": {"separator": "/"}},
  "fill_value": 0,
  "codecs": [{"name": "bytes", "configuration": {"endian": "little"}}, {"name": "gzip", "configuration": {"level": 5}}]
}`
	if err := os.WriteFile(filepath.Join(arrayPath, "zarr.json"), []byte(meta), 0644); err != nil {
		t.Fatal(err)
	}

	// Edge chunk written at its truncated length (3 elements, not 4).
	raw := make([]byte, 12)
	for i, v := range []float32{0.25, 0.5, 0.75} {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(arrayPath, "c", "0"), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	arr, err := s.ReadArray("values")
	if err != nil {
		t.Fatalf("ReadArray: %v", err)
	}
	want := []float64{0.25, 0.5, 0.75}
	for i := range want {
		if arr.Data[i] != want[i] {
			t.Fatalf("Data = %v, want %v", arr.Data, want)
		}
	}
}

func TestWriteArray_Validation(t *testing.T) {
	dir := newTestGroup(t, nil)

	if err := WriteArray(dir, "bad", ArraySpec{Shape: []int{2, 2}, DataType: "float32"}, []float64{1, 2, 3}); err == nil {
		t.Error("expected error for value count mismatch")
	}
	if err := WriteArray(dir, "bad", ArraySpec{Shape: []int{2}, DataType: "float16"}, []float64{1, 2}); err == nil {
		t.Error("expected error for unsupported dtype")
	}
	if err := WriteArray(dir, "bad", ArraySpec{Shape: []int{1, 1, 1}, DataType: "float32"}, []float64{1}); err == nil {
		t.Error("expected error for 3-D shape")
	}
}
