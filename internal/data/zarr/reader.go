// Package zarr provides a reader and writer for Zarr v3 stores.
//
// Only the subset needed for precomputed analysis artifacts is supported:
// one- and two-dimensional arrays in C order, little-endian `bytes` codec,
// optionally followed by `zstd` or `gzip` compression.
package zarr

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Store provides access to the arrays of a Zarr v3 group.
type Store struct {
	basePath string
	group    *GroupMeta
	decoder  *zstd.Decoder

	mu    sync.RWMutex
	metas map[string]*ArrayMeta
}

// GroupMeta represents Zarr v3 group metadata (zarr.json).
type GroupMeta struct {
	ZarrFormat int                    `json:"zarr_format"`
	NodeType   string                 `json:"node_type"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Codec is one entry of an array codec pipeline.
type Codec struct {
	Name          string                 `json:"name"`
	Configuration map[string]interface{} `json:"configuration,omitempty"`
}

// ArrayMeta represents Zarr v3 array metadata (zarr.json).
type ArrayMeta struct {
	Shape     []int  `json:"shape"`
	DataType  string `json:"data_type"`
	ChunkGrid struct {
		Name          string `json:"name"`
		Configuration struct {
			ChunkShape []int `json:"chunk_shape"`
		} `json:"configuration"`
	} `json:"chunk_grid"`
	ChunkKeyEncoding struct {
		Name          string `json:"name"`
		Configuration struct {
			Separator string `json:"separator"`
		} `json:"configuration"`
	} `json:"chunk_key_encoding"`
	FillValue  interface{}            `json:"fill_value"`
	Codecs     []Codec                `json:"codecs"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	ZarrFormat int                    `json:"zarr_format"`
	NodeType   string                 `json:"node_type"`
}

// Array is a decoded array. Values are stored in C order as float64.
type Array struct {
	Shape []int
	Data  []float64
}

// Len returns the extent of the first dimension.
func (a *Array) Len() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[0]
}

// At returns element (i, j) of a two-dimensional array.
func (a *Array) At(i, j int) float64 {
	return a.Data[i*a.Shape[1]+j]
}

// Open opens the Zarr v3 group rooted at basePath.
func Open(basePath string) (*Store, error) {
	data, err := os.ReadFile(filepath.Join(basePath, "zarr.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read group metadata: %w", err)
	}

	var group GroupMeta
	if err := json.Unmarshal(data, &group); err != nil {
		return nil, fmt.Errorf("failed to parse group metadata: %w", err)
	}
	if group.ZarrFormat != 3 {
		return nil, fmt.Errorf("unsupported zarr_format %d in %s", group.ZarrFormat, basePath)
	}
	if group.NodeType != "group" {
		return nil, fmt.Errorf("%s is a %q node, expected group", basePath, group.NodeType)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Store{
		basePath: basePath,
		group:    &group,
		decoder:  decoder,
		metas:    make(map[string]*ArrayMeta),
	}, nil
}

// Path returns the directory of the store.
func (s *Store) Path() string {
	return s.basePath
}

// Attributes returns the group attributes.
func (s *Store) Attributes() map[string]interface{} {
	return s.group.Attributes
}

// HasArray reports whether the group contains an array called name.
func (s *Store) HasArray(name string) bool {
	_, err := s.ArrayMeta(name)
	return err == nil
}

// ArrayMeta loads (and caches) the metadata of the named array.
func (s *Store) ArrayMeta(name string) (*ArrayMeta, error) {
	s.mu.RLock()
	meta, ok := s.metas[name]
	s.mu.RUnlock()
	if ok {
		return meta, nil
	}

	data, err := os.ReadFile(filepath.Join(s.basePath, name, "zarr.json"))
	if err != nil {
		return nil, err
	}

	meta = &ArrayMeta{}
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, fmt.Errorf("failed to parse %s metadata: %w", name, err)
	}
	if meta.NodeType != "" && meta.NodeType != "array" {
		return nil, fmt.Errorf("%s is a %q node, expected array", name, meta.NodeType)
	}

	s.mu.Lock()
	s.metas[name] = meta
	s.mu.Unlock()
	return meta, nil
}

// ReadArray reads and decodes a whole one- or two-dimensional array.
func (s *Store) ReadArray(name string) (*Array, error) {
	meta, err := s.ArrayMeta(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s metadata: %w", name, err)
	}

	ndim := len(meta.Shape)
	if ndim != 1 && ndim != 2 {
		return nil, fmt.Errorf("unsupported %s shape: %v", name, meta.Shape)
	}
	chunkShape := meta.ChunkGrid.Configuration.ChunkShape
	if len(chunkShape) != ndim {
		return nil, fmt.Errorf("invalid %s metadata: shape dims (%d) != chunk dims (%d)", name, ndim, len(chunkShape))
	}
	for d, c := range chunkShape {
		if c <= 0 {
			return nil, fmt.Errorf("invalid %s chunk shape at dim %d: %d", name, d, c)
		}
	}
	size, err := dtypeSize(meta.DataType)
	if err != nil {
		return nil, err
	}

	// Treat 1-D arrays as [N, 1] so that one loop handles both layouts.
	rows, cols := meta.Shape[0], 1
	chunkRows, chunkCols := chunkShape[0], 1
	if ndim == 2 {
		cols = meta.Shape[1]
		chunkCols = chunkShape[1]
	}

	out := &Array{
		Shape: append([]int(nil), meta.Shape...),
		Data:  make([]float64, rows*cols),
	}

	arrayPath := filepath.Join(s.basePath, name)
	for rc := 0; rc < ceilDiv(rows, chunkRows); rc++ {
		rowStart := rc * chunkRows
		rowLen := min(chunkRows, rows-rowStart)

		for cc := 0; cc < ceilDiv(cols, chunkCols); cc++ {
			colStart := cc * chunkCols
			colLen := min(chunkCols, cols-colStart)

			indices := []int{rc}
			if ndim == 2 {
				indices = append(indices, cc)
			}
			chunkData, err := s.readChunkAt(arrayPath, meta, indices)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s chunk %v: %w", name, indices, err)
			}

			// Edge chunks are normally padded to the full chunk shape, but some
			// writers store them truncated; the stride follows whichever was written.
			stride := chunkCols
			if len(chunkData) < chunkRows*chunkCols*size {
				if len(chunkData) < rowLen*colLen*size {
					return nil, fmt.Errorf("%s chunk %v too short: got %d bytes, expected %d",
						name, indices, len(chunkData), rowLen*colLen*size)
				}
				stride = colLen
			}

			for r := 0; r < rowLen; r++ {
				for c := 0; c < colLen; c++ {
					off := (r*stride + c) * size
					v, err := decodeValue(meta.DataType, chunkData[off:off+size])
					if err != nil {
						return nil, err
					}
					out.Data[(rowStart+r)*cols+colStart+c] = v
				}
			}
		}
	}

	return out, nil
}

// ReadInts reads a one-dimensional integer array.
func (s *Store) ReadInts(name string) ([]int, error) {
	arr, err := s.ReadArray(name)
	if err != nil {
		return nil, err
	}
	if len(arr.Shape) != 1 {
		return nil, fmt.Errorf("expected 1-D %s, got shape %v", name, arr.Shape)
	}
	out := make([]int, len(arr.Data))
	for i, v := range arr.Data {
		out[i] = int(v)
	}
	return out, nil
}

func (s *Store) readChunkAt(arrayPath string, meta *ArrayMeta, chunkIndices []int) ([]byte, error) {
	key := encodeChunkKey(meta, chunkIndices)
	data, err := s.readChunk(arrayPath, meta, key)
	if err == nil {
		return data, nil
	}

	// Some writers drop trailing singleton chunk dims
	// (e.g. store [N,2] chunks as c/<rowChunk> instead of c/<rowChunk>/0).
	var altErr error
	if len(chunkIndices) > 1 && chunkIndices[1] == 0 {
		altData, altReadErr := s.readChunk(arrayPath, meta, strconv.Itoa(chunkIndices[0]))
		if altReadErr == nil {
			return altData, nil
		}
		altErr = altReadErr
	}

	// A chunk that is not present on disk holds only the fill value.
	if os.IsNotExist(err) && (altErr == nil || os.IsNotExist(altErr)) {
		fill, fillErr := fillValueBytes(meta)
		if fillErr != nil {
			return nil, fillErr
		}
		return bytes.Repeat(fill, product(meta.ChunkGrid.Configuration.ChunkShape)), nil
	}

	return nil, err
}

// readChunk reads a chunk and runs the codec pipeline in reverse.
func (s *Store) readChunk(arrayPath string, meta *ArrayMeta, chunkKey string) ([]byte, error) {
	// Zarr v3 stores chunks in c/ directory
	chunkPath := filepath.Join(arrayPath, "c", filepath.FromSlash(chunkKey))

	data, err := os.ReadFile(chunkPath)
	if err != nil {
		return nil, err
	}

	for i := len(meta.Codecs) - 1; i >= 0; i-- {
		codec := meta.Codecs[i]
		switch codec.Name {
		case "zstd":
			data, err = s.decoder.DecodeAll(data, nil)
			if err != nil {
				return nil, fmt.Errorf("zstd decompress failed: %w", err)
			}
		case "gzip":
			zr, err := gzip.NewReader(bytes.NewReader(data))
			if err != nil {
				return nil, fmt.Errorf("gzip open failed: %w", err)
			}
			data, err = io.ReadAll(zr)
			zr.Close()
			if err != nil {
				return nil, fmt.Errorf("gzip decompress failed: %w", err)
			}
		case "bytes":
			if endian, _ := codec.Configuration["endian"].(string); endian == "big" {
				return nil, fmt.Errorf("unsupported big-endian bytes codec")
			}
		default:
			return nil, fmt.Errorf("unsupported codec: %s", codec.Name)
		}
	}

	return data, nil
}

// Close releases resources.
func (s *Store) Close() {
	if s.decoder != nil {
		s.decoder.Close()
	}
}

func encodeChunkKey(meta *ArrayMeta, chunkIndices []int) string {
	sep := meta.ChunkKeyEncoding.Configuration.Separator
	if sep == "" {
		sep = "/"
	}
	parts := make([]string, len(chunkIndices))
	for i, idx := range chunkIndices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, sep)
}

func dtypeSize(dataType string) (int, error) {
	switch dataType {
	case "float32", "int32", "uint32":
		return 4, nil
	case "float64", "int64", "uint64":
		return 8, nil
	default:
		return 0, fmt.Errorf("unsupported zarr data_type: %s", dataType)
	}
}

func decodeValue(dataType string, b []byte) (float64, error) {
	switch dataType {
	case "float32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case "float64":
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case "int32":
		return float64(int32(binary.LittleEndian.Uint32(b))), nil
	case "uint32":
		return float64(binary.LittleEndian.Uint32(b)), nil
	case "int64":
		return float64(int64(binary.LittleEndian.Uint64(b))), nil
	case "uint64":
		return float64(binary.LittleEndian.Uint64(b)), nil
	default:
		return 0, fmt.Errorf("unsupported zarr data_type: %s", dataType)
	}
}

func encodeValue(dataType string, v float64, b []byte) error {
	switch dataType {
	case "float32":
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case "float64":
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	case "int32":
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
	case "uint32":
		binary.LittleEndian.PutUint32(b, uint32(v))
	case "int64":
		binary.LittleEndian.PutUint64(b, uint64(int64(v)))
	case "uint64":
		binary.LittleEndian.PutUint64(b, uint64(v))
	default:
		return fmt.Errorf("unsupported zarr data_type: %s", dataType)
	}
	return nil
}

func fillValueBytes(meta *ArrayMeta) ([]byte, error) {
	size, err := dtypeSize(meta.DataType)
	if err != nil {
		return nil, err
	}

	var v float64
	switch t := meta.FillValue.(type) {
	case nil:
		return make([]byte, size), nil
	case float64:
		v = t
	case string:
		// Zarr v3 encodes non-finite float fill values as strings.
		switch t {
		case "NaN":
			v = math.NaN()
		case "Infinity":
			v = math.Inf(1)
		case "-Infinity":
			v = math.Inf(-1)
		default:
			return nil, fmt.Errorf("unsupported fill_value %q", t)
		}
	default:
		return nil, fmt.Errorf("unsupported fill_value type for %s: %T", meta.DataType, meta.FillValue)
	}

	out := make([]byte, size)
	if err := encodeValue(meta.DataType, v, out); err != nil {
		return nil, err
	}
	return out, nil
}

func product(ints []int) int {
	p := 1
	for _, v := range ints {
		p *= v
	}
	return p
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
