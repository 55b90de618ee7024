package zarr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/zstd"
)

// ArraySpec describes an array to be written with WriteArray.
type ArraySpec struct {
	Shape      []int
	ChunkShape []int
	DataType   string
	Attributes map[string]interface{}
}

// WriteGroup creates a Zarr v3 group at path.
func WriteGroup(path string, attrs map[string]interface{}) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create group dir: %w", err)
	}
	return writeJSON(filepath.Join(path, "zarr.json"), GroupMeta{
		ZarrFormat: 3,
		NodeType:   "group",
		Attributes: attrs,
	})
}

// WriteArray writes values (C order) as a zstd-compressed Zarr v3 array named
// name inside the group at groupPath.
func WriteArray(groupPath, name string, spec ArraySpec, values []float64) error {
	ndim := len(spec.Shape)
	if ndim != 1 && ndim != 2 {
		return fmt.Errorf("unsupported shape: %v", spec.Shape)
	}
	if product(spec.Shape) != len(values) {
		return fmt.Errorf("shape %v needs %d values, got %d", spec.Shape, product(spec.Shape), len(values))
	}
	chunkShape := spec.ChunkShape
	if len(chunkShape) == 0 {
		chunkShape = append([]int(nil), spec.Shape...)
		for i, v := range chunkShape {
			if v == 0 {
				chunkShape[i] = 1
			}
		}
	}
	if len(chunkShape) != ndim {
		return fmt.Errorf("chunk shape %v does not match shape %v", chunkShape, spec.Shape)
	}
	size, err := dtypeSize(spec.DataType)
	if err != nil {
		return err
	}

	arrayPath := filepath.Join(groupPath, name)
	if err := os.MkdirAll(arrayPath, 0755); err != nil {
		return fmt.Errorf("failed to create array dir: %w", err)
	}

	meta := ArrayMeta{
		Shape:      spec.Shape,
		DataType:   spec.DataType,
		FillValue:  0,
		Codecs:     []Codec{{Name: "bytes", Configuration: map[string]interface{}{"endian": "little"}}, {Name: "zstd", Configuration: map[string]interface{}{"level": 3}}},
		Attributes: spec.Attributes,
		ZarrFormat: 3,
		NodeType:   "array",
	}
	meta.ChunkGrid.Name = "regular"
	meta.ChunkGrid.Configuration.ChunkShape = chunkShape
	meta.ChunkKeyEncoding.Name = "default"
	meta.ChunkKeyEncoding.Configuration.Separator = "/"
	if err := writeJSON(filepath.Join(arrayPath, "zarr.json"), meta); err != nil {
		return err
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer encoder.Close()

	rows, cols := spec.Shape[0], 1
	chunkRows, chunkCols := chunkShape[0], 1
	if ndim == 2 {
		cols = spec.Shape[1]
		chunkCols = chunkShape[1]
	}

	for rc := 0; rc < ceilDiv(rows, chunkRows); rc++ {
		for cc := 0; cc < ceilDiv(cols, chunkCols); cc++ {
			// Chunks are always written at full chunk shape, padded with zeros.
			buf := make([]byte, chunkRows*chunkCols*size)
			for r := 0; r < chunkRows; r++ {
				row := rc*chunkRows + r
				if row >= rows {
					break
				}
				for c := 0; c < chunkCols; c++ {
					col := cc*chunkCols + c
					if col >= cols {
						break
					}
					off := (r*chunkCols + c) * size
					if err := encodeValue(spec.DataType, values[row*cols+col], buf[off:off+size]); err != nil {
						return err
					}
				}
			}

			dir := filepath.Join(arrayPath, "c")
			file := strconv.Itoa(rc)
			if ndim == 2 {
				dir = filepath.Join(dir, strconv.Itoa(rc))
				file = strconv.Itoa(cc)
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create chunk dir: %w", err)
			}
			if err := os.WriteFile(filepath.Join(dir, file), encoder.EncodeAll(buf, nil), 0644); err != nil {
				return fmt.Errorf("failed to write chunk: %w", err)
			}
		}
	}

	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
