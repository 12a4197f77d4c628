package fieldio

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/ai-models/panguweather/internal/field"
)

// WriteFields writes fields to path in the field file layout. Fields are
// stored in alphabetical order of their names; duplicate names are an error.
// All fields must share one grid, which is recorded in the metadata.
//
// The file is written next to path and renamed into place, so readers never
// observe a partial file.
func WriteFields(path string, fields field.List, metadata map[string]string) error {
	byName := make(map[string]field.Field, len(fields))
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		name := f.Name()
		if _, dup := byName[name]; dup {
			return fmt.Errorf("duplicate field %s", name)
		}
		byName[name] = f
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]interface{}, len(names)+1)
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}

	var currentOffset int64
	for i, name := range names {
		f := byName[name]
		if i == 0 {
			meta[MetaGrid] = f.Grid.String()
		} else if f.Grid != byName[names[0]].Grid {
			return &FieldError{Path: path, Field: name, Err: ErrGridMismatch, Details: f.Grid.String()}
		}
		if len(f.Values) != f.Grid.Points() {
			return &FieldError{
				Path: path, Field: name, Err: ErrGridMismatch,
				Details: fmt.Sprintf("%d values for %d points", len(f.Values), f.Grid.Points()),
			}
		}

		size := int64(len(f.Values) * 4)
		header[name] = TensorInfo{
			DType:       dtypeF32,
			Shape:       []int{f.Grid.NLat(), f.Grid.NLon()},
			DataOffsets: [2]int64{currentOffset, currentOffset + size},
		}
		currentOffset += size
	}
	header["__metadata__"] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	tmp := path + ".tmp"
	//nolint:gosec // G304: output path comes from the run configuration.
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		_ = file.Close()
		_ = os.Remove(tmp)
	}()

	if err := binary.Write(file, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := file.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	var buf []byte
	for _, name := range names {
		values := byName[name].Values
		if cap(buf) < len(values)*4 {
			buf = make([]byte, len(values)*4)
		}
		buf = buf[:len(values)*4]
		for i, v := range values {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		if _, err := file.Write(buf); err != nil {
			return fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}
