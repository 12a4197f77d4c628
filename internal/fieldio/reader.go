package fieldio

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/ai-models/panguweather/internal/field"
	"github.com/ai-models/panguweather/internal/parallel"
)

// Field files use the SafeTensors layout:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw little-endian float32, one [NLat, NLon] tensor per field]

// Metadata keys stored in the "__metadata__" header entry.
const (
	MetaDate   = "date"
	MetaStep   = "step"
	MetaGrid   = "grid"
	MetaExpver = "expver"
)

const (
	dtypeF32      = "F32"
	maxHeaderSize = 100 * 1024 * 1024
)

// TensorInfo describes one stored tensor.
type TensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end]
}

// Header is the decoded JSON header.
type Header struct {
	Metadata map[string]string
	Tensors  map[string]TensorInfo
}

// UnmarshalJSON splits "__metadata__" from the tensor entries.
func (h *Header) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap["__metadata__"]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	h.Tensors = make(map[string]TensorInfo)
	for key, value := range rawMap {
		if key == "__metadata__" {
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// Reader reads fields from one file.
type Reader struct {
	path       string
	file       *os.File
	header     Header
	dataOffset int64
	dataSize   int64
}

// Open opens a field file and parses its header.
func Open(path string) (*Reader, error) {
	//nolint:gosec // G304: path comes from the run configuration.
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open field file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat field file: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(file, binary.LittleEndian, &headerSize); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > maxHeaderSize {
		_ = file.Close()
		return nil, fmt.Errorf("%s: %w: %d", path, ErrHeaderTooLarge, headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	dataOffset := int64(8 + headerSize) //nolint:gosec // G115: bounded by maxHeaderSize.
	return &Reader{
		path:       path,
		file:       file,
		header:     header,
		dataOffset: dataOffset,
		dataSize:   stat.Size() - dataOffset,
	}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Metadata returns the file-level metadata.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// Names returns the stored field names in data order.
func (r *Reader) Names() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := r.header.Tensors[names[i]], r.header.Tensors[names[j]]
		if a.DataOffsets[0] != b.DataOffsets[0] {
			return a.DataOffsets[0] < b.DataOffsets[0]
		}
		return names[i] < names[j]
	})
	return names
}

// Grid returns the grid recorded in the metadata. Files without a grid entry
// are assumed to be on the 0.25 degree global grid.
func (r *Reader) Grid() (field.Grid, error) {
	s, ok := r.header.Metadata[MetaGrid]
	if !ok {
		return field.Global025, nil
	}
	return field.ParseGrid(s)
}

// ReadField decodes one field.
func (r *Reader) ReadField(name string) (field.Field, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return field.Field{}, &FieldError{Path: r.path, Field: name, Err: field.ErrMissingField}
	}
	if info.DType != dtypeF32 {
		return field.Field{}, &FieldError{Path: r.path, Field: name, Err: ErrUnsupportedDType, Details: info.DType}
	}

	grid, err := r.Grid()
	if err != nil {
		return field.Field{}, fmt.Errorf("%s: %w", r.path, err)
	}
	if len(info.Shape) != 2 || info.Shape[0] != grid.NLat() || info.Shape[1] != grid.NLon() {
		return field.Field{}, &FieldError{
			Path: r.path, Field: name, Err: ErrGridMismatch,
			Details: fmt.Sprintf("shape %v, grid %dx%d", info.Shape, grid.NLat(), grid.NLon()),
		}
	}

	start, end := info.DataOffsets[0], info.DataOffsets[1]
	size := end - start
	if start < 0 || size != int64(grid.Points()*4) || end > r.dataSize {
		return field.Field{}, &FieldError{
			Path: r.path, Field: name, Err: ErrOutOfBounds,
			Details: fmt.Sprintf("offsets [%d, %d]", start, end),
		}
	}

	data := make([]byte, size)
	if _, err := r.file.ReadAt(data, r.dataOffset+start); err != nil {
		return field.Field{}, fmt.Errorf("failed to read field %s: %w", name, err)
	}

	values := make([]float32, grid.Points())
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}

	param, level, lt, err := field.ParseName(name)
	if err != nil {
		return field.Field{}, err
	}

	f := field.Field{
		Param:     param,
		Level:     level,
		LevelType: lt,
		Grid:      grid,
		Values:    values,
	}
	if f.Date, err = r.date(); err != nil {
		return field.Field{}, err
	}
	if s, ok := r.header.Metadata[MetaStep]; ok {
		if f.Step, err = strconv.Atoi(s); err != nil {
			return field.Field{}, fmt.Errorf("%s: invalid step %q: %w", r.path, s, err)
		}
	}
	if e, ok := r.header.Metadata[MetaExpver]; ok {
		f.Metadata = map[string]string{MetaExpver: e}
	}
	return f, nil
}

// ReadAll decodes every field in data order. Fields are decoded
// concurrently.
func (r *Reader) ReadAll() (field.List, error) {
	names := r.Names()
	out := make(field.List, len(names))
	err := parallel.For(len(names), parallel.DefaultConfig(), func(i int) error {
		f, err := r.ReadField(names[i])
		if err != nil {
			return err
		}
		out[i] = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Reader) date() (time.Time, error) {
	s, ok := r.header.Metadata[MetaDate]
	if !ok {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid date %q: %w", r.path, s, err)
	}
	return t, nil
}

// ReadFields reads all fields from the given files, in argument order.
func ReadFields(paths ...string) (field.List, error) {
	var out field.List
	for _, path := range paths {
		r, err := Open(path)
		if err != nil {
			return nil, err
		}
		fields, err := r.ReadAll()
		_ = r.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, fields...)
	}
	return out, nil
}
