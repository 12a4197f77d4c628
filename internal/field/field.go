// Package field models atmospheric fields on a lat-lon grid and the
// collection operations the forecast needs from its data layer: selection by
// parameter and level, ordering, and conversion to a dense float32 array.
package field

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMissingField is returned when a requested parameter/level is not in a collection.
var ErrMissingField = errors.New("field not found")

// LevelType distinguishes pressure-level from surface fields.
type LevelType string

// Level types.
const (
	PressureLevel LevelType = "pl"
	Surface       LevelType = "sfc"
)

// Field is one named, leveled variable on a grid at a point in time.
// Values are row-major, NLat x NLon, north to south.
type Field struct {
	Param     string
	Level     int
	LevelType LevelType
	Grid      Grid
	Date      time.Time
	Step      int
	Metadata  map[string]string
	Values    []float32
}

// Name returns the storage name of the field: "<param>_<level>" for pressure
// levels, "<param>" for surface fields.
func (f Field) Name() string {
	if f.LevelType == PressureLevel {
		return f.Param + "_" + strconv.Itoa(f.Level)
	}
	return f.Param
}

// String implements fmt.Stringer.
func (f Field) String() string {
	if f.LevelType == PressureLevel {
		return fmt.Sprintf("%s@%dhPa", f.Param, f.Level)
	}
	return f.Param
}

// WithValues returns a copy of f carrying data at the given step. The
// metadata map is copied; data is not.
func (f Field) WithValues(data []float32, step int) Field {
	out := f
	out.Values = data
	out.Step = step
	if f.Metadata != nil {
		out.Metadata = make(map[string]string, len(f.Metadata))
		for k, v := range f.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// ParseName splits a storage name produced by Field.Name. A trailing
// "_<integer>" marks a pressure-level field.
func ParseName(name string) (param string, level int, lt LevelType, err error) {
	if name == "" {
		return "", 0, "", fmt.Errorf("empty field name")
	}
	i := strings.LastIndexByte(name, '_')
	if i <= 0 || i == len(name)-1 {
		return name, 0, Surface, nil
	}
	lvl, convErr := strconv.Atoi(name[i+1:])
	if convErr != nil {
		return name, 0, Surface, nil
	}
	return name[:i], lvl, PressureLevel, nil
}
