package field

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ai-models/panguweather/internal/parallel"
)

// Collection is an ordered set of fields.
//
// Implementations never mutate the fields they hold; Sel and OrderBy return
// new collections.
type Collection interface {
	// Len returns the number of fields.
	Len() int

	// At returns the i-th field.
	At(i int) Field

	// Fields returns the fields in iteration order.
	Fields() List

	// Sel keeps the fields whose parameter is in params and, when levels is
	// non-empty, whose level is in levels. Every requested (param, level)
	// combination must be present; otherwise the error wraps ErrMissingField.
	Sel(params []string, levels []int) (Collection, error)

	// OrderBy reorders the fields parameter-major, following the order of
	// params and then levels. Fields not named in the lists sort last.
	OrderBy(params []string, levels []int) Collection

	// ToFloat32 copies all field values, in iteration order, into one
	// contiguous slice.
	ToFloat32() ([]float32, error)
}

// List is the in-memory Collection.
type List []Field

var _ Collection = List(nil)

// Len implements Collection.
func (l List) Len() int { return len(l) }

// At implements Collection.
func (l List) At(i int) Field { return l[i] }

// Fields implements Collection.
func (l List) Fields() List { return l }

// Sel implements Collection.
func (l List) Sel(params []string, levels []int) (Collection, error) {
	wantParam := make(map[string]bool, len(params))
	for _, p := range params {
		wantParam[p] = true
	}
	wantLevel := make(map[int]bool, len(levels))
	for _, lv := range levels {
		wantLevel[lv] = true
	}

	type key struct {
		param string
		level int
	}
	found := make(map[key]bool)

	out := make(List, 0, len(l))
	for _, f := range l {
		if !wantParam[f.Param] {
			continue
		}
		if len(levels) > 0 && !wantLevel[f.Level] {
			continue
		}
		out = append(out, f)
		if len(levels) > 0 {
			found[key{f.Param, f.Level}] = true
		} else {
			found[key{param: f.Param}] = true
		}
	}

	var missing []string
	for _, p := range params {
		if len(levels) == 0 {
			if !found[key{param: p}] {
				missing = append(missing, p)
			}
			continue
		}
		for _, lv := range levels {
			if !found[key{p, lv}] {
				missing = append(missing, fmt.Sprintf("%s@%d", p, lv))
			}
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}

	return out, nil
}

// OrderBy implements Collection.
func (l List) OrderBy(params []string, levels []int) Collection {
	paramRank := make(map[string]int, len(params))
	for i, p := range params {
		paramRank[p] = i
	}
	levelRank := make(map[int]int, len(levels))
	for i, lv := range levels {
		levelRank[lv] = i
	}
	rank := func(m map[string]int, k string) int {
		if r, ok := m[k]; ok {
			return r
		}
		return len(m)
	}
	lrank := func(k int) int {
		if r, ok := levelRank[k]; ok {
			return r
		}
		return len(levelRank)
	}

	out := make(List, len(l))
	copy(out, l)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := rank(paramRank, out[i].Param), rank(paramRank, out[j].Param)
		if pi != pj {
			return pi < pj
		}
		return lrank(out[i].Level) < lrank(out[j].Level)
	})
	return out
}

// ToFloat32 implements Collection.
func (l List) ToFloat32() ([]float32, error) {
	if len(l) == 0 {
		return nil, nil
	}
	points := len(l[0].Values)
	for _, f := range l {
		if len(f.Values) != points {
			return nil, fmt.Errorf("field %s has %d values, expected %d", f, len(f.Values), points)
		}
		if n := f.Grid.Points(); f.Grid != (Grid{}) && n != points {
			return nil, fmt.Errorf("field %s has %d values for a %dx%d grid", f, points, f.Grid.NLat(), f.Grid.NLon())
		}
	}

	out := make([]float32, points*len(l))
	_ = parallel.For(len(l), parallel.DefaultConfig(), func(i int) error {
		copy(out[i*points:(i+1)*points], l[i].Values)
		return nil
	})
	return out, nil
}

// Concat joins collections into one list, preserving order.
func Concat(cs ...Collection) List {
	n := 0
	for _, c := range cs {
		n += c.Len()
	}
	out := make(List, 0, n)
	for _, c := range cs {
		out = append(out, c.Fields()...)
	}
	return out
}

// Split partitions a collection into pressure-level and surface fields.
func Split(c Collection) (pl, sfc List) {
	for _, f := range c.Fields() {
		if f.LevelType == PressureLevel {
			pl = append(pl, f)
		} else {
			sfc = append(sfc, f)
		}
	}
	return pl, sfc
}
