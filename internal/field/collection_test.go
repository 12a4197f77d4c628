package field

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGrid = Grid{North: 90, West: 0, South: -90, East: 360, DLat: 90, DLon: 90}

func plField(param string, level int, v float32) Field {
	values := make([]float32, testGrid.Points())
	for i := range values {
		values[i] = v + float32(i)/100
	}
	return Field{Param: param, Level: level, LevelType: PressureLevel, Grid: testGrid, Values: values}
}

func sfcField(param string, v float32) Field {
	f := plField(param, 0, v)
	f.LevelType = Surface
	return f
}

func names(c Collection) []string {
	out := make([]string, 0, c.Len())
	for _, f := range c.Fields() {
		out = append(out, f.Name())
	}
	return out
}

func TestGridDimensions(t *testing.T) {
	assert.Equal(t, 721, Global025.NLat())
	assert.Equal(t, 1440, Global025.NLon())
	assert.Equal(t, 3, testGrid.NLat())
	assert.Equal(t, 4, testGrid.NLon())

	regional := Grid{North: 60, West: -10, South: 30, East: 30, DLat: 0.5, DLon: 0.5}
	assert.Equal(t, 61, regional.NLat())
	assert.Equal(t, 81, regional.NLon())
}

func TestParseGrid(t *testing.T) {
	g, err := ParseGrid(Global025.String())
	require.NoError(t, err)
	assert.Equal(t, Global025, g)

	_, err = ParseGrid("90/0/-90")
	assert.Error(t, err)
	_, err = ParseGrid("90/0/-90/360/0/0.25")
	assert.Error(t, err)
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name  string
		param string
		level int
		lt    LevelType
	}{
		{"z_500", "z", 500, PressureLevel},
		{"msl", "msl", 0, Surface},
		{"10u", "10u", 0, Surface},
		{"2t", "2t", 0, Surface},
		{"snow_depth", "snow_depth", 0, Surface},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, l, lt, err := ParseName(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.param, p)
			assert.Equal(t, tt.level, l)
			assert.Equal(t, tt.lt, lt)
		})
	}
}

func TestSelKeepsRequestedFields(t *testing.T) {
	l := List{
		plField("z", 500, 1),
		plField("w", 500, 2), // not requested
		plField("z", 850, 3),
		plField("z", 10, 4), // level not requested
		plField("t", 500, 5),
		plField("t", 850, 6),
	}

	sel, err := l.Sel([]string{"z", "t"}, []int{500, 850})
	require.NoError(t, err)
	assert.Equal(t, []string{"z_500", "z_850", "t_500", "t_850"}, names(sel))
}

func TestSelMissingField(t *testing.T) {
	l := List{sfcField("msl", 1), sfcField("10u", 2), sfcField("2t", 3)}

	_, err := l.Sel([]string{"msl", "10u", "10v", "2t"}, nil)
	require.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "10v")

	_, err = List{plField("z", 500, 1)}.Sel([]string{"z"}, []int{500, 850})
	require.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "z@850")
}

func TestOrderByIndependentOfInputOrder(t *testing.T) {
	params := []string{"z", "q", "t"}
	levels := []int{1000, 500, 50}

	var l List
	for i, p := range params {
		for j, lv := range levels {
			l = append(l, plField(p, lv, float32(i*10+j)))
		}
	}
	want := names(l)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		shuffled := make(List, len(l))
		copy(shuffled, l)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := names(shuffled.OrderBy(params, levels))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("trial %d: order mismatch (-want +got):\n%s", trial, diff)
		}
	}
}

func TestOrderByUnknownSortsLast(t *testing.T) {
	l := List{sfcField("extra", 0), sfcField("2t", 1), sfcField("msl", 2)}
	got := names(l.OrderBy([]string{"msl", "2t"}, nil))
	assert.Equal(t, []string{"msl", "2t", "extra"}, got)
}

func TestToFloat32(t *testing.T) {
	a := sfcField("msl", 1)
	b := sfcField("2t", 2)

	data, err := List{a, b}.ToFloat32()
	require.NoError(t, err)
	require.Len(t, data, 2*testGrid.Points())
	assert.Equal(t, a.Values, data[:testGrid.Points()])
	assert.Equal(t, b.Values, data[testGrid.Points():])

	// Source fields are copied, not aliased.
	data[0] = -1
	assert.NotEqual(t, float32(-1), a.Values[0])
}

func TestToFloat32SizeMismatch(t *testing.T) {
	a := sfcField("msl", 1)
	b := sfcField("2t", 2)
	b.Values = b.Values[:5]

	_, err := List{a, b}.ToFloat32()
	assert.Error(t, err)
}

func TestConcatAndSplit(t *testing.T) {
	pl := List{plField("z", 500, 1)}
	sfc := List{sfcField("msl", 2)}

	all := Concat(pl, sfc)
	require.Equal(t, 2, all.Len())

	gotPL, gotSFC := Split(all)
	assert.Equal(t, pl, gotPL)
	assert.Equal(t, sfc, gotSFC)
}

func TestWithValuesCopiesMetadata(t *testing.T) {
	f := sfcField("msl", 1)
	f.Metadata = map[string]string{"class": "od"}

	g := f.WithValues([]float32{1}, 6)
	g.Metadata["class"] = "ea"

	assert.Equal(t, "od", f.Metadata["class"])
	assert.Equal(t, 6, g.Step)
	assert.Equal(t, 0, f.Step)
}
