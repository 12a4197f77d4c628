package field

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Grid describes a regular lat-lon grid by its bounding area and resolution.
// Longitudes wrap around when the area spans 360 degrees, so the eastern edge
// is not repeated.
type Grid struct {
	North, West, South, East float64
	DLat, DLon               float64
}

// Global025 is the 0.25 degree global grid (721 x 1440 points).
var Global025 = Grid{North: 90, West: 0, South: -90, East: 360, DLat: 0.25, DLon: 0.25}

// NLat returns the number of latitude rows, both poles included.
func (g Grid) NLat() int {
	return int(math.Round((g.North-g.South)/g.DLat)) + 1
}

// NLon returns the number of longitude columns.
func (g Grid) NLon() int {
	span := g.East - g.West
	n := int(math.Round(span / g.DLon))
	if span < 360 {
		n++
	}
	return n
}

// Points returns NLat * NLon.
func (g Grid) Points() int {
	return g.NLat() * g.NLon()
}

// Validate checks that the grid has a positive extent and resolution.
func (g Grid) Validate() error {
	if g.DLat <= 0 || g.DLon <= 0 {
		return fmt.Errorf("invalid grid resolution %g/%g", g.DLat, g.DLon)
	}
	if g.North < g.South || g.East <= g.West {
		return fmt.Errorf("invalid grid area %g/%g/%g/%g", g.North, g.West, g.South, g.East)
	}
	if g.East-g.West > 360 {
		return fmt.Errorf("grid spans %g degrees of longitude", g.East-g.West)
	}
	return nil
}

// String encodes the grid as "north/west/south/east/dlat/dlon".
func (g Grid) String() string {
	parts := []float64{g.North, g.West, g.South, g.East, g.DLat, g.DLon}
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = strconv.FormatFloat(p, 'g', -1, 64)
	}
	return strings.Join(s, "/")
}

// ParseGrid is the inverse of Grid.String.
func ParseGrid(s string) (Grid, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 6 {
		return Grid{}, fmt.Errorf("grid %q: expected 6 components, got %d", s, len(parts))
	}
	v := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Grid{}, fmt.Errorf("grid %q: %w", s, err)
		}
		v[i] = f
	}
	g := Grid{North: v[0], West: v[1], South: v[2], East: v[3], DLat: v[4], DLon: v[5]}
	if err := g.Validate(); err != nil {
		return Grid{}, err
	}
	return g, nil
}
