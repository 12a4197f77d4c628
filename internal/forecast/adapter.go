package forecast

import (
	"errors"
	"fmt"

	"github.com/born-ml/born/tensor"

	"github.com/ai-models/panguweather/internal/field"
	"github.com/ai-models/panguweather/internal/runtime"
)

// ErrShape is returned when fields do not fill the declared tensor shape.
var ErrShape = errors.New("fields do not match tensor shape")

// State is one forecast state: a pressure-level and a surface tensor.
type State struct {
	PL  *tensor.RawTensor
	SFC *tensor.RawTensor
}

// Inputs holds the ordered input fields and the tensors built from them.
// PL and SFC are also the templates of the output fields, slice k of an
// output tensor belonging to field k.
type Inputs struct {
	PL      field.List
	SFC     field.List
	Initial State
}

// Adapter turns field collections into model tensors.
type Adapter struct {
	ParamSfc []string
	ParamPL  []string
	LevelsPL []int
	Grid     field.Grid
}

// PLShape is (params, levels, lat, lon).
func (a Adapter) PLShape() tensor.Shape {
	return tensor.Shape{len(a.ParamPL), len(a.LevelsPL), a.Grid.NLat(), a.Grid.NLon()}
}

// SFCShape is (params, lat, lon).
func (a Adapter) SFCShape() tensor.Shape {
	return tensor.Shape{len(a.ParamSfc), a.Grid.NLat(), a.Grid.NLon()}
}

// Prepare selects and orders the configured fields and copies them into
// the initial tensors. Selection errors are returned before any tensor is
// allocated.
func (a Adapter) Prepare(pl, sfc field.Collection) (*Inputs, error) {
	selPL, err := pl.Sel(a.ParamPL, a.LevelsPL)
	if err != nil {
		return nil, fmt.Errorf("pressure-level fields: %w", err)
	}
	orderedPL := selPL.OrderBy(a.ParamPL, a.LevelsPL).Fields()

	selSFC, err := sfc.Sel(a.ParamSfc, nil)
	if err != nil {
		return nil, fmt.Errorf("surface fields: %w", err)
	}
	orderedSFC := selSFC.OrderBy(a.ParamSfc, nil).Fields()

	plTensor, err := a.tensor("pressure-level", orderedPL, a.PLShape())
	if err != nil {
		return nil, err
	}
	sfcTensor, err := a.tensor("surface", orderedSFC, a.SFCShape())
	if err != nil {
		return nil, err
	}

	return &Inputs{
		PL:      orderedPL,
		SFC:     orderedSFC,
		Initial: State{PL: plTensor, SFC: sfcTensor},
	}, nil
}

func (a Adapter) tensor(kind string, fields field.List, shape tensor.Shape) (*tensor.RawTensor, error) {
	points := a.Grid.Points()
	if points == 0 {
		return nil, fmt.Errorf("%w: empty grid %s", ErrShape, a.Grid)
	}
	fieldsWanted := shape.NumElements() / points
	if len(fields) != fieldsWanted {
		return nil, fmt.Errorf("%w: %d %s fields, expected %d", ErrShape, len(fields), kind, fieldsWanted)
	}
	data, err := fields.ToFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: %s fields: %v", ErrShape, kind, err)
	}
	t, err := runtime.NewFloat32(shape, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrShape, kind, err)
	}
	return t, nil
}
