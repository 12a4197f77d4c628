package forecast

import (
	"errors"
	"fmt"
)

// StepHours is the time step of the forecast.
const StepHours = 6

// DailyEvery is the number of steps between two uses of the 24-hour model.
const DailyEvery = 24 / StepHours

// ErrInvalidLeadTime is returned for lead times that are not a positive
// multiple of StepHours.
var ErrInvalidLeadTime = errors.New("invalid lead time")

// Kind selects one of the two models.
type Kind int

// Model kinds.
const (
	Model6 Kind = iota
	Model24
)

func (k Kind) String() string {
	switch k {
	case Model6:
		return "6h"
	case Model24:
		return "24h"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Step is one iteration of the stepping loop.
type Step struct {
	Index int
	Hours int
	Model Kind
}

// Schedule returns the steps of a forecast of leadTime hours.
func Schedule(leadTime int) ([]Step, error) {
	if leadTime <= 0 || leadTime%StepHours != 0 {
		return nil, fmt.Errorf("%w: %d is not a positive multiple of %d", ErrInvalidLeadTime, leadTime, StepHours)
	}

	n := leadTime / StepHours
	steps := make([]Step, n)
	for i := range steps {
		steps[i] = Step{Index: i, Hours: (i + 1) * StepHours, Model: Model6}
		if (i+1)%DailyEvery == 0 {
			steps[i].Model = Model24
		}
	}
	return steps, nil
}
