package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/core-tools/procsim/pkg/errors"
	"github.com/core-tools/procsim/pkg/process"
)

// weightTolerance absorbs float rounding when weights are summed
const weightTolerance = 1e-9

// Band maps the draws in [Lower, Upper) to one process.
type Band struct {
	ProcessID process.ID
	Lower     float64
	Upper     float64
}

func (b Band) contains(r float64) bool {
	return r >= b.Lower && r < b.Upper
}

// Weighted is a process with its share of the draws
type Weighted struct {
	ProcessID process.ID
	Weight    float64
}

// BandsFromWeights lays the weights end to end over [0, 1) in the given order.
// Weights must be positive and sum to 1.
func BandsFromWeights(weights []Weighted) ([]Band, error) {
	bands := make([]Band, 0, len(weights))
	lower := 0.0
	for i, w := range weights {
		if w.Weight <= 0 || math.IsNaN(w.Weight) {
			return nil, errors.NewValidationError(
				fmt.Sprintf("weight at index %d must be positive: %v", i, w.Weight),
				nil,
			).WithContext("pid", int(w.ProcessID))
		}
		upper := lower + w.Weight
		bands = append(bands, Band{ProcessID: w.ProcessID, Lower: lower, Upper: upper})
		lower = upper
	}

	if len(bands) > 0 {
		if math.Abs(lower-1) > weightTolerance {
			return nil, errors.NewValidationError(
				fmt.Sprintf("weights must sum to 1, got %v", lower),
				nil,
			)
		}
		bands[len(bands)-1].Upper = 1
	}

	if err := ValidateBands(bands); err != nil {
		return nil, err
	}
	return bands, nil
}

// ValidateBands checks that bands are non-empty, in order, contiguous,
// cover exactly [0, 1), and name each process once.
func ValidateBands(bands []Band) error {
	if len(bands) == 0 {
		return errors.NewValidationError("at least one scheduling band is required", nil)
	}

	seen := make(map[process.ID]int)
	expectedLower := 0.0
	for i, band := range bands {
		if band.Lower >= band.Upper {
			return errors.NewValidationError(
				fmt.Sprintf("band at index %d is empty: [%v, %v)", i, band.Lower, band.Upper),
				nil,
			).WithContext("pid", int(band.ProcessID))
		}
		if math.Abs(band.Lower-expectedLower) > weightTolerance {
			return errors.NewValidationError(
				fmt.Sprintf("band at index %d starts at %v, expected %v", i, band.Lower, expectedLower),
				nil,
			).WithContext("pid", int(band.ProcessID))
		}
		if prev, exists := seen[band.ProcessID]; exists {
			return errors.NewValidationError(
				fmt.Sprintf("process %d appears in bands %d and %d", band.ProcessID, prev, i),
				nil,
			)
		}
		seen[band.ProcessID] = i
		expectedLower = band.Upper
	}

	if math.Abs(expectedLower-1) > weightTolerance {
		return errors.NewValidationError(
			fmt.Sprintf("bands must end at 1, last upper bound is %v", expectedLower),
			nil,
		)
	}
	return nil
}

// ServiceTimes is how long a selected process holds the CPU, by priority.
type ServiceTimes map[process.Priority]time.Duration

func DefaultServiceTimes() ServiceTimes {
	return ServiceTimes{
		process.PriorityHigh:   3 * time.Second,
		process.PriorityMedium: 2 * time.Second,
		process.PriorityLow:    1 * time.Second,
	}
}

func (s ServiceTimes) For(priority process.Priority) time.Duration {
	return s[priority]
}

func ValidateServiceTimes(times ServiceTimes) error {
	for _, priority := range []process.Priority{process.PriorityHigh, process.PriorityMedium, process.PriorityLow} {
		duration, exists := times[priority]
		if !exists {
			return errors.NewValidationError(fmt.Sprintf("service time for priority %s is missing", priority), nil)
		}
		if duration < 0 {
			return errors.NewValidationError(
				fmt.Sprintf("service time for priority %s cannot be negative: %v", priority, duration),
				nil,
			)
		}
	}
	return nil
}
