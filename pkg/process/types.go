package process

import (
	"fmt"
	"strings"

	"github.com/core-tools/procsim/pkg/errors"
)

// ID identifies a process within a table
type ID int

// NoID asks the table to allocate an id
const NoID ID = 0

// MaxNameLength bounds process names, counted in characters
const MaxNameLength = 50

// Status is the lifecycle state of a simulated process
type Status string

const (
	StatusStopped Status = "stopped" // Initial state, waiting to be marked ready
	StatusReady   Status = "ready"   // Eligible to run on the next selection
	StatusRunning Status = "running" // Occupying the simulated CPU
)

// Priority decides how long a process occupies the CPU once selected
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority accepts the lowercase or uppercase text forms
func ParsePriority(value string) (Priority, error) {
	priority := Priority(strings.ToLower(strings.TrimSpace(value)))
	if err := ValidatePriority(priority); err != nil {
		return "", err
	}
	return priority, nil
}

func ValidatePriority(priority Priority) error {
	switch priority {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return nil
	default:
		return errors.NewValidationError(
			fmt.Sprintf("unsupported priority: %q", string(priority)),
			nil,
		).WithContext("supported_priorities", "high, medium, low")
	}
}

func ValidateName(name string) error {
	if length := len([]rune(name)); length > MaxNameLength {
		return errors.NewValidationError(
			fmt.Sprintf("process name cannot exceed %d characters", MaxNameLength),
			nil,
		).WithContext("name", name).WithContext("name_length", length)
	}
	return nil
}

func ValidateID(id ID) error {
	if id < 0 {
		return errors.NewValidationError(fmt.Sprintf("process id cannot be negative: %d", id), nil)
	}
	return nil
}

// Registers is a synthetic CPU register snapshot. Nothing in scheduling reads it.
type Registers struct {
	EAX uint16
	EBX uint16
	ECX uint16
	EDX uint16
	ESI uint16
	EDI uint16
	EBP uint16
	ESP uint16
}

// Named returns the registers in report order
func (r Registers) Named() []NamedRegister {
	return []NamedRegister{
		{"EAX", r.EAX},
		{"EBX", r.EBX},
		{"ECX", r.ECX},
		{"EDX", r.EDX},
		{"ESI", r.ESI},
		{"EDI", r.EDI},
		{"EBP", r.EBP},
		{"ESP", r.ESP},
	}
}

type NamedRegister struct {
	Name  string
	Value uint16
}
