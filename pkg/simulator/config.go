package simulator

import (
	"fmt"
	"os"
	"time"

	"github.com/core-tools/procsim/pkg/errors"
	"github.com/core-tools/procsim/pkg/logging"
	"github.com/core-tools/procsim/pkg/process"
	"github.com/core-tools/procsim/pkg/scheduler"

	"gopkg.in/yaml.v3"
)

// SimulatorConfig represents the top-level configuration file structure
type SimulatorConfig struct {
	Simulator SimulatorOptions `yaml:"simulator"`
	Scheduler SchedulerConfig  `yaml:"scheduler"`
	Processes []ProcessConfig  `yaml:"processes"`
}

// SimulatorOptions represents run-level configuration
type SimulatorOptions struct {
	LogLevel    string        `yaml:"log_level,omitempty"`
	LogFormat   string        `yaml:"log_format,omitempty"`  // zap encoder: console or json
	LogBackend  string        `yaml:"log_backend,omitempty"` // zap or sprintf
	StopKey     string        `yaml:"stop_key,omitempty"`
	Seed        int64         `yaml:"seed,omitempty"`         // 0 seeds from the clock
	RunDuration time.Duration `yaml:"run_duration,omitempty"` // 0 runs until stopped
}

type SchedulerConfig struct {
	ServiceTimes ServiceTimesConfig `yaml:"service_times"`
}

// ServiceTimesConfig uses pointers so an explicit zero survives defaulting
type ServiceTimesConfig struct {
	High   *time.Duration `yaml:"high,omitempty"`
	Medium *time.Duration `yaml:"medium,omitempty"`
	Low    *time.Duration `yaml:"low,omitempty"`
}

// ProcessConfig describes one process of the initial tree. The first entry
// is the root; its id is always allocated. Parent 0 means the root, any
// other parent must be the explicit id of an earlier entry. ID 0 lets the
// table allocate one. Processes with weight 0 are never scheduled.
type ProcessConfig struct {
	ID       int     `yaml:"id,omitempty"`
	Parent   int     `yaml:"parent,omitempty"`
	Name     string  `yaml:"name"`
	Priority string  `yaml:"priority,omitempty"`
	Weight   float64 `yaml:"weight"`
}

const (
	LogBackendZap     = "zap"
	LogBackendSprintf = "sprintf"
)

// DefaultConfig is the default tree: Parent with Child 1 and Child 2.
func DefaultConfig() *SimulatorConfig {
	config := &SimulatorConfig{
		Processes: []ProcessConfig{
			{Name: "Parent", Priority: string(process.PriorityHigh), Weight: 0.5},
			{ID: 123, Name: "Child 1", Priority: string(process.PriorityMedium), Weight: 0.3},
			{ID: 321, Name: "Child 2", Priority: string(process.PriorityLow), Weight: 0.2},
		},
	}
	setConfigDefaults(config)
	return config
}

// LoadConfigFromFile loads simulator configuration from a YAML file
func LoadConfigFromFile(filename string) (*SimulatorConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config SimulatorConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	setConfigDefaults(&config)

	return &config, nil
}

// setConfigDefaults applies default values to configuration
func setConfigDefaults(config *SimulatorConfig) {
	if config.Simulator.LogLevel == "" {
		config.Simulator.LogLevel = "info"
	}
	if config.Simulator.LogFormat == "" {
		config.Simulator.LogFormat = "console"
	}
	if config.Simulator.LogBackend == "" {
		config.Simulator.LogBackend = LogBackendZap
	}
	if config.Simulator.StopKey == "" {
		config.Simulator.StopKey = "q"
	}

	defaults := scheduler.DefaultServiceTimes()
	times := &config.Scheduler.ServiceTimes
	if times.High == nil {
		high := defaults.For(process.PriorityHigh)
		times.High = &high
	}
	if times.Medium == nil {
		medium := defaults.For(process.PriorityMedium)
		times.Medium = &medium
	}
	if times.Low == nil {
		low := defaults.For(process.PriorityLow)
		times.Low = &low
	}

	if len(config.Processes) == 0 {
		config.Processes = DefaultConfig().Processes
	}
	for i := range config.Processes {
		if config.Processes[i].Priority == "" {
			config.Processes[i].Priority = string(process.PriorityMedium)
		}
	}
}

// ValidateConfig validates the entire configuration structure and reports
// every problem found, not just the first.
func ValidateConfig(config *SimulatorConfig) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	errorCollection := errors.NewErrorCollection()

	if err := validateSimulatorOptions(&config.Simulator); err != nil {
		errorCollection.Add(errors.NewValidationError("invalid simulator configuration", err))
	}
	if err := scheduler.ValidateServiceTimes(config.Scheduler.ServiceTimes.toServiceTimes()); err != nil {
		errorCollection.Add(errors.NewValidationError("invalid scheduler configuration", err))
	}
	if err := validateProcessesConfig(config.Processes); err != nil {
		errorCollection.Add(errors.NewValidationError("invalid processes configuration", err))
	}

	return errorCollection.ToError()
}

// StopRune returns the configured stop key, defaulting to q
func (o SimulatorOptions) StopRune() rune {
	for _, r := range o.StopKey {
		return r
	}
	return 'q'
}

func (c ServiceTimesConfig) toServiceTimes() scheduler.ServiceTimes {
	times := scheduler.ServiceTimes{}
	if c.High != nil {
		times[process.PriorityHigh] = *c.High
	}
	if c.Medium != nil {
		times[process.PriorityMedium] = *c.Medium
	}
	if c.Low != nil {
		times[process.PriorityLow] = *c.Low
	}
	return times
}

// Validation functions

func validateSimulatorOptions(options *SimulatorOptions) error {
	if _, err := logging.ParseLevel(options.LogLevel); err != nil {
		return err
	}

	switch options.LogFormat {
	case "console", "json":
	default:
		return errors.NewValidationError(
			fmt.Sprintf("invalid log format: %s", options.LogFormat),
			nil,
		).WithContext("valid_formats", "console, json")
	}

	switch options.LogBackend {
	case LogBackendZap, LogBackendSprintf:
	default:
		return errors.NewValidationError(
			fmt.Sprintf("invalid log backend: %s", options.LogBackend),
			nil,
		).WithContext("valid_backends", "zap, sprintf")
	}

	if err := ValidateStopKey(options.StopKey); err != nil {
		return err
	}

	if err := ValidateRunDuration(options.RunDuration); err != nil {
		return err
	}

	return nil
}

func validateProcessesConfig(processes []ProcessConfig) error {
	if len(processes) == 0 {
		return errors.NewValidationError("at least the root process must be configured", nil)
	}

	root := processes[0]
	if root.ID != 0 || root.Parent != 0 {
		return errors.NewValidationError("root process cannot set id or parent", nil).
			WithContext("name", root.Name)
	}

	seenIDs := make(map[int]int)
	weights := make([]scheduler.Weighted, 0, len(processes))
	for i, proc := range processes {
		if err := validateProcessConfig(proc); err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("invalid process at index %d", i),
				err,
			).WithContext("name", proc.Name)
		}

		if proc.Parent != 0 {
			if _, exists := seenIDs[proc.Parent]; !exists {
				return errors.NewValidationError(
					fmt.Sprintf("parent %d of process at index %d is not an earlier process id", proc.Parent, i),
					nil,
				).WithContext("name", proc.Name)
			}
		}

		if proc.ID != 0 {
			if prevIndex, exists := seenIDs[proc.ID]; exists {
				return errors.NewValidationError(
					fmt.Sprintf("duplicate process id %d found at indices %d and %d", proc.ID, prevIndex, i),
					nil,
				)
			}
			seenIDs[proc.ID] = i
		}

		if proc.Weight > 0 {
			// Index-based ids; real ids are known only once the table is built.
			weights = append(weights, scheduler.Weighted{ProcessID: process.ID(i + 1), Weight: proc.Weight})
		}
	}

	if _, err := scheduler.BandsFromWeights(weights); err != nil {
		return err
	}

	return nil
}

func validateProcessConfig(proc ProcessConfig) error {
	if err := process.ValidateID(process.ID(proc.ID)); err != nil {
		return err
	}
	if proc.ID == rootID {
		return errors.NewValidationError(fmt.Sprintf("process id %d is reserved for the root", rootID), nil)
	}
	if err := process.ValidateName(proc.Name); err != nil {
		return err
	}
	if err := ValidatePriorityName(proc.Priority); err != nil {
		return err
	}
	if proc.Weight < 0 {
		return errors.NewValidationError(fmt.Sprintf("weight cannot be negative: %v", proc.Weight), nil)
	}
	return nil
}
