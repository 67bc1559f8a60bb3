package simulator

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/core-tools/procsim/pkg/console"
	"github.com/core-tools/procsim/pkg/errors"
	"github.com/core-tools/procsim/pkg/logging"
)

// Run schedules until the stop key, a signal, or the configured run
// duration, then renders the table. All three end the run normally.
func (s *Simulator) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.NewValidationError("context cannot be nil", nil)
	}

	if duration := s.config.Simulator.RunDuration; duration > 0 {
		s.logger.Infof("Using RUN DURATION of %v", duration)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.logger.Infof("Simulator running, stop key: %q", s.config.Simulator.StopRune())

	err := s.scheduler.Run(ctx)

	stats := s.scheduler.Stats()
	s.logger.Infof("Simulator stopped, steps: %d, runs: %v, selections: %v", stats.Steps, stats.Runs, stats.Selections)

	return err
}

// Run opens the console, runs the configured simulation and restores the
// terminal afterwards. A nil open picks the terminal or stdin reader.
func Run(ctx context.Context, config *SimulatorConfig, open console.OpenInput, renderer *console.Renderer, logger logging.Logger) error {
	logger.Infof("Simulator runner starting...")

	if err := ValidateConfig(config); err != nil {
		return errors.NewValidationError("configuration validation failed", err)
	}

	ui, err := console.Open(open, renderer, config.Simulator.StopRune(), logger)
	if err != nil {
		return errors.NewInternalError("failed to open console", err)
	}
	defer func() {
		if err := ui.Close(); err != nil {
			logger.Warnf("Failed to close console: %v", err)
		}
	}()

	sim, err := NewSimulator(config, ui, Options{}, logger)
	if err != nil {
		return err
	}

	if err := ui.Banner(); err != nil {
		logger.Warnf("Failed to print banner: %v", err)
	}

	if err := sim.Run(ctx); err != nil {
		return err
	}

	logger.Infof("Simulator runner stopped")
	return nil
}

// ValidateConfigFile validates a configuration file without running it
func ValidateConfigFile(configFile string) (*SimulatorConfig, error) {
	config, err := LoadConfigFromFile(configFile)
	if err != nil {
		return nil, err
	}

	if err := ValidateConfig(config); err != nil {
		return nil, errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}

	return config, nil
}

// ConfigSummary provides a high-level overview of configuration
type ConfigSummary struct {
	LogLevel           string           `json:"log_level"`
	LogBackend         string           `json:"log_backend"`
	StopKey            string           `json:"stop_key"`
	RunDuration        string           `json:"run_duration"`
	TotalProcesses     int              `json:"total_processes"`
	ScheduledProcesses int              `json:"scheduled_processes"`
	Processes          []ProcessSummary `json:"processes"`
	Error              string           `json:"error,omitempty"`
}

type ProcessSummary struct {
	ID       int     `json:"id,omitempty"`
	Parent   int     `json:"parent,omitempty"`
	Name     string  `json:"name"`
	Priority string  `json:"priority"`
	Weight   float64 `json:"weight"`
}

// GetConfigSummary returns a human-readable summary of the configuration
func GetConfigSummary(config *SimulatorConfig) ConfigSummary {
	if config == nil {
		return ConfigSummary{Error: "configuration is nil"}
	}

	summary := ConfigSummary{
		LogLevel:    config.Simulator.LogLevel,
		LogBackend:  config.Simulator.LogBackend,
		StopKey:     config.Simulator.StopKey,
		RunDuration: config.Simulator.RunDuration.String(),
		Processes:   make([]ProcessSummary, 0, len(config.Processes)),
	}

	for _, proc := range config.Processes {
		summary.Processes = append(summary.Processes, ProcessSummary{
			ID:       proc.ID,
			Parent:   proc.Parent,
			Name:     proc.Name,
			Priority: proc.Priority,
			Weight:   proc.Weight,
		})
		if proc.Weight > 0 {
			summary.ScheduledProcesses++
		}
	}
	summary.TotalProcesses = len(summary.Processes)

	return summary
}
