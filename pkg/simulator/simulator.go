package simulator

import (
	"fmt"

	"github.com/core-tools/procsim/pkg/errors"
	"github.com/core-tools/procsim/pkg/logging"
	"github.com/core-tools/procsim/pkg/process"
	"github.com/core-tools/procsim/pkg/processtable"
	"github.com/core-tools/procsim/pkg/scheduler"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Options overrides the sources of time and randomness. Zero values derive
// them from the configured seed and the real clock.
type Options struct {
	Clock     clockwork.Clock
	Random    scheduler.Random
	Registers process.RegisterSource
}

// Simulator is one configured run: the process table, the scheduler that
// drives it, and the console both report to.
type Simulator struct {
	config    *SimulatorConfig
	table     *processtable.Table
	scheduler *scheduler.Scheduler
	runID     string
	logger    logging.Logger
}

func NewSimulator(config *SimulatorConfig, ui scheduler.Console, options Options, logger logging.Logger) (*Simulator, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, errors.NewValidationError("configuration validation failed", err)
	}

	runID := uuid.New().String()
	runLogger := logging.WithPrefix(logger, fmt.Sprintf("run: %s , ", runID))

	if options.Registers == nil {
		options.Registers = process.NewRandomRegisterSource(config.Simulator.Seed)
	}
	if options.Random == nil {
		options.Random = scheduler.NewRandom(config.Simulator.Seed)
	}

	table, weights, err := BuildTable(config, options.Registers, runLogger)
	if err != nil {
		return nil, err
	}

	bands, err := scheduler.BandsFromWeights(weights)
	if err != nil {
		return nil, errors.NewValidationError("failed to build scheduling bands", err)
	}

	sched, err := scheduler.NewScheduler(table, scheduler.SchedulerOptions{
		Bands:        bands,
		ServiceTimes: config.Scheduler.ServiceTimes.toServiceTimes(),
		Clock:        options.Clock,
		Random:       options.Random,
	}, ui, runLogger)
	if err != nil {
		return nil, errors.NewInternalError("failed to create scheduler", err)
	}

	runLogger.Infof("Simulator created, processes: %d, bands: %d", table.Len(), len(bands))

	return &Simulator{
		config:    config,
		table:     table,
		scheduler: sched,
		runID:     runID,
		logger:    runLogger,
	}, nil
}

// BuildTable creates the configured tree and returns it along with the
// scheduling weight of every process that has one, keyed by its real id.
func BuildTable(config *SimulatorConfig, source process.RegisterSource, logger logging.Logger) (*processtable.Table, []scheduler.Weighted, error) {
	if config == nil || len(config.Processes) == 0 {
		return nil, nil, errors.NewValidationError("no processes configured", nil)
	}

	table := processtable.New(source, logger)
	weights := make([]scheduler.Weighted, 0, len(config.Processes))

	root := config.Processes[0]
	priority, err := process.ParsePriority(root.Priority)
	if err != nil {
		return nil, nil, err
	}
	rootPID, err := table.CreateRoot(root.Name, priority)
	if err != nil {
		return nil, nil, errors.NewInternalError("failed to create root process", err)
	}
	if root.Weight > 0 {
		weights = append(weights, scheduler.Weighted{ProcessID: rootPID, Weight: root.Weight})
	}

	for i, proc := range config.Processes[1:] {
		priority, err := process.ParsePriority(proc.Priority)
		if err != nil {
			return nil, nil, err
		}

		parentPID := rootPID
		if proc.Parent != 0 {
			parentPID = process.ID(proc.Parent)
		}

		pid, err := table.Fork(parentPID, proc.Name, priority, process.ID(proc.ID))
		if err != nil {
			if domainErr, ok := err.(*errors.DomainError); ok {
				return nil, nil, domainErr.WithContext("process_index", i+1)
			}
			return nil, nil, err
		}
		if proc.Weight > 0 {
			weights = append(weights, scheduler.Weighted{ProcessID: pid, Weight: proc.Weight})
		}
	}

	return table, weights, nil
}

func (s *Simulator) Table() *processtable.Table {
	return s.table
}

func (s *Simulator) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

func (s *Simulator) RunID() string {
	return s.runID
}
