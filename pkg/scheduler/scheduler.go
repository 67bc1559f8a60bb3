package scheduler

import (
	"context"
	"iter"
	"math/rand"
	"sync"
	"time"

	"github.com/core-tools/procsim/pkg/console"
	"github.com/core-tools/procsim/pkg/errors"
	"github.com/core-tools/procsim/pkg/logging"
	"github.com/core-tools/procsim/pkg/process"

	"github.com/jonboulle/clockwork"
)

// Table is the part of the process table the scheduler reads.
type Table interface {
	Find(id process.ID) (*process.Process, bool)
	NextSibling(id process.ID) (process.ID, bool)
	Traverse() iter.Seq[*process.Process]
}

// Console is polled for a stop request between steps and receives the
// final report, one record per process.
type Console interface {
	StopRequested() bool
	Render(record console.Record) error
}

// Random yields uniform draws in [0, 1). *rand.Rand satisfies it.
type Random interface {
	Float64() float64
}

// NewRandom returns a seeded generator; a zero seed uses the current time.
func NewRandom(seed int64) Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Action is what one step did to the selected process
type Action string

const (
	ActionMarkReady Action = "mark_ready" // stopped -> ready
	ActionRun       Action = "run"        // ready -> running -> stopped, with delay
	ActionStopStale Action = "stop_stale" // running on entry (inherited at fork) -> stopped, with delay
	ActionSkip      Action = "skip"       // nothing selected or process gone
)

type StepResult struct {
	Draw      float64
	ProcessID process.ID
	Action    Action
}

type SchedulerOptions struct {
	Bands        []Band
	ServiceTimes ServiceTimes
	Clock        clockwork.Clock // real clock when nil
	Random       Random          // NewRandom(0) when nil
}

// Stats counts what the loop has done so far
type Stats struct {
	Steps      int
	Selections map[process.ID]int
	Runs       map[process.ID]int
}

// Scheduler picks one process per step by weighted random draw and moves it
// one lifecycle step forward. A run step blocks for the process's service
// time; nothing else happens until it returns. Stop requests are only
// looked at between steps.
type Scheduler struct {
	table   Table
	options SchedulerOptions
	console Console
	logger  logging.Logger
	stats   Stats
	mutex   sync.Mutex
}

func NewScheduler(table Table, options SchedulerOptions, ui Console, logger logging.Logger) (*Scheduler, error) {
	if table == nil {
		return nil, errors.NewValidationError("process table cannot be nil", nil)
	}
	if ui == nil {
		return nil, errors.NewValidationError("console cannot be nil", nil)
	}
	if err := ValidateBands(options.Bands); err != nil {
		return nil, errors.NewValidationError("invalid scheduling bands", err)
	}
	if options.ServiceTimes == nil {
		options.ServiceTimes = DefaultServiceTimes()
	}
	if err := ValidateServiceTimes(options.ServiceTimes); err != nil {
		return nil, errors.NewValidationError("invalid service times", err)
	}
	if options.Clock == nil {
		options.Clock = clockwork.NewRealClock()
	}
	if options.Random == nil {
		options.Random = NewRandom(0)
	}

	return &Scheduler{
		table:   table,
		options: options,
		console: ui,
		logger:  logger,
		stats: Stats{
			Selections: make(map[process.ID]int),
			Runs:       make(map[process.ID]int),
		},
	}, nil
}

// Select returns the process whose band contains r
func (s *Scheduler) Select(r float64) (process.ID, bool) {
	for _, band := range s.options.Bands {
		if band.contains(r) {
			return band.ProcessID, true
		}
	}
	return process.NoID, false
}

// Step performs one draw and one lifecycle step. A ready process runs to
// completion, including its service time, before Step returns.
func (s *Scheduler) Step() StepResult {
	r := s.options.Random.Float64()
	result := StepResult{Draw: r, Action: ActionSkip}

	id, selected := s.Select(r)
	s.recordStep(id, selected)
	if !selected {
		s.logger.Warnf("Draw matched no band, draw: %v", r)
		return result
	}
	result.ProcessID = id

	proc, exists := s.table.Find(id)
	if !exists {
		s.logger.Warnf("Selected process no longer exists, pid: %d", id)
		return result
	}

	switch proc.Status() {
	case process.StatusStopped:
		proc.MarkReady()
		result.Action = ActionMarkReady
		s.logger.Debugf("Process marked ready, pid: %d, name: %s", id, proc.Name())

	case process.StatusReady, process.StatusRunning:
		result.Action = s.run(proc)
	}

	return result
}

// run occupies the CPU for the process's service time. A process that was
// already running (inherited at fork) keeps its unset start time but still
// serves its time before stopping.
func (s *Scheduler) run(proc *process.Process) Action {
	action := ActionRun
	if !proc.TransitionToRunning(s.options.Clock.Now()) {
		action = ActionStopStale
		s.logger.Warnf("Process was already running, pid: %d, name: %s", proc.ID(), proc.Name())
	}

	serviceTime := s.options.ServiceTimes.For(proc.Priority())
	s.logger.Infof("Executing process, pid: %d, name: %s, status: %s, service_time: %v",
		proc.ID(), proc.Name(), proc.Status(), serviceTime)

	s.options.Clock.Sleep(serviceTime)

	proc.TransitionToStopped(s.options.Clock.Now())
	s.recordRun(proc.ID())

	s.logger.Infof("Process execution finished, pid: %d, name: %s, status: %s, elapsed: %ds",
		proc.ID(), proc.Name(), proc.Status(), proc.ElapsedSeconds())
	return action
}

// Run steps until the console asks to stop or ctx is done, then renders
// the whole table. Both are checked only after a step has completed.
func (s *Scheduler) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.NewValidationError("context cannot be nil", nil)
	}

	s.logger.Infof("Scheduler starting, bands: %d", len(s.options.Bands))

	for {
		s.Step()

		if s.console.StopRequested() {
			s.logger.Infof("Stop requested, interrupting execution")
			return s.Report()
		}
		if ctx.Err() != nil {
			s.logger.Infof("Scheduler context done, interrupting execution: %v", ctx.Err())
			return s.Report()
		}
	}
}

// Report renders every process in traversal order.
func (s *Scheduler) Report() error {
	errorCollection := errors.NewErrorCollection()
	count := 0
	for proc := range s.table.Traverse() {
		next, hasNext := s.table.NextSibling(proc.ID())
		if err := s.console.Render(console.NewRecord(proc.Snapshot(), next, hasNext)); err != nil {
			errorCollection.Add(errors.NewIOError("failed to render process", err).WithContext("pid", int(proc.ID())))
		}
		count++
	}

	s.logger.Infof("Rendered %d processes", count)

	if errorCollection.HasErrors() {
		return errorCollection.ToError()
	}
	return nil
}

func (s *Scheduler) Stats() Stats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stats := Stats{
		Steps:      s.stats.Steps,
		Selections: make(map[process.ID]int, len(s.stats.Selections)),
		Runs:       make(map[process.ID]int, len(s.stats.Runs)),
	}
	for id, n := range s.stats.Selections {
		stats.Selections[id] = n
	}
	for id, n := range s.stats.Runs {
		stats.Runs[id] = n
	}
	return stats
}

func (s *Scheduler) recordStep(id process.ID, selected bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stats.Steps++
	if selected {
		s.stats.Selections[id]++
	}
}

func (s *Scheduler) recordRun(id process.ID) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stats.Runs[id]++
}
