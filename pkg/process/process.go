package process

import (
	"time"

	"github.com/core-tools/procsim/pkg/errors"
)

// Process is one simulated process. Priority is fixed at creation; status
// and timing change only through the transition methods below. Transitions
// whose precondition does not hold are silent no-ops and report false.
//
// A Process is not safe for concurrent mutation. The scheduler is its only writer.
type Process struct {
	id        ID
	name      string
	priority  Priority
	status    Status
	registers Registers
	startTime time.Time
	endTime   time.Time
}

// New creates a stopped process with zero timestamps and fresh registers.
func New(id ID, name string, priority Priority, source RegisterSource) (*Process, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := ValidatePriority(priority); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, errors.NewValidationError("register source cannot be nil", nil)
	}

	return &Process{
		id:        id,
		name:      name,
		priority:  priority,
		status:    StatusStopped,
		registers: source.Registers(),
	}, nil
}

// Fork creates a child that inherits the parent's current status, the way a
// forked child inherits running state. Timestamps start unset and the child
// gets its own register snapshot.
func (p *Process) Fork(id ID, name string, priority Priority, source RegisterSource) (*Process, error) {
	child, err := New(id, name, priority, source)
	if err != nil {
		return nil, err
	}
	child.status = p.status
	return child, nil
}

func (p *Process) ID() ID {
	return p.id
}

func (p *Process) Name() string {
	return p.name
}

func (p *Process) Priority() Priority {
	return p.priority
}

func (p *Process) Status() Status {
	return p.status
}

func (p *Process) Registers() Registers {
	return p.registers
}

// StartTime is zero until the process first runs
func (p *Process) StartTime() time.Time {
	return p.startTime
}

// EndTime is zero until the process first stops after running
func (p *Process) EndTime() time.Time {
	return p.endTime
}

func (p *Process) RegenerateRegisters(source RegisterSource) {
	p.registers = source.Registers()
}

// MarkReady moves a stopped process to ready.
func (p *Process) MarkReady() bool {
	if p.status != StatusStopped {
		return false
	}
	p.status = StatusReady
	return true
}

// TransitionToRunning moves a ready process to running. The start time is
// recorded only on the first run so it spans every later cycle.
func (p *Process) TransitionToRunning(now time.Time) bool {
	if p.status != StatusReady {
		return false
	}
	if p.startTime.IsZero() {
		p.startTime = truncate(now)
	}
	p.status = StatusRunning
	return true
}

// TransitionToStopped stops the process and stamps the end time.
func (p *Process) TransitionToStopped(now time.Time) {
	p.status = StatusStopped
	p.endTime = truncate(now)
}

// ElapsedSeconds is end minus start, or 0 when either is unset or the clock
// went backwards.
func (p *Process) ElapsedSeconds() uint64 {
	if p.startTime.IsZero() || p.endTime.IsZero() {
		return 0
	}
	start, end := p.startTime.Unix(), p.endTime.Unix()
	if end < start {
		return 0
	}
	return uint64(end - start)
}

// Snapshot is a point-in-time copy of a Process for reporting.
type Snapshot struct {
	ID             ID
	Name           string
	Priority       Priority
	Status         Status
	Registers      Registers
	StartTime      time.Time
	EndTime        time.Time
	ElapsedSeconds uint64
}

func (p *Process) Snapshot() Snapshot {
	return Snapshot{
		ID:             p.id,
		Name:           p.name,
		Priority:       p.priority,
		Status:         p.status,
		Registers:      p.registers,
		StartTime:      p.startTime,
		EndTime:        p.endTime,
		ElapsedSeconds: p.ElapsedSeconds(),
	}
}

// Timestamps have one second resolution.
func truncate(t time.Time) time.Time {
	return t.Truncate(time.Second)
}
