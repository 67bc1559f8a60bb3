package simulator

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/core-tools/procsim/pkg/console"
	"github.com/core-tools/procsim/pkg/errors"
	"github.com/core-tools/procsim/pkg/process"
	"github.com/core-tools/procsim/pkg/scheduler"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingConsole asks to stop after a fixed number of polls
type recordingConsole struct {
	mutex     sync.Mutex
	stopAfter int
	polls     int
	records   []console.Record
}

func (c *recordingConsole) StopRequested() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.polls++
	return c.stopAfter > 0 && c.polls >= c.stopAfter
}

func (c *recordingConsole) Render(record console.Record) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.records = append(c.records, record)
	return nil
}

func (c *recordingConsole) renderedIDs() []process.ID {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	ids := make([]process.ID, 0, len(c.records))
	for _, record := range c.records {
		ids = append(ids, record.ID)
	}
	return ids
}

func fastConfig() *SimulatorConfig {
	config := DefaultConfig()
	config.Simulator.Seed = 7
	config.Scheduler.ServiceTimes = ServiceTimesConfig{
		High:   durationPtr(0),
		Medium: durationPtr(0),
		Low:    durationPtr(0),
	}
	return config
}

func TestBuildTable_Default(t *testing.T) {
	table, weights, err := BuildTable(DefaultConfig(), process.NewRandomRegisterSource(1), &TestLogger{})
	require.NoError(t, err)

	var ids []process.ID
	for proc := range table.Traverse() {
		ids = append(ids, proc.ID())
	}
	assert.Equal(t, []process.ID{1, 123, 321}, ids)

	assert.Equal(t, []scheduler.Weighted{
		{ProcessID: 1, Weight: 0.5},
		{ProcessID: 123, Weight: 0.3},
		{ProcessID: 321, Weight: 0.2},
	}, weights)

	child, err := table.Get(321)
	require.NoError(t, err)
	assert.Equal(t, "Child 2", child.Name())
	assert.Equal(t, process.PriorityLow, child.Priority())
	assert.Equal(t, process.StatusStopped, child.Status())
}

func TestBuildTable_NestedAndAllocated(t *testing.T) {
	config := DefaultConfig()
	config.Processes = []ProcessConfig{
		{Name: "init", Priority: "high", Weight: 0.25},
		{Name: "daemon", Priority: "low", Weight: 0.25},
		{ID: 10, Name: "shell", Priority: "medium", Weight: 0.25},
		{Parent: 10, Name: "editor", Priority: "low", Weight: 0.25},
		{Parent: 10, Name: "pager", Priority: "low"},
	}
	require.NoError(t, ValidateConfig(config))

	table, weights, err := BuildTable(config, process.NewRandomRegisterSource(1), &TestLogger{})
	require.NoError(t, err)

	var ids []process.ID
	for proc := range table.Traverse() {
		ids = append(ids, proc.ID())
	}
	assert.Equal(t, []process.ID{1, 2, 10, 3, 4}, ids)

	parent, ok := table.Parent(3)
	require.True(t, ok)
	assert.Equal(t, process.ID(10), parent)
	assert.Equal(t, []process.ID{3, 4}, table.Children(10))

	require.Len(t, weights, 4, "pager has no weight")
	assert.Equal(t, process.ID(3), weights[3].ProcessID)
}

func TestBuildTable_AllocatedIDCollision(t *testing.T) {
	config := DefaultConfig()
	config.Processes = []ProcessConfig{
		{Name: "init", Priority: "high", Weight: 0.5},
		{Name: "first", Priority: "low", Weight: 0.25},
		{ID: 2, Name: "second", Priority: "low", Weight: 0.25},
	}

	_, _, err := BuildTable(config, process.NewRandomRegisterSource(1), &TestLogger{})
	require.Error(t, err)
	assert.True(t, errors.IsConflictError(err))
}

func TestNewSimulator(t *testing.T) {
	sim, err := NewSimulator(fastConfig(), &recordingConsole{}, Options{}, &TestLogger{})
	require.NoError(t, err)

	_, err = uuid.Parse(sim.RunID())
	assert.NoError(t, err)
	assert.Equal(t, 3, sim.Table().Len())
	assert.NotNil(t, sim.Scheduler())

	other, err := NewSimulator(fastConfig(), &recordingConsole{}, Options{}, &TestLogger{})
	require.NoError(t, err)
	assert.NotEqual(t, sim.RunID(), other.RunID())

	t.Run("invalid config", func(t *testing.T) {
		config := fastConfig()
		config.Processes[1].Priority = "urgent"
		_, err := NewSimulator(config, &recordingConsole{}, Options{}, &TestLogger{})
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("nil console", func(t *testing.T) {
		_, err := NewSimulator(fastConfig(), nil, Options{}, &TestLogger{})
		assert.True(t, errors.IsInternalError(err))
	})
}

func TestSimulator_RunUntilStopKey(t *testing.T) {
	ui := &recordingConsole{stopAfter: 50}
	sim, err := NewSimulator(fastConfig(), ui, Options{}, &TestLogger{})
	require.NoError(t, err)

	require.NoError(t, sim.Run(context.Background()))

	assert.Equal(t, []process.ID{1, 123, 321}, ui.renderedIDs())
	assert.Equal(t, 50, sim.Scheduler().Stats().Steps)
}

func TestSimulator_RunDuration(t *testing.T) {
	config := fastConfig()
	config.Simulator.RunDuration = 50 * time.Millisecond

	ui := &recordingConsole{}
	sim, err := NewSimulator(config, ui, Options{}, &TestLogger{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- sim.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run duration did not stop the simulator")
	}

	assert.Equal(t, []process.ID{1, 123, 321}, ui.renderedIDs())
	assert.Positive(t, sim.Scheduler().Stats().Steps)
}

func TestSimulator_RunCancelled(t *testing.T) {
	ui := &recordingConsole{}
	sim, err := NewSimulator(fastConfig(), ui, Options{}, &TestLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, sim.Run(ctx))
	assert.Len(t, ui.renderedIDs(), 3)
	assert.Equal(t, 1, sim.Scheduler().Stats().Steps, "a step completes before cancellation is seen")
}

func TestRun(t *testing.T) {
	t.Run("stop key from input", func(t *testing.T) {
		var out bytes.Buffer
		open := func() (console.TerminalInput, error) {
			return console.NewReaderInput(strings.NewReader("xq")), nil
		}

		err := Run(context.Background(), fastConfig(), open, console.NewRenderer(&out, false), &TestLogger{})
		require.NoError(t, err)

		output := out.String()
		assert.Contains(t, output, "Press 'q' to interrupt execution.")
		assert.Contains(t, output, "Process name: Parent")
		assert.Contains(t, output, "Process name: Child 1")
		assert.Contains(t, output, "Process name: Child 2")
		assert.Equal(t, 3, strings.Count(output, "Execution time: "))
		assert.Less(t, strings.Index(output, "Process id: 1\n"), strings.Index(output, "Process id: 123\n"))
		assert.Less(t, strings.Index(output, "Process id: 123\n"), strings.Index(output, "Process id: 321\n"))
	})

	t.Run("invalid config", func(t *testing.T) {
		config := fastConfig()
		config.Simulator.StopKey = "quit"

		err := Run(context.Background(), config, nil, console.NewRenderer(&bytes.Buffer{}, false), &TestLogger{})
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("console failure", func(t *testing.T) {
		open := func() (console.TerminalInput, error) {
			return nil, fmt.Errorf("no terminal")
		}

		err := Run(context.Background(), fastConfig(), open, console.NewRenderer(&bytes.Buffer{}, false), &TestLogger{})
		assert.True(t, errors.IsInternalError(err))
	})
}
