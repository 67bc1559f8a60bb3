package console

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/core-tools/procsim/pkg/errors"
	"github.com/core-tools/procsim/pkg/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestLogger struct {
	mutex    sync.Mutex
	warnings []string
}

func (l *TestLogger) LogLevelf(level int, format string, args ...interface{}) {}
func (l *TestLogger) Debugf(format string, args ...interface{})               {}
func (l *TestLogger) Infof(format string, args ...interface{})                {}
func (l *TestLogger) Errorf(format string, args ...interface{})               {}
func (l *TestLogger) Warnf(format string, args ...interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func (l *TestLogger) Warnings() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]string(nil), l.warnings...)
}

// scriptedInput hands out runes as the test pushes them.
type scriptedInput struct {
	runes  chan rune
	mutex  sync.Mutex
	closes int
}

func newScriptedInput() *scriptedInput {
	return &scriptedInput{runes: make(chan rune)}
}

func (i *scriptedInput) ReadRune() (rune, error) {
	r, ok := <-i.runes
	if !ok {
		return 0, io.EOF
	}
	return r, nil
}

func (i *scriptedInput) Close() error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	i.closes++
	return nil
}

type failingInput struct{}

func (failingInput) ReadRune() (rune, error) { return 0, fmt.Errorf("device gone") }
func (failingInput) Close() error            { return fmt.Errorf("restore failed") }

func TestKeyPoller_StopKey(t *testing.T) {
	input := newScriptedInput()
	poller := NewKeyPoller(input, 'q', &TestLogger{})

	assert.False(t, poller.StopRequested(), "nothing typed yet")

	input.runes <- 'x'
	input.runes <- 'q'

	assert.Eventually(t, poller.StopRequested, time.Second, 5*time.Millisecond)
	assert.False(t, poller.StopRequested(), "stop key is consumed once")
	close(input.runes)
}

func TestKeyPoller_OtherKeysIgnored(t *testing.T) {
	poller := NewKeyPoller(NewReaderInput(strings.NewReader("abc Q\n")), 'q', &TestLogger{})
	assert.Never(t, poller.StopRequested, 100*time.Millisecond, 5*time.Millisecond)
}

func TestKeyPoller_ReaderInput(t *testing.T) {
	poller := NewKeyPoller(NewReaderInput(strings.NewReader("xyq\n")), 'q', &TestLogger{})
	assert.Eventually(t, poller.StopRequested, time.Second, 5*time.Millisecond)
}

func TestKeyPoller_CustomStopKey(t *testing.T) {
	poller := NewKeyPoller(NewReaderInput(strings.NewReader("qqs")), 's', &TestLogger{})
	assert.Eventually(t, poller.StopRequested, time.Second, 5*time.Millisecond)
}

func TestKeyPoller_InputFailure(t *testing.T) {
	logger := &TestLogger{}
	poller := NewKeyPoller(failingInput{}, 'q', logger)

	assert.Eventually(t, func() bool { return len(logger.Warnings()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, logger.Warnings()[0], "device gone")

	// A dead input never blocks or reports a stop.
	assert.False(t, poller.StopRequested())
	assert.False(t, poller.StopRequested())
}

func TestKeyPoller_CloseOnce(t *testing.T) {
	input := newScriptedInput()
	poller := NewKeyPoller(input, 'q', &TestLogger{})

	require.NoError(t, poller.Close())
	require.NoError(t, poller.Close())

	input.mutex.Lock()
	assert.Equal(t, 1, input.closes)
	input.mutex.Unlock()
	close(input.runes)
}

func testRecord() Record {
	return Record{
		ID:       123,
		Name:     "Child 1",
		Priority: process.PriorityMedium,
		Status:   process.StatusStopped,
		Registers: process.Registers{
			EAX: 1, EBX: 2, ECX: 3, EDX: 4, ESI: 5, EDI: 6, EBP: 7, ESP: 65535,
		},
		NextSiblingID:  321,
		HasNextSibling: true,
		ElapsedSeconds: 4,
	}
}

func TestRenderer_Render(t *testing.T) {
	var out bytes.Buffer
	renderer := NewRenderer(&out, false)

	require.NoError(t, renderer.Render(testRecord()))

	expected := strings.Join([]string{
		"",
		"Process id: 123",
		"Process name: Child 1",
		"Process priority: medium",
		"Process status: stopped",
		"Process EAX: 1",
		"Process EBX: 2",
		"Process ECX: 3",
		"Process EDX: 4",
		"Process ESI: 5",
		"Process EDI: 6",
		"Process EBP: 7",
		"Process ESP: 65535",
		"Next process: 321",
		"Execution time: 4 seconds",
		"",
	}, "\n")
	assert.Equal(t, expected, out.String())
}

func TestRenderer_LastSibling(t *testing.T) {
	var out bytes.Buffer
	renderer := NewRenderer(&out, false)

	record := testRecord()
	record.HasNextSibling = false
	record.NextSiblingID = 0

	require.NoError(t, renderer.Render(record))
	assert.Contains(t, out.String(), "Next process: none\n")
}

func TestRenderer_Colorized(t *testing.T) {
	var plain, colored bytes.Buffer
	require.NoError(t, NewRenderer(&plain, false).Render(testRecord()))
	require.NoError(t, NewRenderer(&colored, true).Render(testRecord()))

	assert.NotContains(t, plain.String(), "\x1b[")
	assert.Contains(t, colored.String(), "\x1b[")
	assert.Contains(t, colored.String(), "Child 1")
}

func TestRenderer_Banner(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewRenderer(&out, false).Banner('q'))
	assert.Equal(t, "Executing processes...\nPress 'q' to interrupt execution.\n", out.String())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, fmt.Errorf("disk full") }

func TestRenderer_WriteFailure(t *testing.T) {
	assert.Error(t, NewRenderer(failingWriter{}, false).Render(testRecord()))
}

func TestNextSibling(t *testing.T) {
	assert.Equal(t, "none", Record{}.NextSibling())
	assert.Equal(t, "321", Record{NextSiblingID: 321, HasNextSibling: true}.NextSibling())
}

func TestOpen(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var out bytes.Buffer
		open := func() (TerminalInput, error) {
			return NewReaderInput(strings.NewReader("q")), nil
		}

		c, err := Open(open, NewRenderer(&out, false), DefaultStopKey, &TestLogger{})
		require.NoError(t, err)
		defer c.Close()

		require.NoError(t, c.Banner())
		assert.Eventually(t, c.StopRequested, time.Second, 5*time.Millisecond)
		require.NoError(t, c.Render(testRecord()))
		assert.Contains(t, out.String(), "Press 'q' to interrupt execution.")
		assert.Contains(t, out.String(), "Process name: Child 1")
	})

	t.Run("open_failure", func(t *testing.T) {
		open := func() (TerminalInput, error) {
			return nil, fmt.Errorf("no tty")
		}

		_, err := Open(open, NewRenderer(io.Discard, false), DefaultStopKey, &TestLogger{})
		require.Error(t, err)
		assert.True(t, errors.IsIOError(err))
	})

	t.Run("nil_renderer", func(t *testing.T) {
		_, err := Open(func() (TerminalInput, error) { return newScriptedInput(), nil }, nil, DefaultStopKey, &TestLogger{})
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("close_failure", func(t *testing.T) {
		c, err := Open(func() (TerminalInput, error) { return failingInput{}, nil }, NewRenderer(io.Discard, false), DefaultStopKey, &TestLogger{})
		require.NoError(t, err)
		assert.True(t, errors.IsIOError(c.Close()))
	})
}
