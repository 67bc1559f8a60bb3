package console

import (
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/core-tools/procsim/pkg/logging"

	isatty "github.com/mattn/go-isatty"
	tty "github.com/mattn/go-tty"
)

type TerminalInput interface {
	ReadRune() (rune, error)
	Close() error
}

type OpenInput func() (TerminalInput, error)

// TTYOpen puts the controlling terminal into non-canonical, no-echo mode so
// single key presses arrive without Enter. Close restores it.
func TTYOpen() (TerminalInput, error) {
	return tty.Open()
}

// StdinOpen reads runes from standard input as they arrive. Used when stdin
// is a pipe or file, where keys come in line by line.
func StdinOpen() (TerminalInput, error) {
	return NewReaderInput(os.Stdin), nil
}

// DefaultOpenInput picks TTYOpen when stdin is a terminal, StdinOpen otherwise.
func DefaultOpenInput() OpenInput {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return TTYOpen
	}
	return StdinOpen
}

type readerInput struct {
	reader *bufio.Reader
}

// NewReaderInput adapts any reader; Close does not close the reader.
func NewReaderInput(r io.Reader) TerminalInput {
	return &readerInput{reader: bufio.NewReader(r)}
}

func (i *readerInput) ReadRune() (rune, error) {
	r, _, err := i.reader.ReadRune()
	return r, err
}

func (i *readerInput) Close() error {
	return nil
}

// KeyPoller reads keys on its own goroutine and answers StopRequested
// without blocking. The goroutine touches nothing but its channel.
type KeyPoller struct {
	input     TerminalInput
	stopKey   rune
	keys      chan rune
	logger    logging.Logger
	closeOnce sync.Once
}

const keyBufferSize = 64

func NewKeyPoller(input TerminalInput, stopKey rune, logger logging.Logger) *KeyPoller {
	p := &KeyPoller{
		input:   input,
		stopKey: stopKey,
		keys:    make(chan rune, keyBufferSize),
		logger:  logger,
	}
	go p.readKeys()
	return p
}

func (p *KeyPoller) readKeys() {
	defer close(p.keys)
	for {
		r, err := p.input.ReadRune()
		if err != nil {
			if err != io.EOF {
				p.logger.Warnf("Keyboard input stopped: %v", err)
			} else {
				p.logger.Debugf("Keyboard input reached end of file")
			}
			return
		}
		p.keys <- r
	}
}

// StopRequested drains pending keys and reports whether the stop key was
// among them. Other keys are discarded. Only the scheduler loop calls it.
func (p *KeyPoller) StopRequested() bool {
	for {
		select {
		case r, ok := <-p.keys:
			if !ok {
				p.keys = nil
				return false
			}
			if r == p.stopKey {
				p.logger.Infof("Key '%c' pressed", r)
				return true
			}
		default:
			return false
		}
	}
}

// Close restores the terminal. Safe to call more than once.
func (p *KeyPoller) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.input.Close()
	})
	return err
}
