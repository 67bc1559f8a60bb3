package console

import (
	"github.com/core-tools/procsim/pkg/errors"
	"github.com/core-tools/procsim/pkg/logging"
)

const DefaultStopKey = 'q'

// Console is the operator side of a run: key polling in, report out.
type Console struct {
	poller   *KeyPoller
	renderer *Renderer
	stopKey  rune
}

func New(poller *KeyPoller, renderer *Renderer, stopKey rune) *Console {
	return &Console{
		poller:   poller,
		renderer: renderer,
		stopKey:  stopKey,
	}
}

// Open opens keyboard input with open and starts polling it for stopKey.
func Open(open OpenInput, renderer *Renderer, stopKey rune, logger logging.Logger) (*Console, error) {
	if open == nil {
		open = DefaultOpenInput()
	}
	if renderer == nil {
		return nil, errors.NewValidationError("renderer cannot be nil", nil)
	}

	input, err := open()
	if err != nil {
		return nil, errors.NewIOError("failed to open keyboard input", err)
	}

	return New(NewKeyPoller(input, stopKey, logger), renderer, stopKey), nil
}

func (c *Console) StopRequested() bool {
	return c.poller.StopRequested()
}

func (c *Console) Render(record Record) error {
	return c.renderer.Render(record)
}

func (c *Console) Banner() error {
	return c.renderer.Banner(c.stopKey)
}

func (c *Console) Close() error {
	if err := c.poller.Close(); err != nil {
		return errors.NewIOError("failed to restore terminal", err)
	}
	return nil
}
