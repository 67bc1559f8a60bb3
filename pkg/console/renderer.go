package console

import (
	"fmt"
	"io"
	"os"

	"github.com/core-tools/procsim/pkg/process"

	"github.com/fatih/color"
	isatty "github.com/mattn/go-isatty"
)

type field struct {
	label string
	value interface{}
}

// Renderer prints report records and operator messages.
type Renderer struct {
	out      io.Writer
	label    *color.Color
	banner   *color.Color
	statuses map[process.Status]*color.Color
}

// NewRenderer writes to out; colorize turns ANSI colors on or off
// regardless of the global fatih/color setting.
func NewRenderer(out io.Writer, colorize bool) *Renderer {
	r := &Renderer{
		out:    out,
		label:  color.New(color.FgCyan),
		banner: color.New(color.FgGreen, color.Bold),
		statuses: map[process.Status]*color.Color{
			process.StatusRunning: color.New(color.FgGreen),
			process.StatusReady:   color.New(color.FgYellow),
			process.StatusStopped: color.New(color.FgRed),
		},
	}
	for _, c := range r.colors() {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// NewStdoutRenderer colors output only when stdout is a terminal.
func NewStdoutRenderer() *Renderer {
	fd := os.Stdout.Fd()
	return NewRenderer(os.Stdout, isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}

func (r *Renderer) colors() []*color.Color {
	colors := []*color.Color{r.label, r.banner}
	for _, c := range r.statuses {
		colors = append(colors, c)
	}
	return colors
}

// Banner tells the operator how to interrupt the run.
func (r *Renderer) Banner(stopKey rune) error {
	_, err := fmt.Fprintf(r.out, "%s\n%s\n",
		r.banner.Sprint("Executing processes..."),
		r.banner.Sprintf("Press '%c' to interrupt execution.", stopKey))
	return err
}

// Render prints one record as a blank-line separated block.
func (r *Renderer) Render(record Record) error {
	status := fmt.Sprint(record.Status)
	if c, ok := r.statuses[record.Status]; ok {
		status = c.Sprint(record.Status)
	}

	fields := []field{
		{"Process id", record.ID},
		{"Process name", record.Name},
		{"Process priority", record.Priority},
		{"Process status", status},
	}
	for _, reg := range record.Registers.Named() {
		fields = append(fields, field{"Process " + reg.Name, reg.Value})
	}
	fields = append(fields,
		field{"Next process", record.NextSibling()},
		field{"Execution time", fmt.Sprintf("%d seconds", record.ElapsedSeconds)},
	)

	if _, err := fmt.Fprintln(r.out); err != nil {
		return err
	}
	for _, f := range fields {
		if _, err := fmt.Fprintf(r.out, "%s %v\n", r.label.Sprint(f.label+":"), f.value); err != nil {
			return err
		}
	}
	return nil
}
