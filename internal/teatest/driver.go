// Package teatest drives bubbletea models synchronously in tests.
//
// A Driver calls Update directly and executes the returned Cmds inline,
// feeding their messages back until nothing is left. Cmds that block (timers,
// tickers) are abandoned after a short timeout.
package teatest

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// MaxDrainDepth bounds Cmd chains so a self-rescheduling Cmd cannot hang a
// test.
const MaxDrainDepth = 100

const cmdTimeout = 10 * time.Millisecond

// Driver is a synchronous harness for any tea.Model.
type Driver struct {
	T     *testing.T
	Model tea.Model

	// Quitting is set once a Cmd yields tea.QuitMsg. Later sends are ignored.
	Quitting bool
}

type Option func(*Driver)

// WithSize delivers a WindowSizeMsg before anything else.
func WithSize(w, h int) Option {
	return func(d *Driver) {
		d.Send(tea.WindowSizeMsg{Width: w, Height: h})
	}
}

// New wraps model, runs its Init Cmd and applies opts.
func New(t *testing.T, model tea.Model, opts ...Option) *Driver {
	t.Helper()
	d := &Driver{T: t, Model: model}
	d.drain(model.Init(), 0)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send dispatches msg through Update and drains the resulting Cmds.
func (d *Driver) Send(msg tea.Msg) {
	d.T.Helper()
	if d.Quitting {
		return
	}
	updated, cmd := d.Model.Update(msg)
	d.Model = updated
	d.drain(cmd, 0)
}

func (d *Driver) press(t tea.KeyType) { d.Send(tea.KeyMsg{Type: t}) }

// PressKey sends a rune key such as 'q'.
func (d *Driver) PressKey(r rune) {
	d.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

// Type sends each rune of s as a key press.
func (d *Driver) Type(s string) {
	for _, r := range s {
		d.PressKey(r)
	}
}

// PressCtrlC sends ctrl+c.
func (d *Driver) PressCtrlC() { d.press(tea.KeyCtrlC) }

func (d *Driver) PressEnter() { d.press(tea.KeyEnter) }
func (d *Driver) PressEsc()   { d.press(tea.KeyEsc) }
func (d *Driver) PressUp()    { d.press(tea.KeyUp) }
func (d *Driver) PressDown()  { d.press(tea.KeyDown) }
func (d *Driver) PressLeft()  { d.press(tea.KeyLeft) }
func (d *Driver) PressRight() { d.press(tea.KeyRight) }

// PressDownN presses Down n times.
func (d *Driver) PressDownN(n int) {
	for range n {
		d.PressDown()
	}
}

// View renders the current model.
func (d *Driver) View() string {
	return d.Model.View()
}

func (d *Driver) drain(cmd tea.Cmd, depth int) {
	d.T.Helper()
	if cmd == nil {
		return
	}
	if depth >= MaxDrainDepth {
		d.T.Logf("teatest: drain depth limit (%d) reached", MaxDrainDepth)
		return
	}

	msg := execWithTimeout(cmd)
	switch msg := msg.(type) {
	case nil:
		return
	case tea.BatchMsg:
		for _, sub := range msg {
			d.drain(sub, depth+1)
		}
	case tea.QuitMsg:
		d.Quitting = true
	default:
		updated, next := d.Model.Update(msg)
		d.Model = updated
		d.drain(next, depth+1)
	}
}

// execWithTimeout runs cmd and returns its message, or nil when it does not
// return within cmdTimeout.
func execWithTimeout(cmd tea.Cmd) tea.Msg {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(cmdTimeout):
		return nil
	}
}
