package cli

import (
	"context"
	"testing"

	"github.com/alexanderramin/arbor/internal/repository"
	"github.com/alexanderramin/arbor/internal/teatest"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// promptWith marks the app interactive and lets script answer the form.
func promptWith(t *testing.T, app *App, script func(d *teatest.Driver)) {
	t.Helper()
	app.IsInteractive = func() bool { return true }
	app.RunProgram = func(m tea.Model) error {
		d := teatest.New(t, m, teatest.WithSize(80, 20))
		script(d)
		return nil
	}
}

func TestInit_FormFillsMissingName(t *testing.T) {
	app := testApp(t)
	promptWith(t, app, func(d *teatest.Driver) {
		d.Type("Garden")
		d.PressEnter()
		d.PressEnter()
	})

	out := mustExecute(t, app, "init")
	assert.Contains(t, out, "Created Topic tree n1")

	app.RunProgram = nil
	out = mustExecute(t, app, "node", "get", "root")
	assert.Contains(t, out, "Garden")
}

func TestInit_FormSelectsType(t *testing.T) {
	app := testApp(t)
	promptWith(t, app, func(d *teatest.Driver) {
		d.Type("Margin note")
		d.PressEnter()
		d.PressDown()
		d.PressEnter()
	})

	out := mustExecute(t, app, "init")
	assert.Contains(t, out, "Created Annotation tree")
}

func TestInit_FormCancelled(t *testing.T) {
	app := testApp(t)
	promptWith(t, app, func(d *teatest.Driver) {
		d.Type("Half")
		d.PressCtrlC()
	})

	_, err := executeCmd(t, app, "init")
	require.ErrorIs(t, err, errCancelled)

	_, err = repository.NewSQLiteBlobRepo(app.DB).Get(context.Background(), currentBlob)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInit_NoFormWhenNameGiven(t *testing.T) {
	app := testApp(t)
	app.IsInteractive = func() bool { return true }
	app.RunProgram = func(tea.Model) error {
		t.Fatal("no form expected")
		return nil
	}

	out := mustExecute(t, app, "init", "--name", "Plan")
	assert.Contains(t, out, "Created Topic tree n1")
}

func TestInit_NoFormWithoutTerminal(t *testing.T) {
	app := testApp(t)
	app.IsInteractive = func() bool { return false }
	app.RunProgram = func(tea.Model) error {
		t.Fatal("no form expected")
		return nil
	}

	out := mustExecute(t, app, "init")
	assert.Contains(t, out, "Created Topic tree n1")
}
