package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/alexanderramin/arbor/internal/cli/formatter"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

var errCancelled = errors.New("cancelled")

// arborHuhTheme styles huh forms with the formatter palette.
func arborHuhTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(formatter.ColorHeader).Bold(true)
	t.Focused.SelectSelector = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(formatter.ColorGreen)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.TextInput.Cursor = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.TextInput.Placeholder = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Focused.Description = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.SelectSelector = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.SelectedOption = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.UnselectedOption = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	return t
}

func requiredText(title string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", title)
		}
		return nil
	}
}

// initForm asks for the root label and payload type of a new tree. The
// current type is listed first so accepting the default keeps it.
func initForm(types []string, name, rootType *string) *huh.Form {
	ordered := append([]string{*rootType}, slices.DeleteFunc(slices.Clone(types), func(t string) bool { return t == *rootType })...)
	options := make([]huh.Option[string], 0, len(ordered))
	for _, t := range ordered {
		options = append(options, huh.NewOption(t, t))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Placeholder("Root label").
				Value(name).
				Validate(requiredText("Name")),
			huh.NewSelect[string]().
				Title("Type").
				Options(options...).
				Value(rootType),
		),
	).WithTheme(arborHuhTheme()).WithShowHelp(false)
}

// runForm drives form through RunProgram, or form.Run when none is set, and
// reports errCancelled unless the form was submitted.
func (a *App) runForm(form *huh.Form) error {
	if a.RunProgram != nil {
		if err := a.RunProgram(form); err != nil {
			return err
		}
	} else if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errCancelled
		}
		return err
	}
	if form.State != huh.StateCompleted {
		return errCancelled
	}
	return nil
}

// prompting reports whether missing input may be asked for interactively.
func (a *App) prompting() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}
