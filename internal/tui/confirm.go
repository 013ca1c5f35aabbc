package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Confirm is a yes/no dialog. It belongs to the model that shows it; the
// action runs only when the user picks yes.
type Confirm struct {
	prompt    string
	detail    string
	onConfirm tea.Cmd
	open      bool
	yes       bool
}

// Open shows the dialog with "no" preselected.
func (c Confirm) Open(prompt, detail string, onConfirm tea.Cmd) Confirm {
	return Confirm{
		prompt:    prompt,
		detail:    detail,
		onConfirm: onConfirm,
		open:      true,
	}
}

func (c Confirm) IsOpen() bool {
	return c.open
}

// Update consumes a key while the dialog is open. The returned command is
// the confirmed action, or nil.
func (c Confirm) Update(msg tea.KeyMsg) (Confirm, tea.Cmd) {
	if !c.open {
		return c, nil
	}

	switch msg.String() {
	case "y", "Y":
		return c.accept()
	case "n", "N", "esc", "q":
		return Confirm{}, nil
	case "left", "right", "tab", "h", "l":
		c.yes = !c.yes
	case "enter":
		if c.yes {
			return c.accept()
		}
		return Confirm{}, nil
	}
	return c, nil
}

func (c Confirm) accept() (Confirm, tea.Cmd) {
	cmd := c.onConfirm
	return Confirm{}, cmd
}

func (c Confirm) View() string {
	if !c.open {
		return ""
	}

	no, yes := selectedStyle.Render(" No "), helpStyle.Render(" Yes ")
	if c.yes {
		no, yes = helpStyle.Render(" No "), selectedStyle.Render(" Yes ")
	}

	var b strings.Builder
	b.WriteString(yellow.Bold(true).Render(c.prompt))
	if c.detail != "" {
		b.WriteString("\n")
		b.WriteString(lightGray.Render(c.detail))
	}
	b.WriteString("\n\n")
	b.WriteString(no + "  " + yes)
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("y/n, or ←/→ and enter"))
	return dialogStyle.Render(b.String())
}
