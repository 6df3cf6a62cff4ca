package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/canister-runtime/config"
	"github.com/wippyai/canister-runtime/driver"
	"github.com/wippyai/canister-runtime/message"
	"github.com/wippyai/canister-runtime/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

// chromeLines is the number of lines the result view uses outside the
// viewport: title, blank, heading, blank, blank, help.
const chromeLines = 6

type interactiveModel struct {
	ctx      context.Context
	err      error
	rt       *runtime.Runtime
	filename string
	entries  []driver.Entry
	input    textinput.Model
	view     viewport.Model
	selected int
	state    modelState
}

type callResultMsg struct {
	err error
	out *runtime.Outcome
}

func newInteractiveModel(ctx context.Context, rt *runtime.Runtime, filename string, exports []string, cfg *config.Config) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "argument (hex): "
	ti.Placeholder = hex.EncodeToString([]byte(message.EmptyArgs))
	ti.Width = 60
	if cfg.Argument != nil {
		ti.SetValue(hex.EncodeToString(cfg.Argument))
	}

	return &interactiveModel{
		ctx:      ctx,
		rt:       rt,
		filename: filename,
		// Every classified entry point is offered; the user picks the order.
		entries: driver.Plan(exports, driver.PlanOptions{Updates: true, Upgrade: true}),
		input:   ti,
		view:    viewport.New(80, 20),
		state:   stateSelectFunc,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-chromeLines, 3)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
				return m, nil
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.entries)-1 {
				m.selected++
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.entries) == 0 {
					return m, nil
				}
				m.state = stateInputArgs
				m.input.Focus()
				return m, textinput.Blink

			case stateInputArgs:
				m.input.Blur()
				return m, m.callEntry

			case stateShowResult:
				m.state = stateSelectFunc
				m.err = nil
				return m, nil
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.input.Blur()
				m.state = stateSelectFunc
				return m, nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.err = nil
				return m, nil
			}
		}

	case callResultMsg:
		m.err = msg.err
		m.state = stateShowResult
		if msg.out != nil {
			var b strings.Builder
			driver.WriteResult(&b, driver.Result{Entry: m.entries[m.selected], Outcome: msg.out})
			m.view.SetContent(strings.TrimPrefix(b.String(), "\n"))
			m.view.GotoTop()
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.state {
	case stateInputArgs:
		m.input, cmd = m.input.Update(msg)
	case stateShowResult:
		m.view, cmd = m.view.Update(msg)
	}
	return m, cmd
}

func (m *interactiveModel) callEntry() tea.Msg {
	arg, err := config.ParseHex(m.input.Value())
	if err != nil {
		return callResultMsg{err: fmt.Errorf("argument: %w", err)}
	}
	e := m.entries[m.selected]
	out, err := m.rt.Invoke(m.ctx, runtime.Call{Export: e.Export, Method: e.Method, Argument: arg})
	return callResultMsg{err: err, out: out}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Canister Runner"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	if len(m.entries) == 0 {
		b.WriteString("No canister entry points exported.\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select an entry point:\n\n")
		for i, e := range m.entries {
			line := formatEntry(e)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		e := m.entries[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(e.Export)))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter call • esc back"))

	case stateShowResult:
		e := m.entries[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(e.Export)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(m.view.View())
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • enter continue • q quit"))
	}

	return b.String()
}

func formatEntry(e driver.Entry) string {
	return funcStyle.Render(e.Export) + " " + kindStyle.Render("["+e.Kind.String()+"]")
}

func runInteractive(ctx context.Context, rt *runtime.Runtime, filename string, exports []string, cfg *config.Config) error {
	p := tea.NewProgram(newInteractiveModel(ctx, rt, filename, exports, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
