package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Combat is the in-combat flag the host tick loop samples.
type Combat interface {
	Toggle() bool
	InCombat() bool
}

type textMsg string

// Model is the bubbletea model for the bar.
type Model struct {
	host     *Host
	combat   Combat
	keys     keyMap
	help     help.Model
	text     string
	inCombat bool
	target   string
}

// NewModel builds the model. target is shown in the status line.
func NewModel(host *Host, combat Combat, target string) Model {
	return Model{
		host:     host,
		combat:   combat,
		keys:     defaultKeys,
		help:     help.New(),
		text:     host.Text(),
		inCombat: combat.InCombat(),
		target:   target,
	}
}

// Init starts listening for label changes.
func (m Model) Init() tea.Cmd {
	return waitForText(m.host)
}

func waitForText(h *Host) tea.Cmd {
	return func() tea.Msg {
		<-h.Changed()
		return textMsg(h.Text())
	}
}

// Update handles label changes, keys and clicks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case textMsg:
		m.text = string(msg)
		return m, waitForText(m.host)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Combat):
			m.inCombat = m.combat.Toggle()
		case key.Matches(msg, m.keys.Toggle):
			m.host.Click()
			m.text = m.host.Text()
		}

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			m.host.Click()
			m.text = m.host.Text()
		}

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	}
	return m, nil
}

// View renders the label, the combat flag and the key help.
func (m Model) View() string {
	combat := idleStyle.Render("out of combat")
	if m.inCombat {
		combat = combatStyle.Render("in combat")
	}
	status := statusStyle.Render(fmt.Sprintf("%s  %s", combat, m.target))
	return labelStyle.Render(m.text) + "\n" + status + "\n" + m.help.View(m.keys) + "\n"
}

// Run drives the program until the user quits or ctx is done.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run terminal host: %w", err)
	}
	return nil
}
