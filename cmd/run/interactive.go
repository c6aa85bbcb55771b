package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/arm-runtime/arm"
	"github.com/wippyai/arm-runtime/engine"
	"github.com/wippyai/arm-runtime/runtime"
)

// continueLimit bounds a single continue so a runaway loop stays
// interruptible.
const continueLimit = 1_000_000

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	regStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	changedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFD700"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

type modelState int

const (
	stateStepping modelState = iota
	stateBreakpoint
)

type debugModel struct {
	ctx        context.Context
	err        error
	rt         *runtime.Runtime
	session    *engine.DebugSession
	img        *runtime.Image
	message    string
	args       []uint32
	input      textinput.Model
	prev       arm.Registers
	entry      uint32
	breakpoint uint32
	state      modelState
	hasBreak   bool
}

func newDebugModel(ctx context.Context, rt *runtime.Runtime, img *runtime.Image, entry uint32, args []uint32) (*debugModel, error) {
	m := &debugModel{ctx: ctx, rt: rt, img: img, entry: entry, args: args}
	if err := m.restart(); err != nil {
		return nil, err
	}
	ti := textinput.New()
	ti.Placeholder = "0x10040"
	ti.Prompt = "break at: "
	ti.Width = 20
	m.input = ti
	return m, nil
}

func (m *debugModel) restart() error {
	if m.session != nil {
		if err := m.session.Close(); err != nil {
			return err
		}
	}
	s, err := m.rt.Core().Debug(m.ctx, m.entry, m.args...)
	if err != nil {
		return err
	}
	m.session = s
	m.prev = s.Registers()
	m.err = nil
	m.message = fmt.Sprintf("call %#08x", m.entry)
	return nil
}

func (m *debugModel) Init() tea.Cmd {
	return nil
}

func (m *debugModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.state == stateBreakpoint {
		switch key.String() {
		case "enter":
			addr, err := parseWord(m.input.Value())
			if err != nil {
				m.message = err.Error()
			} else {
				m.breakpoint, m.hasBreak = addr&^1, true
				m.message = fmt.Sprintf("breakpoint at %#08x", m.breakpoint)
			}
			m.state = stateStepping
			m.input.Blur()
			return m, nil
		case "esc":
			m.state = stateStepping
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		_ = m.session.Close()
		return m, tea.Quit

	case "s", "n", "enter":
		m.step()

	case "c":
		m.cont()

	case "b":
		m.state = stateBreakpoint
		m.input.SetValue("")
		m.input.Focus()
		return m, textinput.Blink

	case "d":
		m.hasBreak = false
		m.message = "breakpoint cleared"

	case "r":
		if err := m.restart(); err != nil {
			m.err = err
		}
	}
	return m, nil
}

func (m *debugModel) step() {
	m.prev = m.session.Registers()
	if err := m.session.Step(); err != nil {
		m.err = err
		return
	}
	m.status()
}

func (m *debugModel) cont() {
	m.prev = m.session.Registers()
	for i := 0; i < continueLimit && !m.session.Halted(); i++ {
		if err := m.session.Step(); err != nil {
			m.err = err
			return
		}
		if m.hasBreak && m.session.Registers().R[arm.PC] == m.breakpoint {
			m.message = fmt.Sprintf("hit breakpoint %#08x", m.breakpoint)
			return
		}
	}
	m.status()
}

func (m *debugModel) status() {
	if m.session.Halted() {
		res, _ := m.session.Result()
		m.message = resultStyle.Render(fmt.Sprintf("returned %#x (%d)", res, int32(res)))
		return
	}
	m.message = fmt.Sprintf("%d steps", m.session.Steps())
}

func (m *debugModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ARM Debugger"))
	b.WriteString(" ")
	b.WriteString(m.img.Name)
	b.WriteString(fmt.Sprintf(" @ %#08x\n\n", m.img.Base))

	regs := m.session.Registers()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		paneStyle.Render(m.registersView(regs)),
		paneStyle.Render(m.codeView(regs)),
		paneStyle.Render(m.stackView(regs)),
	))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	} else {
		b.WriteString(m.message)
	}
	b.WriteString("\n")

	if m.state == stateBreakpoint {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter set • esc cancel"))
	} else {
		b.WriteString(helpStyle.Render("s step • c continue • b breakpoint • d clear • r restart • q quit"))
	}
	return b.String()
}

func (m *debugModel) registersView(regs arm.Registers) string {
	var b strings.Builder
	for i := 0; i < 16; i++ {
		line := fmt.Sprintf("%-3s %08x", arm.RegName(i), regs.R[i])
		if regs.R[i] != m.prev.R[i] {
			line = changedStyle.Render(line)
		} else {
			line = regStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	mode := "ARM"
	if regs.Thumb() {
		mode = "Thumb"
	}
	b.WriteString(fmt.Sprintf("%s %s", regs.Flags(), mode))
	return b.String()
}

func (m *debugModel) codeView(regs arm.Registers) string {
	var b strings.Builder
	pc := regs.R[arm.PC]
	if cur, err := m.session.Current(); err == nil && strings.HasPrefix(cur.Text, "native ") {
		b.WriteString(selectedStyle.Render(fmt.Sprintf("%08x: %s", pc, cur.Text)))
		return b.String()
	}
	for i, ins := range arm.DisassembleRange(m.rt.Core().Memory(), pc, 16, regs.Thumb()) {
		line := ins.String()
		if m.hasBreak && ins.Addr == m.breakpoint {
			line = "* " + line
		} else {
			line = "  " + line
		}
		if i == 0 {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *debugModel) stackView(regs arm.Registers) string {
	var b strings.Builder
	sp := regs.R[arm.SP]
	b.WriteString("stack\n")
	for i := uint32(0); i < 16; i++ {
		addr := sp + i*4
		v, err := m.rt.Core().Memory().ReadU32(addr)
		if err != nil {
			break
		}
		b.WriteString(fmt.Sprintf("%08x: %08x\n", addr, v))
	}
	return strings.TrimRight(b.String(), "\n")
}

func runInteractive(ctx context.Context, rt *runtime.Runtime, img *runtime.Image, entry uint32, args []uint32) error {
	m, err := newDebugModel(ctx, rt, img, entry, args)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
