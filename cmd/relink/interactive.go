package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-relink/metadata"
	"github.com/wippyai/wasm-relink/relink"
)

type modelState int

const (
	stateBrowse modelState = iota
	stateRetarget
)

type refInfo struct {
	ref     *metadata.ModuleRef
	methods []*metadata.Method
}

type interactiveModel struct {
	err      error
	module   *metadata.Module
	styles   *styles
	log      *zap.Logger
	path     string
	sentinel string
	status   string
	refs     []refInfo
	input    textinput.Model
	selected int
	state    modelState
	dirty    bool
}

type loadedMsg struct {
	err    error
	module *metadata.Module
}

type writtenMsg struct {
	err error
}

func newInteractiveModel(a *app, path string) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "target: "
	ti.Width = 40

	m := &interactiveModel{
		styles: a.out,
		log:    a.log,
		path:   path,
		input:  ti,
		state:  stateBrowse,
	}
	if a.cfg != nil {
		m.sentinel = a.cfg.Sentinel
	}
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *interactiveModel) loadModule() tea.Msg {
	mod, err := metadata.LoadFile(m.path)
	return loadedMsg{module: mod, err: err}
}

func (m *interactiveModel) writeModule() tea.Msg {
	return writtenMsg{err: writeFileAtomic(m.path, m.module.Serialize())}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.state == stateRetarget {
			return m.updateRetarget(msg)
		}
		return m.updateBrowse(msg)

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.module = msg.module
		m.refresh()

	case writtenMsg:
		if msg.err != nil {
			m.status = "write failed: " + msg.err.Error()
			return m, nil
		}
		m.dirty = false
		m.status = "wrote " + m.path
		m.log.Info("wrote module", zap.String("path", m.path))
	}
	return m, nil
}

func (m *interactiveModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.selected < len(m.refs)-1 {
			m.selected++
		}

	case "enter":
		if len(m.refs) == 0 {
			return m, nil
		}
		m.input.SetValue("")
		m.input.Placeholder = m.refs[m.selected].ref.Name()
		m.state = stateRetarget
		m.status = ""
		return m, m.input.Focus()

	case "w":
		if m.module == nil {
			return m, nil
		}
		if !m.module.Modified() {
			m.status = "nothing to write"
			return m, nil
		}
		return m, m.writeModule
	}
	return m, nil
}

func (m *interactiveModel) updateRetarget(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.state = stateBrowse
		return m, nil

	case "enter":
		m.input.Blur()
		m.state = stateBrowse
		m.retarget(strings.TrimSpace(m.input.Value()))
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// retarget moves every method bound to the selected reference to target.
func (m *interactiveModel) retarget(target string) {
	from := m.refs[m.selected].ref.Name()
	if target == "" || target == from {
		m.status = "unchanged"
		return
	}
	report, err := relink.Remap(m.module, []relink.Mapping{{Sentinel: from, Target: target}})
	if err != nil {
		m.status = err.Error()
		return
	}
	m.dirty = true
	m.status = fmt.Sprintf("%s -> %s: %d method(s) retargeted", from, target, report.Total())
	m.refresh()
	for i, info := range m.refs {
		if info.ref.Name() == target {
			m.selected = i
		}
	}
}

// refresh rebuilds the reference list from the imports currently bound.
func (m *interactiveModel) refresh() {
	used := m.module.UsedReferences()
	m.refs = make([]refInfo, len(used))
	index := make(map[*metadata.ModuleRef]int, len(used))
	for i, ref := range used {
		m.refs[i] = refInfo{ref: ref}
		index[ref] = i
	}
	for meth := range m.module.Methods() {
		if !meth.IsExternal() {
			continue
		}
		if i, ok := index[meth.Linkage.Module]; ok {
			m.refs[i].methods = append(m.refs[i].methods, meth)
		}
	}
	if m.selected >= len(m.refs) {
		m.selected = max(len(m.refs)-1, 0)
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil {
		return m.styles.Error.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.module == nil {
		return "Loading module..."
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("relink"))
	b.WriteString(" ")
	b.WriteString(m.path)
	if m.dirty {
		b.WriteString(m.styles.Warning.Render(" (modified)"))
	}
	b.WriteString("\n\n")

	if len(m.refs) == 0 {
		b.WriteString("No module references.\n")
	}
	for i, info := range m.refs {
		line := fmt.Sprintf("%s (%d methods)", info.ref.Name(), len(info.methods))
		if info.ref.Name() == m.sentinel {
			line += " sentinel"
		}
		if i == m.selected {
			b.WriteString(m.styles.Selected.Render("> " + line))
		} else {
			b.WriteString("  " + m.styles.Module.Render(line))
		}
		b.WriteString("\n")
	}

	if len(m.refs) > 0 {
		b.WriteString("\n")
		for _, meth := range m.refs[m.selected].methods {
			fmt.Fprintf(&b, "    %s::%s %s\n",
				m.styles.Type.Render(meth.DeclaringType.FullName()),
				m.styles.Func.Render(meth.Name),
				m.styles.Subtitle.Render("("+meth.Linkage.EntryPoint+")"))
		}
	}

	b.WriteString("\n")
	if m.state == stateRetarget {
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(m.styles.Help.Render("enter apply • esc cancel"))
	} else {
		if m.status != "" {
			b.WriteString(m.status)
			b.WriteString("\n\n")
		}
		b.WriteString(m.styles.Help.Render("↑/↓ select • enter retarget • w write • q quit"))
	}
	return b.String()
}

func (a *app) runInteractive(ctx context.Context, path string) error {
	model := newInteractiveModel(a, path)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if model.err != nil {
		return model.err
	}
	if model.dirty {
		fmt.Fprintln(a.stderr, a.out.Warning.Render("changes to "+path+" were not written"))
	}
	return nil
}
