package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/actionflow/pkg/controller"
	"github.com/rmax-ai/actionflow/pkg/graph"
	"github.com/rmax-ai/actionflow/pkg/surface"
	"github.com/rmax-ai/actionflow/pkg/workflow"
)

const detailHeight = 14

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(34)

	focusedPaneStyle = paneStyle.BorderForeground(lipgloss.Color("63"))

	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	mainStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// editor is the controller surface the TUI reads and drives directly.
// Canvas gestures go through the surface instead.
type editor interface {
	Graph() *graph.Graph
	Selection() controller.Selection
	Loading() bool
	ProductID() int64
	Stages() []workflow.OrderStage
	Load(ctx context.Context) error
	Refresh(ctx context.Context) error
	CreateDraft(from *int64) error
	CancelDraft()
	ConfirmCreate(ctx context.Context, draft workflow.Draft) error
	UpdateSelected(ctx context.Context, fields workflow.Fields) error
}

type pane int

const (
	nodesPane pane = iota
	edgesPane
)

type inputMode int

const (
	modeBrowse inputMode = iota
	modeConnecting
	modeNaming
	modeRenaming
	modeDescribing
	modeConfirm
)

// opDoneMsg reports the end of an editor operation run off the UI goroutine.
type opDoneMsg struct {
	op  string
	err error
}

type model struct {
	editor  editor
	surface *surface.Surface
	timeout time.Duration

	spinner  spinner.Model
	viewport viewport.Model
	input    textinput.Model

	graph     *graph.Graph
	selection controller.Selection
	focus     pane
	nodeIdx   int
	edgeIdx   int
	mode      inputMode
	prompt    string
	onConfirm tea.Cmd
	busy      bool
	status    string
	err       error
	ready     bool
}

func newModel(ed editor, surf *surface.Surface, timeout time.Duration) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	in := textinput.New()
	in.Placeholder = "Action name"
	in.CharLimit = 120

	vp := viewport.New(60, detailHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)

	m := model{
		editor:   ed,
		surface:  surf,
		timeout:  timeout,
		spinner:  s,
		viewport: vp,
		input:    in,
		busy:     true,
	}
	m.sync()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.run("load", m.editor.Load),
	)
}

// run executes fn off the UI goroutine with the per-call timeout.
func (m model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m model) gesture(op string, g surface.Gesture) tea.Cmd {
	surf := m.surface
	return m.run(op, func(ctx context.Context) error {
		return surf.Handle(ctx, g)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.handleKey(msg)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case opDoneMsg:
		m.busy = false
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.op + " ok"
		} else {
			m.status = ""
		}
		m.sync()
		if m.selection.Mode == controller.CreatingDraft && m.mode != modeNaming {
			cmd = m.startInput(modeNaming, "")
		}
		return m, cmd

	case tea.WindowSizeMsg:
		width := msg.Width - 2*paneStyle.GetWidth() - 8
		if width < 30 {
			width = 30
		}
		m.viewport.Width = width
		m.viewport.Height = detailHeight
		m.ready = true
		m.sync()
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch m.mode {
	case modeConfirm:
		switch key {
		case "y", "Y":
			m.mode = modeBrowse
			m.busy = true
			cmd := m.onConfirm
			m.onConfirm = nil
			return m, cmd
		case "n", "N", "esc":
			m.mode = modeBrowse
			m.onConfirm = nil
			m.status = "cancelled"
		}
		return m, nil

	case modeNaming, modeRenaming, modeDescribing:
		switch key {
		case "enter":
			return m.submitInput()
		case "esc":
			if m.mode == modeNaming {
				m.editor.CancelDraft()
			}
			m.mode = modeBrowse
			m.input.Blur()
			m.sync()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case modeConnecting:
		switch key {
		case "up", "k", "down", "j":
			m.moveCursor(key)
		case "enter":
			n, ok := m.currentNode()
			if !ok {
				return m, nil
			}
			target := n.ID
			m.mode = modeBrowse
			m.busy = true
			return m, m.gesture("connect", surface.ConnectEnd{Target: &target})
		case "n":
			m.mode = modeBrowse
			m.busy = true
			return m, m.gesture("draft", surface.ConnectEnd{})
		case "esc":
			m.mode = modeBrowse
			m.status = "connection cancelled"
		}
		return m, nil
	}

	if key == "q" {
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}

	switch key {
	case "up", "k", "down", "j":
		m.moveCursor(key)

	case "tab":
		if m.focus == nodesPane {
			m.focus = edgesPane
		} else {
			m.focus = nodesPane
		}

	case "enter":
		if n, ok := m.currentNode(); ok && m.focus == nodesPane {
			m.err = m.surface.Handle(context.Background(), surface.NodeClick{Node: n.ID})
			m.sync()
		}

	case "esc":
		_ = m.surface.Handle(context.Background(), surface.PaneClick{})
		m.sync()

	case "r":
		m.busy = true
		return m, m.run("refresh", m.editor.Refresh)

	case "c":
		if n, ok := m.currentNode(); ok {
			_ = m.surface.Handle(context.Background(), surface.ConnectStart{Node: n.ID})
			m.mode = modeConnecting
			m.prompt = fmt.Sprintf("Connect %s to: pick a target and press enter, n for a new action, esc to cancel", n.Label)
		}

	case "a":
		m.err = m.editor.CreateDraft(nil)
		m.sync()
		if m.err == nil {
			cmd := m.startInput(modeNaming, "")
			return m, cmd
		}

	case "x":
		return m.contextMenuDelete()

	case "d", "delete":
		return m.deleteFocused()

	case "e":
		if m.selection.Snapshot != nil {
			cmd := m.startInput(modeRenaming, m.selection.Snapshot.Name)
			return m, cmd
		}

	case "i":
		if m.selection.Snapshot != nil {
			cmd := m.startInput(modeDescribing, m.selection.Snapshot.Description)
			return m, cmd
		}

	case "p", "s", "m", "o", "v", "g":
		if snap := m.selection.Snapshot; snap != nil {
			return m.toggle(key, snap)
		}
	}

	return m, nil
}

// toggle cycles or flips one field of the selected action.
func (m model) toggle(key string, snap *workflow.Action) (tea.Model, tea.Cmd) {
	var f workflow.Fields
	switch key {
	case "p":
		f.Priority = workflow.Ptr(nextPriority(snap.Priority))
	case "s":
		f.State = workflow.Ptr(nextState(snap.State))
	case "m":
		f.IsAutomatic = workflow.Ptr(!snap.IsAutomatic)
	case "o":
		f.CompletesOrderLine = workflow.Ptr(!snap.CompletesOrderLine)
	case "v":
		f.RequireEvidence = workflow.Ptr(!snap.RequireEvidence)
	case "g":
		stages := m.editor.Stages()
		if len(stages) == 0 && snap.Stage == nil {
			m.status = "no order stages defined"
			return m, nil
		}
		f.StageID = workflow.Ptr(nextStage(snap.Stage, stages))
	}
	cmd := m.update(f)
	return m, cmd
}

func (m *model) update(f workflow.Fields) tea.Cmd {
	ed := m.editor
	m.busy = true
	return m.run("update", func(ctx context.Context) error {
		return ed.UpdateSelected(ctx, f)
	})
}

// contextMenuDelete opens the context menu of the focused element and runs its
// delete entry. Node deletion is confirmed first.
func (m model) contextMenuDelete() (tea.Model, tea.Cmd) {
	ctx := context.Background()
	if m.focus == edgesPane {
		e, ok := m.currentEdge()
		if !ok {
			return m, nil
		}
		_ = m.surface.Handle(ctx, surface.EdgeContextMenu{Edge: e.ID})
		m.busy = true
		return m, m.gesture("delete connection", surface.MenuAction{})
	}

	n, ok := m.currentNode()
	if !ok {
		return m, nil
	}
	_ = m.surface.Handle(ctx, surface.NodeContextMenu{Node: n.ID, X: n.Position.X, Y: n.Position.Y})
	return m.askConfirm(fmt.Sprintf("Delete %q?", n.Label), m.gesture("delete action", surface.MenuAction{}))
}

func (m model) deleteFocused() (tea.Model, tea.Cmd) {
	var g surface.DeleteKey
	if m.focus == edgesPane {
		e, ok := m.currentEdge()
		if !ok {
			return m, nil
		}
		g.Edges = []string{e.ID}
	} else {
		n, ok := m.currentNode()
		if !ok {
			return m, nil
		}
		g.Nodes = []int64{n.ID}
	}
	prompt := fmt.Sprintf("Delete %d action(s) and %d connection(s)?", len(g.Nodes), len(g.Edges))
	return m.askConfirm(prompt, m.gesture("delete", g))
}

func (m model) askConfirm(prompt string, then tea.Cmd) (tea.Model, tea.Cmd) {
	m.mode = modeConfirm
	m.prompt = prompt + " [y/N]"
	m.onConfirm = then
	return m, nil
}

func (m *model) startInput(mode inputMode, value string) tea.Cmd {
	m.mode = mode
	m.input.SetValue(value)
	m.input.CursorEnd()
	switch mode {
	case modeNaming:
		m.input.Placeholder = "Action name"
		m.prompt = "New action name (enter to create, esc to cancel)"
	case modeDescribing:
		m.input.Placeholder = "Description"
		m.prompt = "Describe action (enter to save, esc to cancel)"
	default:
		m.input.Placeholder = "Action name"
		m.prompt = "Rename action (enter to save, esc to cancel)"
	}
	return m.input.Focus()
}

func (m model) submitInput() (tea.Model, tea.Cmd) {
	value := m.input.Value()
	mode := m.mode
	m.mode = modeBrowse
	m.input.Blur()

	switch mode {
	case modeNaming:
		draft := workflow.NewDraft()
		draft.Name = value
		m.busy = true
		return m, m.run("create", func(ctx context.Context) error {
			return m.editor.ConfirmCreate(ctx, draft)
		})
	case modeDescribing:
		cmd := m.update(workflow.Fields{Description: &value})
		return m, cmd
	}
	cmd := m.update(workflow.Fields{Name: &value})
	return m, cmd
}

func (m *model) moveCursor(key string) {
	delta := 1
	if key == "up" || key == "k" {
		delta = -1
	}
	if m.focus == edgesPane && m.mode == modeBrowse {
		m.edgeIdx = clamp(m.edgeIdx+delta, len(m.graph.Edges))
		return
	}
	m.nodeIdx = clamp(m.nodeIdx+delta, len(m.graph.Nodes))
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (m model) currentNode() (graph.Node, bool) {
	if m.nodeIdx < 0 || m.nodeIdx >= len(m.graph.Nodes) {
		return graph.Node{}, false
	}
	return m.graph.Nodes[m.nodeIdx], true
}

func (m model) currentEdge() (graph.Edge, bool) {
	if m.edgeIdx < 0 || m.edgeIdx >= len(m.graph.Edges) {
		return graph.Edge{}, false
	}
	return m.graph.Edges[m.edgeIdx], true
}

// sync pulls the editor's current graph and selection into the model.
func (m *model) sync() {
	m.graph = m.editor.Graph()
	m.selection = m.editor.Selection()
	m.nodeIdx = clamp(m.nodeIdx, len(m.graph.Nodes))
	m.edgeIdx = clamp(m.edgeIdx, len(m.graph.Edges))
	m.viewport.SetContent(m.detailContent())
}

func (m model) detailContent() string {
	var sb strings.Builder
	switch m.selection.Mode {
	case controller.NodeSelected:
		a := m.selection.Snapshot
		if a == nil {
			break
		}
		fmt.Fprintf(&sb, "%s\n\n", selectedStyle.Render(a.Name))
		fmt.Fprintf(&sb, "ID:        %d\n", a.ID)
		fmt.Fprintf(&sb, "State:     %s\n", a.State)
		fmt.Fprintf(&sb, "Priority:  %s\n", a.Priority)
		stage := "-"
		if a.Stage != nil {
			stage = a.Stage.Name
		}
		fmt.Fprintf(&sb, "Stage:     %s\n", stage)
		fmt.Fprintf(&sb, "Automatic: %t\n", a.IsAutomatic)
		fmt.Fprintf(&sb, "Completes: %t\n", a.CompletesOrderLine)
		fmt.Fprintf(&sb, "Evidence:  %t\n", a.RequireEvidence)
		if a.Description != "" {
			fmt.Fprintf(&sb, "\n%s\n", a.Description)
		}
		sb.WriteString(subtleStyle.Render("\ne rename • i describe • p priority • s state • g stage\nm automatic • o completes line • v evidence"))
	case controller.CreatingDraft:
		sb.WriteString(selectedStyle.Render("New action") + "\n\n")
		if src := m.selection.PendingSource; src != nil {
			label := fmt.Sprintf("#%d", *src)
			if n, ok := m.graph.Node(*src); ok {
				label = n.Label
			}
			fmt.Fprintf(&sb, "Connected from: %s\n", label)
		}
	default:
		sb.WriteString(subtleStyle.Render("Select an action with enter to see its details."))
	}
	return sb.String()
}

func (m model) View() string {
	if !m.ready && m.busy {
		return fmt.Sprintf("\n%s Loading workflow...", m.spinner.View())
	}

	header := fmt.Sprintf("Workflow of product %d", m.editor.ProductID())
	if m.busy || m.editor.Loading() {
		header = m.spinner.View() + " " + header
	}

	var nodes strings.Builder
	nodes.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Actions") + "\n\n")
	if len(m.graph.Nodes) == 0 {
		nodes.WriteString(subtleStyle.Render("No actions."))
	}
	for i, n := range m.graph.Nodes {
		line := n.Label
		if n.Main {
			line = mainStyle.Render(line + " ★")
		}
		if m.selection.Mode == controller.NodeSelected && m.selection.NodeID == n.ID {
			line = selectedStyle.Render(line)
		}
		if i == m.nodeIdx && (m.focus == nodesPane || m.mode == modeConnecting) {
			line = cursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		nodes.WriteString(line + "\n")
	}

	var edges strings.Builder
	edges.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Connections") + "\n\n")
	if len(m.graph.Edges) == 0 {
		edges.WriteString(subtleStyle.Render("No connections."))
	}
	for i, e := range m.graph.Edges {
		line := fmt.Sprintf("%s → %s", m.label(e.Source), m.label(e.Target))
		if i == m.edgeIdx && m.focus == edgesPane && m.mode == modeBrowse {
			line = cursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		edges.WriteString(line + "\n")
	}

	nodeStyle, edgeStyle := focusedPaneStyle, paneStyle
	if m.focus == edgesPane {
		nodeStyle, edgeStyle = paneStyle, focusedPaneStyle
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		nodeStyle.Render(nodes.String()),
		edgeStyle.Render(edges.String()),
		m.viewport.View(),
	)

	var status string
	switch {
	case m.err != nil:
		status = errorStyle.Render(describeError(m.err))
	case m.status != "":
		status = okStyle.Render(m.status)
	}

	var input string
	switch m.mode {
	case modeNaming, modeRenaming, modeDescribing:
		input = promptStyle.Render(m.prompt) + "\n" + m.input.View()
	case modeConfirm, modeConnecting:
		input = promptStyle.Render(m.prompt)
	}

	help := subtleStyle.Render("↑/↓ move • tab switch • enter select • c connect • a add • x menu delete • d delete • r refresh • esc clear • q quit")
	return lipgloss.JoinVertical(lipgloss.Left, headerStyle.Render(header), body, status, input, help)
}

func (m model) label(id int64) string {
	if n, ok := m.graph.Node(id); ok {
		return n.Label
	}
	return fmt.Sprintf("#%d", id)
}

// describeError renders an operation failure the way the operator should read it.
func describeError(err error) string {
	var opErr *controller.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("%s (%v)", opErr.Message(), opErr.Err)
	}
	return err.Error()
}

func nextPriority(p workflow.Priority) workflow.Priority {
	order := []workflow.Priority{workflow.PriorityLow, workflow.PriorityMedium, workflow.PriorityHigh, workflow.PriorityUrgent}
	for i, candidate := range order {
		if candidate == p {
			return order[(i+1)%len(order)]
		}
	}
	return workflow.PriorityLow
}

// nextStage returns the stage after current in stages, wrapping to 0 (no
// stage) after the last one.
func nextStage(current *workflow.StageRef, stages []workflow.OrderStage) int64 {
	if current == nil {
		if len(stages) == 0 {
			return 0
		}
		return stages[0].ID
	}
	for i, st := range stages {
		if st.ID == current.ID {
			if i+1 < len(stages) {
				return stages[i+1].ID
			}
			return 0
		}
	}
	return 0
}

func nextState(s workflow.State) workflow.State {
	order := []workflow.State{workflow.StateDraft, workflow.StateInProgress, workflow.StateDone, workflow.StateCancelled}
	for i, candidate := range order {
		if candidate == s {
			return order[(i+1)%len(order)]
		}
	}
	return workflow.StateDraft
}
