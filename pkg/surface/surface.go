package surface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rmax-ai/actionflow/pkg/graph"
)

// Editor is the part of the controller the surface drives.
type Editor interface {
	Graph() *graph.Graph
	Loading() bool
	Connect(ctx context.Context, source, target int64) error
	DeleteEdge(ctx context.Context, edgeID string) error
	CreateDraft(from *int64) error
	SelectNode(id int64) error
	ClearSelection()
	DeleteNode(ctx context.Context, id int64) error
}

// ConfirmFunc asks the operator a yes/no question.
type ConfirmFunc func(prompt string) bool

// Surface maps canvas gestures onto editor operations. It holds the transient
// interaction state: the node a connection drag started from and the open
// context menu.
type Surface struct {
	editor  Editor
	confirm ConfirmFunc
	logger  *slog.Logger

	mu      sync.Mutex
	pending *int64
	menu    *Menu
}

// New creates a surface. A nil confirm approves every prompt.
func New(editor Editor, confirm ConfirmFunc, logger *slog.Logger) *Surface {
	if confirm == nil {
		confirm = func(string) bool { return true }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Surface{editor: editor, confirm: confirm, logger: logger}
}

// Menu returns the open context menu, if any.
func (s *Surface) Menu() (Menu, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.menu == nil {
		return Menu{}, false
	}
	return *s.menu, true
}

// Handle applies g. Mutating gestures are dropped while the editor is loading.
func (s *Surface) Handle(ctx context.Context, g Gesture) error {
	switch g := g.(type) {
	case ConnectStart:
		s.mu.Lock()
		src := g.Node
		s.pending = &src
		s.mu.Unlock()
		return nil

	case ConnectEnd:
		s.mu.Lock()
		src := s.pending
		s.pending = nil
		s.mu.Unlock()
		if src == nil || s.ignored(g) {
			return nil
		}
		if g.Target == nil {
			return s.editor.CreateDraft(src)
		}
		return s.editor.Connect(ctx, *src, *g.Target)

	case NodeClick:
		s.closeMenu()
		return s.editor.SelectNode(g.Node)

	case PaneClick:
		s.closeMenu()
		s.editor.ClearSelection()
		return nil

	case EdgeContextMenu:
		s.openMenu(&Menu{Kind: EdgeMenu, Edge: g.Edge, X: g.X, Y: g.Y})
		return nil

	case NodeContextMenu:
		s.openMenu(&Menu{Kind: NodeMenu, Node: g.Node, X: g.X, Y: g.Y})
		return nil

	case MenuAction:
		if s.ignored(g) {
			return nil
		}
		return s.runMenu(ctx)

	case DeleteKey:
		if s.ignored(g) {
			return nil
		}
		return s.deleteSelection(ctx, g)
	}
	return fmt.Errorf("surface: unsupported gesture %T", g)
}

func (s *Surface) ignored(g Gesture) bool {
	if s.editor.Loading() {
		s.logger.Debug("gesture ignored while loading", "gesture", fmt.Sprintf("%T", g))
		return true
	}
	return false
}

func (s *Surface) openMenu(m *Menu) {
	s.mu.Lock()
	s.menu = m
	s.mu.Unlock()
}

func (s *Surface) closeMenu() {
	s.mu.Lock()
	s.menu = nil
	s.mu.Unlock()
}

func (s *Surface) runMenu(ctx context.Context) error {
	m, ok := s.Menu()
	if !ok {
		return nil
	}
	defer s.closeMenu()

	switch m.Kind {
	case EdgeMenu:
		return s.editor.DeleteEdge(ctx, m.Edge)
	case NodeMenu:
		if !s.confirm(fmt.Sprintf("Delete %q?", s.label(m.Node))) {
			return nil
		}
		return s.editor.DeleteNode(ctx, m.Node)
	}
	return nil
}

func (s *Surface) deleteSelection(ctx context.Context, g DeleteKey) error {
	if len(g.Nodes) == 0 && len(g.Edges) == 0 {
		return nil
	}
	if !s.confirm(fmt.Sprintf("Delete %d action(s) and %d connection(s)?", len(g.Nodes), len(g.Edges))) {
		return nil
	}

	var errs []error
	for _, id := range g.Edges {
		if err := s.editor.DeleteEdge(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range g.Nodes {
		if err := s.editor.DeleteNode(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Surface) label(id int64) string {
	if n, ok := s.editor.Graph().Node(id); ok && n.Label != "" {
		return n.Label
	}
	return fmt.Sprintf("#%d", id)
}
