package surface

// Gesture is an operator interaction on the canvas.
type Gesture interface {
	gesture()
}

// ConnectStart begins dragging a connection out of Node.
type ConnectStart struct {
	Node int64
}

// ConnectEnd ends a connection drag. A nil Target means the drag ended on empty canvas.
type ConnectEnd struct {
	Target *int64
}

// NodeClick selects a node.
type NodeClick struct {
	Node int64
}

// PaneClick is a click on empty canvas.
type PaneClick struct{}

// EdgeContextMenu opens the context menu of an edge at X, Y.
type EdgeContextMenu struct {
	Edge string
	X, Y float64
}

// NodeContextMenu opens the context menu of a node at X, Y.
type NodeContextMenu struct {
	Node int64
	X, Y float64
}

// MenuAction triggers the single action of the open context menu.
type MenuAction struct{}

// DeleteKey removes the current multi-selection.
type DeleteKey struct {
	Nodes []int64
	Edges []string
}

func (ConnectStart) gesture()    {}
func (ConnectEnd) gesture()      {}
func (NodeClick) gesture()       {}
func (PaneClick) gesture()       {}
func (EdgeContextMenu) gesture() {}
func (NodeContextMenu) gesture() {}
func (MenuAction) gesture()      {}
func (DeleteKey) gesture()       {}

// MenuKind tells which kind of element a context menu is bound to.
type MenuKind int

const (
	EdgeMenu MenuKind = iota + 1
	NodeMenu
)

// Menu is a transient context menu. Only one is open at a time.
type Menu struct {
	Kind MenuKind
	Edge string
	Node int64
	X, Y float64
}
