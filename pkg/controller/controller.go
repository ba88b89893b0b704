package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rmax-ai/actionflow/pkg/graph"
	"github.com/rmax-ai/actionflow/pkg/workflow"
)

// Remote is the record store as seen by the editor.
type Remote interface {
	ListActionsForProduct(ctx context.Context, productID int64) []workflow.Action
	ListOrderStages(ctx context.Context) []workflow.OrderStage
	CreateAction(ctx context.Context, productID int64, name string, fields workflow.Fields) (int64, error)
	UpdateAction(ctx context.Context, id int64, fields workflow.Fields) error
	DeleteAction(ctx context.Context, id int64) error
	AddRelation(ctx context.Context, source, target int64) error
	RemoveRelation(ctx context.Context, source, target int64) error
}

// Controller owns the projected graph of one product and the editor's
// selection state, and keeps both in step with the remote store.
//
// Connect patches the local graph optimistically once the store accepts the
// relation. Every other mutation re-reads the product from the store on
// success. A failed mutation leaves local state as it was.
//
// At most one remote operation runs at a time. A second caller gets ErrBusy.
type Controller struct {
	remote    Remote
	productID int64
	logger    *slog.Logger

	loading atomic.Bool

	mu     sync.RWMutex
	graph  *graph.Graph
	sel    Selection
	stages []workflow.OrderStage
}

// New creates a controller for productID. The graph is empty until Load or Refresh.
func New(remote Remote, productID int64, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		remote:    remote,
		productID: productID,
		logger:    logger.With("product_id", productID),
		graph:     graph.NewGraph(),
		sel:       idle(),
		stages:    []workflow.OrderStage{},
	}
}

// begin claims the loading flag. The returned func releases it.
func (c *Controller) begin() (func(), error) {
	if !c.loading.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	return func() { c.loading.Store(false) }, nil
}

func (c *Controller) finish(op string, err error) error {
	if err == nil {
		OperationsTotal.WithLabelValues(op, "ok").Inc()
		return nil
	}
	outcome := "error"
	switch {
	case errors.Is(err, ErrBusy):
		outcome = "busy"
	case errors.Is(err, ErrNameRequired), errors.Is(err, ErrNoDraft), errors.Is(err, ErrNoSelection),
		errors.Is(err, ErrUnknownNode), errors.Is(err, ErrUnknownEdge):
		outcome = "invalid"
	}
	OperationsTotal.WithLabelValues(op, outcome).Inc()
	c.logger.Warn("operation failed", "op", op, "outcome", outcome, "error", err)
	return &OpError{Op: op, Err: err}
}

// reload replaces the graph with a fresh projection of the store.
func (c *Controller) reload(ctx context.Context) {
	g := graph.Project(c.remote.ListActionsForProduct(ctx, c.productID))

	c.mu.Lock()
	c.graph = g
	if c.sel.Mode == NodeSelected {
		if _, ok := g.Node(c.sel.NodeID); !ok {
			c.sel = idle()
		}
	}
	c.mu.Unlock()

	label := strconv.FormatInt(c.productID, 10)
	GraphNodes.WithLabelValues(label).Set(float64(len(g.Nodes)))
	GraphEdges.WithLabelValues(label).Set(float64(len(g.Edges)))
	c.logger.Debug("graph refreshed", "nodes", len(g.Nodes), "edges", len(g.Edges))
}

// Load refreshes the graph and fetches the order stage lookup table.
func (c *Controller) Load(ctx context.Context) error {
	release, err := c.begin()
	if err != nil {
		return c.finish(OpLoad, err)
	}
	defer release()

	c.reload(ctx)
	stages := c.remote.ListOrderStages(ctx)

	c.mu.Lock()
	c.stages = stages
	c.mu.Unlock()
	return c.finish(OpLoad, nil)
}

// Refresh replaces the whole graph with the store's current state.
func (c *Controller) Refresh(ctx context.Context) error {
	release, err := c.begin()
	if err != nil {
		return c.finish(OpRefresh, err)
	}
	defer release()

	c.reload(ctx)
	return c.finish(OpRefresh, nil)
}

// Connect relates source -> target. On success the edge is added locally
// without re-reading the store.
func (c *Controller) Connect(ctx context.Context, source, target int64) error {
	c.mu.RLock()
	_, okSrc := c.graph.Node(source)
	_, okTgt := c.graph.Node(target)
	c.mu.RUnlock()
	if !okSrc || !okTgt {
		return c.finish(OpConnect, fmt.Errorf("%w: %d -> %d", ErrUnknownNode, source, target))
	}

	release, err := c.begin()
	if err != nil {
		return c.finish(OpConnect, err)
	}
	defer release()

	if err := c.remote.AddRelation(ctx, source, target); err != nil {
		return c.finish(OpConnect, err)
	}

	c.mu.Lock()
	c.graph = c.graph.WithEdge(source, target)
	c.mu.Unlock()
	c.logger.Info("actions connected", "source", source, "target", target)
	return c.finish(OpConnect, nil)
}

// Disconnect removes the relation behind edgeID and re-reads the store.
func (c *Controller) Disconnect(ctx context.Context, edgeID string) error {
	return c.removeEdge(ctx, OpDisconnect, edgeID)
}

// DeleteEdge is Disconnect issued from an edge's context menu.
func (c *Controller) DeleteEdge(ctx context.Context, edgeID string) error {
	return c.removeEdge(ctx, OpDeleteEdge, edgeID)
}

func (c *Controller) removeEdge(ctx context.Context, op, edgeID string) error {
	c.mu.RLock()
	e, ok := c.graph.Edge(edgeID)
	c.mu.RUnlock()
	if !ok {
		return c.finish(op, fmt.Errorf("%w: %s", ErrUnknownEdge, edgeID))
	}

	release, err := c.begin()
	if err != nil {
		return c.finish(op, err)
	}
	defer release()

	if err := c.remote.RemoveRelation(ctx, e.Source, e.Target); err != nil {
		return c.finish(op, err)
	}
	c.logger.Info("actions disconnected", "source", e.Source, "target", e.Target)
	c.reload(ctx)
	return c.finish(op, nil)
}

// CreateDraft opens the creation form. When from is set the new action will be
// connected from that node once created.
func (c *Controller) CreateDraft(from *int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if from != nil {
		if _, ok := c.graph.Node(*from); !ok {
			return c.finish(OpCreateDraft, fmt.Errorf("%w: %d", ErrUnknownNode, *from))
		}
	}
	c.sel = drafting(from)
	return c.finish(OpCreateDraft, nil)
}

// CancelDraft abandons the creation form.
func (c *Controller) CancelDraft() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sel.Mode == CreatingDraft {
		c.sel = idle()
	}
}

// ConfirmCreate creates the drafted action, connects it from the pending
// source if there is one, and re-reads the store.
//
// If the action is created but the follow-up connect fails, the graph is still
// refreshed and the draft closed; the returned error wraps ErrConnectAfterCreate.
func (c *Controller) ConfirmCreate(ctx context.Context, draft workflow.Draft) error {
	c.mu.Lock()
	if c.sel.Mode != CreatingDraft {
		c.mu.Unlock()
		return c.finish(OpCreate, ErrNoDraft)
	}
	var source *int64
	if c.sel.PendingSource != nil {
		src := *c.sel.PendingSource
		source = &src
	}
	c.mu.Unlock()

	name := draft.TrimmedName()
	if name == "" {
		return c.finish(OpCreate, ErrNameRequired)
	}

	release, err := c.begin()
	if err != nil {
		return c.finish(OpCreate, err)
	}
	defer release()

	// Only an accepted submission replaces the stored draft.
	c.mu.Lock()
	if c.sel.Mode == CreatingDraft {
		d := draft
		c.sel.Draft = &d
	}
	c.mu.Unlock()

	id, err := c.remote.CreateAction(ctx, c.productID, name, draft.Fields())
	if err != nil {
		return c.finish(OpCreate, err)
	}
	c.logger.Info("action created", "id", id, "name", name)

	var connectErr error
	if source != nil {
		if err := c.remote.AddRelation(ctx, *source, id); err != nil {
			connectErr = fmt.Errorf("%w: %w", ErrConnectAfterCreate, err)
		}
	}

	c.reload(ctx)
	c.mu.Lock()
	if c.sel.Mode == CreatingDraft {
		c.sel = idle()
	}
	c.mu.Unlock()
	return c.finish(OpCreate, connectErr)
}

// SelectNode selects id and snapshots its record. Any open draft is discarded.
func (c *Controller) SelectNode(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.graph.Record(id)
	if !ok {
		return c.finish(OpSelect, fmt.Errorf("%w: %d", ErrUnknownNode, id))
	}
	c.sel = selected(rec)
	return c.finish(OpSelect, nil)
}

// ClearSelection returns to Idle.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	c.sel = idle()
	c.mu.Unlock()
}

// UpdateSelected writes fields onto the selected action. On success the graph
// is re-read and the fields are applied to the selection snapshot.
func (c *Controller) UpdateSelected(ctx context.Context, fields workflow.Fields) error {
	c.mu.RLock()
	sel := c.sel
	c.mu.RUnlock()
	if sel.Mode != NodeSelected {
		return c.finish(OpUpdate, ErrNoSelection)
	}

	release, err := c.begin()
	if err != nil {
		return c.finish(OpUpdate, err)
	}
	defer release()

	if err := c.remote.UpdateAction(ctx, sel.NodeID, fields); err != nil {
		return c.finish(OpUpdate, err)
	}
	c.logger.Info("action updated", "id", sel.NodeID)
	c.reload(ctx)

	c.mu.Lock()
	if c.sel.Mode == NodeSelected && c.sel.NodeID == sel.NodeID && c.sel.Snapshot != nil {
		fields.Apply(c.sel.Snapshot, c.stageNameLocked)
	}
	c.mu.Unlock()
	return c.finish(OpUpdate, nil)
}

// DeleteNode deletes action id. Asking the operator for confirmation is the
// caller's job. Relations pointing at id from other actions are left to the store.
func (c *Controller) DeleteNode(ctx context.Context, id int64) error {
	release, err := c.begin()
	if err != nil {
		return c.finish(OpDeleteNode, err)
	}
	defer release()

	if err := c.remote.DeleteAction(ctx, id); err != nil {
		return c.finish(OpDeleteNode, err)
	}
	c.logger.Info("action deleted", "id", id)

	c.mu.Lock()
	if c.sel.Mode == NodeSelected && c.sel.NodeID == id {
		c.sel = idle()
	}
	c.mu.Unlock()

	c.reload(ctx)
	return c.finish(OpDeleteNode, nil)
}

func (c *Controller) stageNameLocked(id int64) string {
	for _, s := range c.stages {
		if s.ID == id {
			return s.Name
		}
	}
	return ""
}

// Graph returns a copy of the current graph.
func (c *Controller) Graph() *graph.Graph {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.graph.Clone()
}

// Selection returns a copy of the current selection.
func (c *Controller) Selection() Selection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sel.clone()
}

// Loading reports whether a remote operation is in flight.
func (c *Controller) Loading() bool {
	return c.loading.Load()
}

// Stages returns the order stage lookup table fetched by Load.
func (c *Controller) Stages() []workflow.OrderStage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]workflow.OrderStage, len(c.stages))
	copy(out, c.stages)
	return out
}

// ProductID returns the product whose workflow is being edited.
func (c *Controller) ProductID() int64 {
	return c.productID
}
