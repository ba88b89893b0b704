package controller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmax-ai/actionflow/pkg/controller/controllertest"
	"github.com/rmax-ai/actionflow/pkg/graph"
	"github.com/rmax-ai/actionflow/pkg/workflow"
)

var errStore = errors.New("store unavailable")

func action(id int64, name string, related ...int64) workflow.Action {
	if related == nil {
		related = []int64{}
	}
	return workflow.Action{ID: id, Name: name, State: workflow.StateDraft, Priority: workflow.PriorityLow, RelatedIDs: related}
}

func newLoaded(t *testing.T, actions ...workflow.Action) (*Controller, *controllertest.FakeRemote) {
	t.Helper()
	remote := controllertest.NewFakeRemote(actions...)
	remote.SetStages(workflow.OrderStage{ID: 5, Name: "Cutting"}, workflow.OrderStage{ID: 6, Name: "Sewing"})
	c := New(remote, 42, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, c.Load(context.Background()))
	return c, remote
}

func TestController_Load(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start", 2), action(2, "Review"))

	g := c.Graph()
	assert.Len(t, g.Nodes, 2)
	assert.True(t, g.HasEdge(1, 2))
	assert.Len(t, c.Stages(), 2)
	assert.EqualValues(t, 42, c.ProductID())
	assert.False(t, c.Loading())
	assert.Equal(t, Idle, c.Selection().Mode)
	assert.Equal(t, []string{"ListActionsForProduct", "ListOrderStages"}, remote.Calls())
}

func TestController_ConnectIsLocal(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start"), action(2, "Review"))

	require.NoError(t, c.Connect(context.Background(), 1, 2))

	assert.True(t, c.Graph().HasEdge(1, 2))
	assert.Equal(t, 1, remote.Count("ListActionsForProduct"), "connect must not re-read the store")
	stored, _ := remote.Action(1)
	assert.Equal(t, []int64{2}, stored.RelatedIDs)
}

func TestController_ConnectFailureLeavesGraph(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start"), action(2, "Review"))
	before := c.Graph()
	remote.FailOn("AddRelation", errStore)

	err := c.Connect(context.Background(), 1, 2)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, OpConnect, opErr.Op)
	assert.ErrorIs(t, err, errStore)
	assert.Equal(t, "Failed to connect actions", opErr.Message())
	assert.Equal(t, before, c.Graph())
	assert.False(t, c.Loading())
}

func TestController_ConnectUnknownNode(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start"))

	err := c.Connect(context.Background(), 1, 99)
	assert.ErrorIs(t, err, ErrUnknownNode)
	assert.Zero(t, remote.Count("AddRelation"))
}

func TestController_Disconnect(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start", 2), action(2, "Review"))

	require.NoError(t, c.Disconnect(context.Background(), graph.EdgeID(1, 2)))

	assert.False(t, c.Graph().HasEdge(1, 2))
	assert.Equal(t, 2, remote.Count("ListActionsForProduct"), "disconnect re-reads the store")
}

func TestController_DisconnectFailures(t *testing.T) {
	t.Run("UnknownEdge", func(t *testing.T) {
		c, remote := newLoaded(t, action(1, "Start"), action(2, "Review"))
		err := c.DeleteEdge(context.Background(), "e2-1")
		assert.ErrorIs(t, err, ErrUnknownEdge)
		assert.Zero(t, remote.Count("RemoveRelation"))
	})

	t.Run("StoreError", func(t *testing.T) {
		c, remote := newLoaded(t, action(1, "Start", 2), action(2, "Review"))
		remote.FailOn("RemoveRelation", errStore)

		err := c.DeleteEdge(context.Background(), "e1-2")
		assert.ErrorIs(t, err, errStore)
		assert.True(t, c.Graph().HasEdge(1, 2))
		assert.Equal(t, 1, remote.Count("ListActionsForProduct"))
	})
}

func TestController_StartReviewScenario(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start"))
	ctx := context.Background()

	start := int64(1)
	require.NoError(t, c.CreateDraft(&start))
	sel := c.Selection()
	require.Equal(t, CreatingDraft, sel.Mode)
	require.NotNil(t, sel.PendingSource)
	assert.EqualValues(t, 1, *sel.PendingSource)
	assert.Equal(t, workflow.StateDraft, sel.Draft.State)
	assert.Equal(t, workflow.PriorityLow, sel.Draft.Priority)

	draft := workflow.NewDraft()
	draft.Name = "Review"
	require.NoError(t, c.ConfirmCreate(ctx, draft))

	assert.Equal(t, []string{
		"ListActionsForProduct", "ListOrderStages",
		"CreateAction", "AddRelation", "ListActionsForProduct",
	}, remote.Calls(), "connect happens before the refresh")

	g := c.Graph()
	require.Len(t, g.Nodes, 2)
	n1, _ := g.Node(1)
	n2, _ := g.Node(2)
	assert.True(t, n1.Main)
	assert.Equal(t, graph.Position{X: 100, Y: 100}, n1.Position)
	assert.False(t, n2.Main)
	assert.Equal(t, graph.Position{X: 450, Y: 100}, n2.Position)
	assert.Equal(t, "Review", n2.Label)
	assert.True(t, g.HasEdge(1, 2))
	assert.Equal(t, Idle, c.Selection().Mode)
}

func TestController_ConfirmCreateValidation(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start"))
	ctx := context.Background()

	err := c.ConfirmCreate(ctx, workflow.Draft{Name: "x"})
	assert.ErrorIs(t, err, ErrNoDraft)

	require.NoError(t, c.CreateDraft(nil))
	draft := workflow.NewDraft()
	draft.Name = "   "
	err = c.ConfirmCreate(ctx, draft)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.ErrorIs(t, err, ErrNameRequired)
	assert.Equal(t, "Name is required", opErr.Message())
	assert.Zero(t, remote.Count("CreateAction"))
	assert.Equal(t, CreatingDraft, c.Selection().Mode, "draft stays open")
	assert.False(t, c.Loading())
}

func TestController_RejectedConfirmKeepsDraft(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start"), action(2, "Review"))
	ctx := context.Background()
	require.NoError(t, c.CreateDraft(nil))
	before := c.Selection().Draft
	require.NotNil(t, before)

	blank := workflow.NewDraft()
	blank.Description = "typed"
	assert.ErrorIs(t, c.ConfirmCreate(ctx, blank), ErrNameRequired)
	sel := c.Selection()
	assert.Equal(t, CreatingDraft, sel.Mode)
	require.NotNil(t, sel.Draft)
	assert.Equal(t, *before, *sel.Draft, "invalid submission must not replace the draft")

	entered, release := remote.Hold("AddRelation")
	defer release()
	done := make(chan error, 1)
	go func() { done <- c.Connect(ctx, 2, 1) }()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("connect never reached the store")
	}

	named := workflow.NewDraft()
	named.Name = "Ship"
	assert.ErrorIs(t, c.ConfirmCreate(ctx, named), ErrBusy)
	sel = c.Selection()
	assert.Equal(t, CreatingDraft, sel.Mode)
	assert.Equal(t, *before, *sel.Draft, "busy submission must not replace the draft")

	release()
	require.NoError(t, <-done)
	assert.Zero(t, remote.Count("CreateAction"))
}

func TestController_ConfirmCreateWithoutSource(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start"))

	require.NoError(t, c.CreateDraft(nil))
	draft := workflow.NewDraft()
	draft.Name = "Loose"
	draft.Priority = workflow.PriorityUrgent
	require.NoError(t, c.ConfirmCreate(context.Background(), draft))

	assert.Zero(t, remote.Count("AddRelation"))
	rec, ok := c.Graph().Record(2)
	require.True(t, ok)
	assert.Equal(t, workflow.PriorityUrgent, rec.Priority)
	assert.Empty(t, c.Graph().Edges)
}

func TestController_ConfirmCreateConnectFails(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start"))
	remote.FailOn("AddRelation", errStore)

	src := int64(1)
	require.NoError(t, c.CreateDraft(&src))
	draft := workflow.NewDraft()
	draft.Name = "Review"
	err := c.ConfirmCreate(context.Background(), draft)

	assert.ErrorIs(t, err, ErrConnectAfterCreate)
	assert.ErrorIs(t, err, errStore)
	g := c.Graph()
	assert.Len(t, g.Nodes, 2, "created action is shown")
	assert.False(t, g.HasEdge(1, 2))
	assert.Equal(t, Idle, c.Selection().Mode)
}

func TestController_ConfirmCreateFails(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start"))
	remote.FailOn("CreateAction", errStore)

	require.NoError(t, c.CreateDraft(nil))
	draft := workflow.NewDraft()
	draft.Name = "Review"
	err := c.ConfirmCreate(context.Background(), draft)

	assert.ErrorIs(t, err, errStore)
	assert.Len(t, c.Graph().Nodes, 1)
	assert.Equal(t, CreatingDraft, c.Selection().Mode)
	assert.Equal(t, "Review", c.Selection().Draft.Name)
}

func TestController_CreateDraftUnknownSource(t *testing.T) {
	c, _ := newLoaded(t, action(1, "Start"))
	missing := int64(7)
	assert.ErrorIs(t, c.CreateDraft(&missing), ErrUnknownNode)
	assert.Equal(t, Idle, c.Selection().Mode)
}

func TestController_CancelDraft(t *testing.T) {
	c, _ := newLoaded(t, action(1, "Start"))
	require.NoError(t, c.CreateDraft(nil))
	c.CancelDraft()
	assert.Equal(t, Idle, c.Selection().Mode)
}

func TestController_Selection(t *testing.T) {
	c, _ := newLoaded(t, action(1, "Start"), action(2, "Review"))

	assert.ErrorIs(t, c.SelectNode(9), ErrUnknownNode)

	require.NoError(t, c.CreateDraft(nil))
	require.NoError(t, c.SelectNode(2))
	sel := c.Selection()
	assert.Equal(t, NodeSelected, sel.Mode)
	assert.EqualValues(t, 2, sel.NodeID)
	require.NotNil(t, sel.Snapshot)
	assert.Equal(t, "Review", sel.Snapshot.Name)
	assert.Nil(t, sel.Draft, "selecting a node discards the draft")

	sel.Snapshot.Name = "mutated"
	assert.Equal(t, "Review", c.Selection().Snapshot.Name, "selection is returned by copy")

	c.ClearSelection()
	assert.Equal(t, Idle, c.Selection().Mode)
}

func TestController_UpdateSelected(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start"), action(2, "Review"))
	ctx := context.Background()

	assert.ErrorIs(t, c.UpdateSelected(ctx, workflow.Fields{Name: workflow.Ptr("x")}), ErrNoSelection)

	require.NoError(t, c.SelectNode(2))
	fields := workflow.Fields{
		Name:    workflow.Ptr("Final review"),
		State:   workflow.Ptr(workflow.StateInProgress),
		StageID: workflow.Ptr(int64(6)),
	}
	require.NoError(t, c.UpdateSelected(ctx, fields))

	snap := c.Selection().Snapshot
	require.NotNil(t, snap)
	assert.Equal(t, "Final review", snap.Name)
	assert.Equal(t, workflow.StateInProgress, snap.State)
	require.NotNil(t, snap.Stage)
	assert.Equal(t, workflow.StageRef{ID: 6, Name: "Sewing"}, *snap.Stage)

	rec, _ := c.Graph().Record(2)
	assert.Equal(t, "Final review", rec.Name)
	assert.Equal(t, 2, remote.Count("ListActionsForProduct"))
}

func TestController_UpdateSelectedFailure(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start"))
	require.NoError(t, c.SelectNode(1))
	remote.FailOn("UpdateAction", errStore)

	err := c.UpdateSelected(context.Background(), workflow.Fields{Name: workflow.Ptr("Renamed")})

	assert.ErrorIs(t, err, errStore)
	assert.Equal(t, "Start", c.Selection().Snapshot.Name)
	rec, _ := c.Graph().Record(1)
	assert.Equal(t, "Start", rec.Name)
}

func TestController_DeleteNode(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start", 2), action(2, "Review"))
	ctx := context.Background()

	require.NoError(t, c.SelectNode(2))
	require.NoError(t, c.DeleteNode(ctx, 2))

	assert.Equal(t, Idle, c.Selection().Mode)
	g := c.Graph()
	assert.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Edges, "edges to a deleted action are not rendered")

	remote.FailOn("DeleteAction", errStore)
	require.NoError(t, c.SelectNode(1))
	assert.ErrorIs(t, c.DeleteNode(ctx, 1), errStore)
	assert.Equal(t, NodeSelected, c.Selection().Mode)
	assert.Len(t, c.Graph().Nodes, 1)
}

func TestController_DeleteOtherNodeKeepsSelection(t *testing.T) {
	c, _ := newLoaded(t, action(1, "Start"), action(2, "Review"))
	require.NoError(t, c.SelectNode(1))
	require.NoError(t, c.DeleteNode(context.Background(), 2))
	assert.Equal(t, NodeSelected, c.Selection().Mode)
	assert.EqualValues(t, 1, c.Selection().NodeID)
}

func TestController_BusyWhileLoading(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start"), action(2, "Review"))
	entered, release := remote.Hold("AddRelation")
	defer release()

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background(), 1, 2) }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("connect never reached the store")
	}
	assert.True(t, c.Loading())
	assert.ErrorIs(t, c.Refresh(context.Background()), ErrBusy)
	assert.ErrorIs(t, c.DeleteNode(context.Background(), 2), ErrBusy)

	release()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("connect did not complete")
	}
	assert.False(t, c.Loading())
	assert.Zero(t, remote.Count("DeleteAction"))
}

func TestController_LoadingReleasedOnEveryPath(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start", 2), action(2, "Review"))
	ctx := context.Background()
	for _, m := range []string{"AddRelation", "RemoveRelation", "CreateAction", "UpdateAction", "DeleteAction"} {
		remote.FailOn(m, errStore)
	}

	assert.Error(t, c.Connect(ctx, 2, 1))
	assert.False(t, c.Loading())
	assert.Error(t, c.Disconnect(ctx, "e1-2"))
	assert.False(t, c.Loading())
	require.NoError(t, c.CreateDraft(nil))
	assert.Error(t, c.ConfirmCreate(ctx, workflow.Draft{Name: "x"}))
	assert.False(t, c.Loading())
	require.NoError(t, c.SelectNode(1))
	assert.Error(t, c.UpdateSelected(ctx, workflow.Fields{Name: workflow.Ptr("y")}))
	assert.False(t, c.Loading())
	assert.Error(t, c.DeleteNode(ctx, 1))
	assert.False(t, c.Loading())
}

func TestController_RefreshDropsVanishedSelection(t *testing.T) {
	c, remote := newLoaded(t, action(1, "Start"), action(2, "Review"))
	require.NoError(t, c.SelectNode(2))

	require.NoError(t, remote.DeleteAction(context.Background(), 2))
	require.NoError(t, c.Refresh(context.Background()))

	assert.Equal(t, Idle, c.Selection().Mode)
}
