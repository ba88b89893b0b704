// Package controllertest provides an in-memory record store for exercising
// the controller and the surfaces built on it.
package controllertest

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/rmax-ai/actionflow/pkg/client"
	"github.com/rmax-ai/actionflow/pkg/workflow"
)

type hold struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

// FakeRemote is an in-memory record store. Failures and blocking can be
// injected per method name (for example "AddRelation").
type FakeRemote struct {
	mu      sync.Mutex
	actions []workflow.Action
	stages  []workflow.OrderStage
	nextID  int64
	fail    map[string]error
	holds   map[string]*hold
	calls   []string
}

// NewFakeRemote seeds the store with actions, in order.
func NewFakeRemote(actions ...workflow.Action) *FakeRemote {
	f := &FakeRemote{
		fail:   make(map[string]error),
		holds:  make(map[string]*hold),
		nextID: 1,
	}
	for _, a := range actions {
		f.actions = append(f.actions, a.Clone())
		if a.ID >= f.nextID {
			f.nextID = a.ID + 1
		}
	}
	return f
}

// SetStages sets the order stage table.
func (f *FakeRemote) SetStages(stages ...workflow.OrderStage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages = stages
}

// FailOn makes method return err until cleared with a nil err.
func (f *FakeRemote) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, method)
		return
	}
	f.fail[method] = err
}

// Hold makes the next calls to method block until release is called.
// entered is closed once a call is blocked.
func (f *FakeRemote) Hold(method string) (entered <-chan struct{}, release func()) {
	h := &hold{entered: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.holds[method] = h
	f.mu.Unlock()
	var once sync.Once
	return h.entered, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.holds, method)
			f.mu.Unlock()
			close(h.release)
		})
	}
}

// Calls returns the method names invoked so far, in order.
func (f *FakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Count returns how many times method was invoked.
func (f *FakeRemote) Count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

// Action returns the stored record id.
func (f *FakeRemote) Action(id int64) (workflow.Action, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.index(id); i >= 0 {
		return f.actions[i].Clone(), true
	}
	return workflow.Action{}, false
}

func (f *FakeRemote) index(id int64) int {
	return slices.IndexFunc(f.actions, func(a workflow.Action) bool { return a.ID == id })
}

// enter records the call, waits on any hold and returns the injected failure.
func (f *FakeRemote) enter(method string) error {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	h := f.holds[method]
	f.mu.Unlock()

	if h != nil {
		h.once.Do(func() { close(h.entered) })
		<-h.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[method]
}

func (f *FakeRemote) ListActionsForProduct(ctx context.Context, productID int64) []workflow.Action {
	if err := f.enter("ListActionsForProduct"); err != nil {
		return []workflow.Action{}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]workflow.Action, 0, len(f.actions))
	for _, a := range f.actions {
		out = append(out, a.Clone())
	}
	return out
}

func (f *FakeRemote) ListOrderStages(ctx context.Context) []workflow.OrderStage {
	if err := f.enter("ListOrderStages"); err != nil {
		return []workflow.OrderStage{}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]workflow.OrderStage{}, f.stages...)
}

func (f *FakeRemote) CreateAction(ctx context.Context, productID int64, name string, fields workflow.Fields) (int64, error) {
	if err := f.enter("CreateAction"); err != nil {
		return 0, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, client.ErrNameRequired
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a := workflow.Action{
		ID:         f.nextID,
		Name:       name,
		State:      workflow.StateDraft,
		Priority:   workflow.PriorityLow,
		RelatedIDs: []int64{},
	}
	fields.Apply(&a, nil)
	f.nextID++
	f.actions = append(f.actions, a)
	return a.ID, nil
}

func (f *FakeRemote) UpdateAction(ctx context.Context, id int64, fields workflow.Fields) error {
	if err := f.enter("UpdateAction"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(id)
	if i < 0 {
		return client.ErrRejected
	}
	fields.Apply(&f.actions[i], f.stageNameLocked)
	return nil
}

func (f *FakeRemote) DeleteAction(ctx context.Context, id int64) error {
	if err := f.enter("DeleteAction"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(id)
	if i < 0 {
		return client.ErrRejected
	}
	f.actions = slices.Delete(f.actions, i, i+1)
	return nil
}

func (f *FakeRemote) AddRelation(ctx context.Context, source, target int64) error {
	if err := f.enter("AddRelation"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(source)
	if i < 0 {
		return client.ErrRejected
	}
	if !slices.Contains(f.actions[i].RelatedIDs, target) {
		f.actions[i].RelatedIDs = append(f.actions[i].RelatedIDs, target)
	}
	return nil
}

func (f *FakeRemote) RemoveRelation(ctx context.Context, source, target int64) error {
	if err := f.enter("RemoveRelation"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.index(source)
	if i < 0 {
		return client.ErrRejected
	}
	f.actions[i].RelatedIDs = slices.DeleteFunc(f.actions[i].RelatedIDs, func(id int64) bool { return id == target })
	return nil
}

func (f *FakeRemote) stageNameLocked(id int64) string {
	for _, s := range f.stages {
		if s.ID == id {
			return s.Name
		}
	}
	return ""
}
