package workflow

import "strings"

// State is the lifecycle state of an action.
type State string

const (
	StateDraft      State = "draft"
	StateInProgress State = "in_progress"
	StateDone       State = "done"
	StateCancelled  State = "cancelled"
)

// Valid reports whether s is one of the known lifecycle states.
func (s State) Valid() bool {
	switch s {
	case StateDraft, StateInProgress, StateDone, StateCancelled:
		return true
	}
	return false
}

// Priority is the urgency of an action.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// priorityOrder maps the numeric selection keys some servers return.
var priorityOrder = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// PriorityFromIndex converts a numeric priority (0 = low ... 3 = urgent).
// Out of range values clamp to the nearest end.
func PriorityFromIndex(i int) Priority {
	if i < 0 {
		return PriorityLow
	}
	if i >= len(priorityOrder) {
		return PriorityUrgent
	}
	return priorityOrder[i]
}

// StageRef is a denormalized reference to an order stage.
type StageRef struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Action is one workflow step as stored remotely.
// RelatedIDs is the outgoing edge list of the graph; an edge A->B is stored only on A.
type Action struct {
	ID                 int64     `json:"id" yaml:"id"`
	Name               string    `json:"name" yaml:"name"`
	Description        string    `json:"description,omitempty" yaml:"description,omitempty"`
	State              State     `json:"state" yaml:"state"`
	Priority           Priority  `json:"priority" yaml:"priority"`
	IsAutomatic        bool      `json:"is_automatic" yaml:"is_automatic"`
	CompletesOrderLine bool      `json:"completes_order_line" yaml:"completes_order_line"`
	RequireEvidence    bool      `json:"require_evidence" yaml:"require_evidence"`
	Stage              *StageRef `json:"stage,omitempty" yaml:"stage,omitempty"`
	RelatedIDs         []int64   `json:"related_ids" yaml:"related_ids"`
}

// Clone returns a deep copy of a.
func (a Action) Clone() Action {
	out := a
	if a.Stage != nil {
		st := *a.Stage
		out.Stage = &st
	}
	if a.RelatedIDs != nil {
		out.RelatedIDs = append([]int64(nil), a.RelatedIDs...)
	}
	return out
}

// OrderStage is an entry of the stage lookup table.
type OrderStage struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Product scopes a workflow.
type Product struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Fields is a partial field set. Nil members are left untouched remotely.
// StageID follows a tri-state convention: nil = untouched, 0 = clear, >0 = set.
type Fields struct {
	Name               *string
	Description        *string
	State              *State
	Priority           *Priority
	IsAutomatic        *bool
	CompletesOrderLine *bool
	RequireEvidence    *bool
	StageID            *int64
}

// Empty reports whether no field is set.
func (f Fields) Empty() bool {
	return f.Name == nil && f.Description == nil && f.State == nil && f.Priority == nil &&
		f.IsAutomatic == nil && f.CompletesOrderLine == nil && f.RequireEvidence == nil &&
		f.StageID == nil
}

// Values renders the store payload for the set members.
func (f Fields) Values() map[string]any {
	v := make(map[string]any)
	if f.Name != nil {
		v["name"] = *f.Name
	}
	if f.Description != nil {
		v["action_description"] = *f.Description
	}
	if f.State != nil {
		v["state"] = string(*f.State)
	}
	if f.Priority != nil {
		v["priority"] = string(*f.Priority)
	}
	if f.IsAutomatic != nil {
		v["is_automatic"] = *f.IsAutomatic
	}
	if f.CompletesOrderLine != nil {
		v["completes_order_line"] = *f.CompletesOrderLine
	}
	if f.RequireEvidence != nil {
		v["require_evidence"] = *f.RequireEvidence
	}
	if f.StageID != nil {
		if *f.StageID > 0 {
			v["stage_id"] = *f.StageID
		} else {
			v["stage_id"] = false
		}
	}
	return v
}

// Apply patches a with the set members. stageName resolves a stage id to its
// display name; it may be nil.
func (f Fields) Apply(a *Action, stageName func(id int64) string) {
	if f.Name != nil {
		a.Name = *f.Name
	}
	if f.Description != nil {
		a.Description = *f.Description
	}
	if f.State != nil {
		a.State = *f.State
	}
	if f.Priority != nil {
		a.Priority = *f.Priority
	}
	if f.IsAutomatic != nil {
		a.IsAutomatic = *f.IsAutomatic
	}
	if f.CompletesOrderLine != nil {
		a.CompletesOrderLine = *f.CompletesOrderLine
	}
	if f.RequireEvidence != nil {
		a.RequireEvidence = *f.RequireEvidence
	}
	if f.StageID != nil {
		if *f.StageID <= 0 {
			a.Stage = nil
			return
		}
		ref := &StageRef{ID: *f.StageID}
		if stageName != nil {
			ref.Name = stageName(*f.StageID)
		}
		a.Stage = ref
	}
}

// Draft is the pending-creation form.
type Draft struct {
	Name               string
	Description        string
	State              State
	Priority           Priority
	IsAutomatic        bool
	CompletesOrderLine bool
	RequireEvidence    bool
	StageID            int64
}

// NewDraft returns a draft with the form defaults.
func NewDraft() Draft {
	return Draft{State: StateDraft, Priority: PriorityLow}
}

// TrimmedName returns the name without surrounding whitespace.
func (d Draft) TrimmedName() string {
	return strings.TrimSpace(d.Name)
}

// Fields converts the draft into a create payload (name excluded).
func (d Draft) Fields() Fields {
	desc := d.Description
	state := d.State
	if !state.Valid() {
		state = StateDraft
	}
	prio := d.Priority
	if !prio.Valid() {
		prio = PriorityLow
	}
	auto, completes, evidence := d.IsAutomatic, d.CompletesOrderLine, d.RequireEvidence
	stage := d.StageID
	return Fields{
		Description:        &desc,
		State:              &state,
		Priority:           &prio,
		IsAutomatic:        &auto,
		CompletesOrderLine: &completes,
		RequireEvidence:    &evidence,
		StageID:            &stage,
	}
}

// Ptr returns a pointer to v. Handy for building Fields literals.
func Ptr[T any](v T) *T {
	return &v
}
