package controller

import (
	"fmt"

	"github.com/rmax-ai/actionflow/pkg/workflow"
)

// Mode is the editor's interaction state.
type Mode int

const (
	Idle Mode = iota
	NodeSelected
	CreatingDraft
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case NodeSelected:
		return "node_selected"
	case CreatingDraft:
		return "creating_draft"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// MarshalText renders the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode name.
func (m *Mode) UnmarshalText(b []byte) error {
	for _, candidate := range []Mode{Idle, NodeSelected, CreatingDraft} {
		if candidate.String() == string(b) {
			*m = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", b)
}

// Selection is the tagged state of the editor. Only the members of the active
// mode are meaningful: NodeID and Snapshot for NodeSelected, PendingSource and
// Draft for CreatingDraft.
type Selection struct {
	Mode          Mode             `json:"mode"`
	NodeID        int64            `json:"node_id,omitempty"`
	Snapshot      *workflow.Action `json:"snapshot,omitempty"`
	PendingSource *int64           `json:"pending_source,omitempty"`
	Draft         *workflow.Draft  `json:"draft,omitempty"`
}

func idle() Selection { return Selection{Mode: Idle} }

func selected(a workflow.Action) Selection {
	snap := a.Clone()
	return Selection{Mode: NodeSelected, NodeID: a.ID, Snapshot: &snap}
}

func drafting(from *int64) Selection {
	d := workflow.NewDraft()
	s := Selection{Mode: CreatingDraft, Draft: &d}
	if from != nil {
		src := *from
		s.PendingSource = &src
	}
	return s
}

func (s Selection) clone() Selection {
	out := Selection{Mode: s.Mode, NodeID: s.NodeID}
	if s.Snapshot != nil {
		snap := s.Snapshot.Clone()
		out.Snapshot = &snap
	}
	if s.PendingSource != nil {
		src := *s.PendingSource
		out.PendingSource = &src
	}
	if s.Draft != nil {
		d := *s.Draft
		out.Draft = &d
	}
	return out
}
