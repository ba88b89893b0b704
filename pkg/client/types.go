package client

import (
	"encoding/json"
	"strconv"

	"github.com/rmax-ai/actionflow/pkg/workflow"
)

// Collection names on the record store.
const (
	ModelWorkflowLine = "dpi.workflow.line"
	ModelOrderState   = "dpi.order.state"
	ModelWebservice   = "dpi.webservice"
)

// Relation commands understood by many-to-many fields.
const (
	relationLink   = 4
	relationUnlink = 3
)

// rawAction mirrors a dpi.workflow.line record as search_read returns it.
// Several members are loosely typed by the server: text fields come back as
// false when empty, priority may be a selection key or an index, and stage_id
// is false, an id, or an [id, name] pair.
type rawAction struct {
	ID                 int64           `json:"id"`
	Name               looseString     `json:"name"`
	Description        looseString     `json:"action_description"`
	State              looseString     `json:"state"`
	Priority           json.RawMessage `json:"priority"`
	IsAutomatic        bool            `json:"is_automatic"`
	CompletesOrderLine bool            `json:"completes_order_line"`
	RequireEvidence    bool            `json:"require_evidence"`
	StageID            json.RawMessage `json:"stage_id"`
	RelatedLineIDs     []int64         `json:"related_line_ids"`
}

// looseString decodes a string, treating false and null as empty.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		*s = ""
		return nil
	}
	*s = looseString(v)
	return nil
}

func (r rawAction) normalize() workflow.Action {
	a := workflow.Action{
		ID:                 r.ID,
		Name:               string(r.Name),
		Description:        string(r.Description),
		State:              workflow.State(r.State),
		Priority:           parsePriority(r.Priority),
		IsAutomatic:        r.IsAutomatic,
		CompletesOrderLine: r.CompletesOrderLine,
		RequireEvidence:    r.RequireEvidence,
		Stage:              parseStage(r.StageID),
		RelatedIDs:         r.RelatedLineIDs,
	}
	if !a.State.Valid() {
		a.State = workflow.StateDraft
	}
	if a.RelatedIDs == nil {
		a.RelatedIDs = []int64{}
	}
	return a
}

func parsePriority(raw json.RawMessage) workflow.Priority {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if p := workflow.Priority(s); p.Valid() {
			return p
		}
		if i, err := strconv.Atoi(s); err == nil {
			return workflow.PriorityFromIndex(i)
		}
		return workflow.PriorityLow
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return workflow.PriorityFromIndex(int(n))
	}
	return workflow.PriorityLow
}

func parseStage(raw json.RawMessage) *workflow.StageRef {
	if len(raw) == 0 {
		return nil
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err == nil {
		if id <= 0 {
			return nil
		}
		return &workflow.StageRef{ID: id}
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) == 0 {
		return nil
	}
	if err := json.Unmarshal(pair[0], &id); err != nil || id <= 0 {
		return nil
	}
	ref := &workflow.StageRef{ID: id}
	if len(pair) > 1 {
		var name looseString
		_ = json.Unmarshal(pair[1], &name)
		ref.Name = string(name)
	}
	return ref
}

type productsPayload struct {
	Products []workflow.Product `json:"products"`
}
