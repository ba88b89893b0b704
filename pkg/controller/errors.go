package controller

import (
	"errors"
	"fmt"

	"github.com/rmax-ai/actionflow/pkg/client"
)

var (
	// ErrBusy is returned when a mutation is attempted while another is in flight.
	ErrBusy = errors.New("controller: an operation is already in progress")
	// ErrUnknownNode is returned for node ids absent from the current graph.
	ErrUnknownNode = errors.New("controller: unknown node")
	// ErrUnknownEdge is returned for edge ids absent from the current graph.
	ErrUnknownEdge = errors.New("controller: unknown edge")
	// ErrNoDraft is returned by ConfirmCreate outside the draft state.
	ErrNoDraft = errors.New("controller: no draft in progress")
	// ErrNoSelection is returned by UpdateSelected when no node is selected.
	ErrNoSelection = errors.New("controller: no node selected")
	// ErrConnectAfterCreate marks a create that succeeded while its follow-up connect failed.
	ErrConnectAfterCreate = errors.New("controller: action created but connection failed")
	// ErrNameRequired is returned when a draft is confirmed without a name.
	ErrNameRequired = client.ErrNameRequired
)

// Operation names, also used as metric labels.
const (
	OpLoad        = "load"
	OpRefresh     = "refresh"
	OpConnect     = "connect"
	OpDisconnect  = "disconnect"
	OpDeleteEdge  = "delete_edge"
	OpCreateDraft = "create_draft"
	OpCreate      = "create"
	OpSelect      = "select"
	OpUpdate      = "update"
	OpDeleteNode  = "delete_node"
)

// OpError reports a failed controller operation. Local state is unchanged
// unless Err wraps ErrConnectAfterCreate.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Message is a short description suitable for showing to an operator.
func (e *OpError) Message() string {
	switch {
	case errors.Is(e.Err, ErrBusy):
		return "Another operation is in progress"
	case errors.Is(e.Err, ErrNameRequired):
		return "Name is required"
	case errors.Is(e.Err, ErrConnectAfterCreate):
		return "Action created, but connecting it failed"
	case errors.Is(e.Err, ErrNoSelection):
		return "No action selected"
	case errors.Is(e.Err, ErrNoDraft):
		return "No action is being created"
	case errors.Is(e.Err, ErrUnknownNode):
		return "Action not found"
	case errors.Is(e.Err, ErrUnknownEdge):
		return "Connection not found"
	}
	switch e.Op {
	case OpConnect:
		return "Failed to connect actions"
	case OpDisconnect, OpDeleteEdge:
		return "Failed to remove connection"
	case OpCreate:
		return "Failed to create action"
	case OpUpdate:
		return "Failed to update action"
	case OpDeleteNode:
		return "Failed to delete action"
	}
	return "Operation failed"
}
