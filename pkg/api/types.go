package api

import (
	"github.com/rmax-ai/actionflow/pkg/controller"
	"github.com/rmax-ai/actionflow/pkg/graph"
	"github.com/rmax-ai/actionflow/pkg/workflow"
)

// GraphResponse is the body of GET /v1/graph.
type GraphResponse struct {
	ProductID int64                     `json:"product_id"`
	Loading   bool                      `json:"loading"`
	Nodes     []graph.Node              `json:"nodes"`
	Edges     []graph.Edge              `json:"edges"`
	Records   map[int64]workflow.Action `json:"records"`
	Selection controller.Selection      `json:"selection"`
}

// StagesResponse is the body of GET /v1/stages.
type StagesResponse struct {
	Stages []workflow.OrderStage `json:"stages"`
}

// ErrorResponse is returned on failed requests.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
