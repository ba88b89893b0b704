package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rmax-ai/actionflow/pkg/rpc"
	"github.com/rmax-ai/actionflow/pkg/session"
	"github.com/rmax-ai/actionflow/pkg/workflow"
)

type call struct {
	Service string            `json:"service"`
	Method  string            `json:"method"`
	Args    []json.RawMessage `json:"args"`
}

func (c call) model() string {
	var s string
	if len(c.Args) > 3 {
		json.Unmarshal(c.Args[3], &s)
	}
	return s
}

func (c call) op() string {
	var s string
	if len(c.Args) > 4 {
		json.Unmarshal(c.Args[4], &s)
	}
	return s
}

// fakeStore is a JSON-RPC endpoint that records calls and answers with a fixed body.
type fakeStore struct {
	mu    sync.Mutex
	calls []call
	body  string
}

func newFakeStore(t *testing.T, body string) (*fakeStore, *httptest.Server) {
	t.Helper()
	fs := &fakeStore{body: body}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env struct {
			Params call `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fs.mu.Lock()
		fs.calls = append(fs.calls, env.Params)
		body := fs.body
		fs.mu.Unlock()
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return fs, ts
}

func (fs *fakeStore) last(t *testing.T) call {
	t.Helper()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.calls) == 0 {
		t.Fatal("expected a call")
	}
	return fs.calls[len(fs.calls)-1]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(url string) *Client {
	return New(&session.Context{ServerURL: url, Database: "prod", UID: 2, Password: "secret"}, WithLogger(quietLogger()))
}

func TestClient_NoSession(t *testing.T) {
	fs, ts := newFakeStore(t, `{"result":true}`)
	incomplete := &session.Context{ServerURL: ts.URL, Database: "prod"}

	for name, c := range map[string]*Client{
		"Nil":        New(nil, WithLogger(quietLogger())),
		"Incomplete": New(incomplete, WithLogger(quietLogger())),
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if got := c.ListActionsForProduct(ctx, 1); len(got) != 0 {
				t.Errorf("expected empty actions, got %v", got)
			}
			if got := c.ListOrderStages(ctx); len(got) != 0 {
				t.Errorf("expected empty stages, got %v", got)
			}
			if got := c.ListProducts(ctx); len(got) != 0 {
				t.Errorf("expected empty products, got %v", got)
			}
			if _, err := c.CreateAction(ctx, 1, "Start", workflow.Fields{}); !errors.Is(err, session.ErrNoSession) {
				t.Errorf("CreateAction err = %v", err)
			}
			if err := c.UpdateAction(ctx, 1, workflow.Fields{}); !errors.Is(err, session.ErrNoSession) {
				t.Errorf("UpdateAction err = %v", err)
			}
			if err := c.DeleteAction(ctx, 1); !errors.Is(err, session.ErrNoSession) {
				t.Errorf("DeleteAction err = %v", err)
			}
			if err := c.AddRelation(ctx, 1, 2); !errors.Is(err, session.ErrNoSession) {
				t.Errorf("AddRelation err = %v", err)
			}
			if err := c.RemoveRelation(ctx, 1, 2); !errors.Is(err, session.ErrNoSession) {
				t.Errorf("RemoveRelation err = %v", err)
			}
		})
	}

	if len(fs.calls) != 0 {
		t.Errorf("expected no network calls, got %d", len(fs.calls))
	}
}

func TestClient_ListActionsForProduct(t *testing.T) {
	fs, ts := newFakeStore(t, `{"jsonrpc":"2.0","result":[
		{"id":1,"name":"Start","action_description":false,"state":"draft","priority":"high","stage_id":[5,"Cutting"],"related_line_ids":[2]},
		{"id":2,"name":"Review","action_description":"check it","state":"bogus","priority":3,"stage_id":false,"related_line_ids":[]},
		{"id":3,"name":"Ship","priority":"1","stage_id":7}
	]}`)
	c := newTestClient(ts.URL)

	got := c.ListActionsForProduct(context.Background(), 42)
	if len(got) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(got))
	}

	start := got[0]
	if start.Description != "" {
		t.Errorf("false description should normalize to empty, got %q", start.Description)
	}
	if start.Priority != workflow.PriorityHigh {
		t.Errorf("priority = %q", start.Priority)
	}
	if start.Stage == nil || start.Stage.ID != 5 || start.Stage.Name != "Cutting" {
		t.Errorf("stage = %+v", start.Stage)
	}
	if len(start.RelatedIDs) != 1 || start.RelatedIDs[0] != 2 {
		t.Errorf("related = %v", start.RelatedIDs)
	}

	review := got[1]
	if review.Priority != workflow.PriorityUrgent {
		t.Errorf("numeric priority 3 should be urgent, got %q", review.Priority)
	}
	if review.Stage != nil {
		t.Errorf("stage_id false should be nil, got %+v", review.Stage)
	}
	if review.State != workflow.StateDraft {
		t.Errorf("unknown state should default to draft, got %q", review.State)
	}

	ship := got[2]
	if ship.Priority != workflow.PriorityMedium {
		t.Errorf("priority \"1\" should be medium, got %q", ship.Priority)
	}
	if ship.Stage == nil || ship.Stage.ID != 7 || ship.Stage.Name != "" {
		t.Errorf("bare stage id = %+v", ship.Stage)
	}
	if ship.RelatedIDs == nil {
		t.Error("missing relations should be an empty slice")
	}

	req := fs.last(t)
	if req.Service != "object" || req.Method != "execute_kw" {
		t.Errorf("unexpected call %s.%s", req.Service, req.Method)
	}
	if req.model() != ModelWorkflowLine || req.op() != "search_read" {
		t.Errorf("unexpected target %s.%s", req.model(), req.op())
	}
	if got := string(req.Args[5]); got != `[[["product_id","=",42],["is_template","=",true]]]` {
		t.Errorf("domain = %s", got)
	}
	if got := string(req.Args[6]); got != `{}` {
		t.Errorf("kwargs = %s", got)
	}
	if got := string(req.Args[0]) + string(req.Args[1]) + string(req.Args[2]); got != `"prod"2"secret"` {
		t.Errorf("credentials = %s", got)
	}
}

func TestClient_ReadsDegrade(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"RemoteError", `{"jsonrpc":"2.0","error":{"code":200,"message":"boom"}}`},
		{"NullResult", `{"jsonrpc":"2.0","result":null}`},
		{"Malformed", `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newFakeStore(t, tt.body)
			c := newTestClient(ts.URL)
			ctx := context.Background()

			if got := c.ListActionsForProduct(ctx, 1); got == nil || len(got) != 0 {
				t.Errorf("actions = %v", got)
			}
			if got := c.ListOrderStages(ctx); got == nil || len(got) != 0 {
				t.Errorf("stages = %v", got)
			}
			if got := c.ListProducts(ctx); got == nil || len(got) != 0 {
				t.Errorf("products = %v", got)
			}
		})
	}
}

func TestClient_ListOrderStages(t *testing.T) {
	fs, ts := newFakeStore(t, `{"jsonrpc":"2.0","result":[{"id":1,"name":"Cutting"},{"id":2,"name":"Sewing"}]}`)
	c := newTestClient(ts.URL)

	got := c.ListOrderStages(context.Background())
	if len(got) != 2 || got[1].Name != "Sewing" {
		t.Fatalf("stages = %v", got)
	}
	req := fs.last(t)
	if req.model() != ModelOrderState {
		t.Errorf("model = %s", req.model())
	}
	if string(req.Args[5]) != `[[]]` || string(req.Args[6]) != `{"fields":["id","name"]}` {
		t.Errorf("args = %s %s", req.Args[5], req.Args[6])
	}
}

func TestClient_ListProducts(t *testing.T) {
	fs, ts := newFakeStore(t, `{"jsonrpc":"2.0","result":{"products":[{"id":9,"name":"Jacket"}]}}`)
	c := newTestClient(ts.URL)

	got := c.ListProducts(context.Background())
	if len(got) != 1 || got[0].ID != 9 || got[0].Name != "Jacket" {
		t.Fatalf("products = %v", got)
	}
	req := fs.last(t)
	if req.Method != "execute" || req.model() != ModelWebservice || req.op() != "get_products_data" {
		t.Errorf("unexpected call %s %s.%s", req.Method, req.model(), req.op())
	}
	if len(req.Args) != 6 || string(req.Args[5]) != "0" {
		t.Errorf("args = %v", req.Args)
	}
}

func TestClient_CreateAction(t *testing.T) {
	t.Run("Payload", func(t *testing.T) {
		fs, ts := newFakeStore(t, `{"jsonrpc":"2.0","result":17}`)
		c := newTestClient(ts.URL)

		fields := workflow.Fields{Priority: workflow.Ptr(workflow.PriorityHigh), StageID: workflow.Ptr(int64(0))}
		id, err := c.CreateAction(context.Background(), 42, "  Review ", fields)
		if err != nil {
			t.Fatalf("CreateAction failed: %v", err)
		}
		if id != 17 {
			t.Errorf("id = %d", id)
		}

		req := fs.last(t)
		if req.op() != "create" {
			t.Errorf("op = %s", req.op())
		}
		var payload []map[string]any
		if err := json.Unmarshal(req.Args[5], &payload); err != nil || len(payload) != 1 {
			t.Fatalf("payload = %s", req.Args[5])
		}
		p := payload[0]
		if p["name"] != "Review" || p["product_id"] != float64(42) || p["is_template"] != true {
			t.Errorf("payload = %v", p)
		}
		if p["priority"] != "high" || p["stage_id"] != false {
			t.Errorf("fields = %v", p)
		}
		if _, ok := p["state"]; ok {
			t.Errorf("unset fields must not be sent: %v", p)
		}
	})

	t.Run("NameRequired", func(t *testing.T) {
		fs, ts := newFakeStore(t, `{"jsonrpc":"2.0","result":17}`)
		c := newTestClient(ts.URL)

		_, err := c.CreateAction(context.Background(), 42, "   ", workflow.Fields{})
		if !errors.Is(err, ErrNameRequired) {
			t.Fatalf("err = %v", err)
		}
		if len(fs.calls) != 0 {
			t.Error("expected no call for an empty name")
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		_, ts := newFakeStore(t, `{"jsonrpc":"2.0","result":false}`)
		_, err := newTestClient(ts.URL).CreateAction(context.Background(), 42, "Start", workflow.Fields{})
		if !errors.Is(err, ErrRejected) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestClient_Mutations(t *testing.T) {
	tests := []struct {
		name     string
		run      func(c *Client) error
		wantOp   string
		wantArgs string
	}{
		{
			name:     "UpdateAction",
			run:      func(c *Client) error { return c.UpdateAction(context.Background(), 3, workflow.Fields{Name: workflow.Ptr("Ship")}) },
			wantOp:   "write",
			wantArgs: `[[3],{"name":"Ship"}]`,
		},
		{
			name:     "DeleteAction",
			run:      func(c *Client) error { return c.DeleteAction(context.Background(), 3) },
			wantOp:   "unlink",
			wantArgs: `[[3]]`,
		},
		{
			name:     "AddRelation",
			run:      func(c *Client) error { return c.AddRelation(context.Background(), 1, 2) },
			wantOp:   "write",
			wantArgs: `[[1],{"related_line_ids":[[4,2]]}]`,
		},
		{
			name:     "RemoveRelation",
			run:      func(c *Client) error { return c.RemoveRelation(context.Background(), 1, 2) },
			wantOp:   "write",
			wantArgs: `[[1],{"related_line_ids":[[3,2]]}]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, ts := newFakeStore(t, `{"jsonrpc":"2.0","result":true}`)
			if err := tt.run(newTestClient(ts.URL)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			req := fs.last(t)
			if req.model() != ModelWorkflowLine || req.op() != tt.wantOp {
				t.Errorf("target = %s.%s", req.model(), req.op())
			}
			if got := string(req.Args[5]); got != tt.wantArgs {
				t.Errorf("args = %s; want %s", got, tt.wantArgs)
			}
		})

		t.Run(tt.name+"/Rejected", func(t *testing.T) {
			_, ts := newFakeStore(t, `{"jsonrpc":"2.0","result":false}`)
			if err := tt.run(newTestClient(ts.URL)); !errors.Is(err, ErrRejected) {
				t.Errorf("err = %v; want ErrRejected", err)
			}
		})

		t.Run(tt.name+"/RemoteError", func(t *testing.T) {
			_, ts := newFakeStore(t, `{"jsonrpc":"2.0","error":{"code":200,"message":"denied"}}`)
			if err := tt.run(newTestClient(ts.URL)); !rpc.IsRemote(err) {
				t.Errorf("err = %v; want remote error", err)
			}
		})
	}
}

func TestClient_UpdateActionEmpty(t *testing.T) {
	fs, ts := newFakeStore(t, `{"jsonrpc":"2.0","result":true}`)
	if err := newTestClient(ts.URL).UpdateAction(context.Background(), 3, workflow.Fields{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fs.calls) != 0 {
		t.Errorf("expected no call, got %d", len(fs.calls))
	}
}
