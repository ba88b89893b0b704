package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rmax-ai/actionflow/pkg/rpc"
	"github.com/rmax-ai/actionflow/pkg/session"
	"github.com/rmax-ai/actionflow/pkg/workflow"
)

var (
	// ErrNameRequired is returned when an action would be created without a name.
	ErrNameRequired = errors.New("client: action name is required")
	// ErrRejected is returned when the store answered a mutation with a falsy result.
	ErrRejected = errors.New("client: store rejected the change")
)

// Client translates graph-level intents into record store calls.
// Reads never fail: any error is logged and an empty result returned.
// Mutations report an error and never retry.
type Client struct {
	rpc    *rpc.Client
	sess   *session.Context
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	logger  *slog.Logger
	rpcOpts []rpc.Option
}

// WithLogger sets the logger for degraded reads.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// WithRPCOptions forwards options to the underlying transport.
func WithRPCOptions(opts ...rpc.Option) Option {
	return func(o *clientOptions) { o.rpcOpts = append(o.rpcOpts, opts...) }
}

// New returns a client bound to sess. A nil or incomplete session is accepted;
// every operation then fails with session.ErrNoSession without touching the network.
func New(sess *session.Context, opts ...Option) *Client {
	o := clientOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{sess: sess, logger: o.logger}
	if sess.Complete() {
		c.rpc = rpc.New(sess.ServerURL, append([]rpc.Option{rpc.WithLogger(o.logger)}, o.rpcOpts...)...)
	}
	return c
}

func (c *Client) executeKW(ctx context.Context, model, op string, args ...any) (json.RawMessage, error) {
	if c.rpc == nil {
		return nil, session.ErrNoSession
	}
	callArgs := append([]any{c.sess.Database, c.sess.UID, c.sess.Password, model, op}, args...)
	return c.rpc.Call(ctx, "object", "execute_kw", callArgs...)
}

// ListActionsForProduct returns the template actions of a product.
func (c *Client) ListActionsForProduct(ctx context.Context, productID int64) []workflow.Action {
	domain := []any{
		[]any{"product_id", "=", productID},
		[]any{"is_template", "=", true},
	}
	raw, err := c.executeKW(ctx, ModelWorkflowLine, "search_read", []any{domain}, map[string]any{})
	if err != nil {
		c.logger.Warn("failed to list actions", "product_id", productID, "error", err)
		return []workflow.Action{}
	}

	var records []rawAction
	if rpc.Truthy(raw) {
		if err := json.Unmarshal(raw, &records); err != nil {
			c.logger.Warn("failed to decode actions", "product_id", productID, "error", err)
			return []workflow.Action{}
		}
	}
	out := make([]workflow.Action, 0, len(records))
	for _, r := range records {
		out = append(out, r.normalize())
	}
	return out
}

// ListOrderStages returns the stage lookup table.
func (c *Client) ListOrderStages(ctx context.Context) []workflow.OrderStage {
	raw, err := c.executeKW(ctx, ModelOrderState, "search_read",
		[]any{[]any{}},
		map[string]any{"fields": []string{"id", "name"}},
	)
	if err != nil {
		c.logger.Warn("failed to list order stages", "error", err)
		return []workflow.OrderStage{}
	}
	var stages []workflow.OrderStage
	if rpc.Truthy(raw) {
		if err := json.Unmarshal(raw, &stages); err != nil {
			c.logger.Warn("failed to decode order stages", "error", err)
			return []workflow.OrderStage{}
		}
	}
	if stages == nil {
		stages = []workflow.OrderStage{}
	}
	return stages
}

// ListProducts returns the products a workflow can be attached to.
func (c *Client) ListProducts(ctx context.Context) []workflow.Product {
	if c.rpc == nil {
		c.logger.Warn("failed to list products", "error", session.ErrNoSession)
		return []workflow.Product{}
	}
	raw, err := c.rpc.Call(ctx, "object", "execute",
		c.sess.Database, c.sess.UID, c.sess.Password, ModelWebservice, "get_products_data", 0)
	if err != nil {
		c.logger.Warn("failed to list products", "error", err)
		return []workflow.Product{}
	}
	var payload productsPayload
	if rpc.Truthy(raw) {
		if err := json.Unmarshal(raw, &payload); err != nil {
			c.logger.Warn("failed to decode products", "error", err)
			return []workflow.Product{}
		}
	}
	if payload.Products == nil {
		return []workflow.Product{}
	}
	return payload.Products
}

// CreateAction creates a template action on productID and returns its id.
func (c *Client) CreateAction(ctx context.Context, productID int64, name string, fields workflow.Fields) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrNameRequired
	}
	values := fields.Values()
	values["name"] = name
	values["product_id"] = productID
	values["is_template"] = true

	raw, err := c.executeKW(ctx, ModelWorkflowLine, "create", []any{values})
	if err != nil {
		return 0, fmt.Errorf("create action: %w", err)
	}
	var id int64
	if !rpc.Truthy(raw) || json.Unmarshal(raw, &id) != nil || id <= 0 {
		return 0, fmt.Errorf("create action: %w", ErrRejected)
	}
	return id, nil
}

// UpdateAction writes fields onto action id. An empty field set succeeds without a call.
func (c *Client) UpdateAction(ctx context.Context, id int64, fields workflow.Fields) error {
	if fields.Empty() {
		if c.rpc == nil {
			return session.ErrNoSession
		}
		return nil
	}
	return c.write(ctx, "update action", id, fields.Values())
}

// DeleteAction removes action id.
func (c *Client) DeleteAction(ctx context.Context, id int64) error {
	raw, err := c.executeKW(ctx, ModelWorkflowLine, "unlink", []any{[]int64{id}})
	if err != nil {
		return fmt.Errorf("delete action %d: %w", id, err)
	}
	if !rpc.Truthy(raw) {
		return fmt.Errorf("delete action %d: %w", id, ErrRejected)
	}
	return nil
}

// AddRelation adds target to the related set of source.
func (c *Client) AddRelation(ctx context.Context, source, target int64) error {
	return c.write(ctx, "add relation", source, map[string]any{
		"related_line_ids": [][2]int64{{relationLink, target}},
	})
}

// RemoveRelation removes target from the related set of source.
func (c *Client) RemoveRelation(ctx context.Context, source, target int64) error {
	return c.write(ctx, "remove relation", source, map[string]any{
		"related_line_ids": [][2]int64{{relationUnlink, target}},
	})
}

func (c *Client) write(ctx context.Context, op string, id int64, values map[string]any) error {
	raw, err := c.executeKW(ctx, ModelWorkflowLine, "write", []any{[]int64{id}, values})
	if err != nil {
		return fmt.Errorf("%s %d: %w", op, id, err)
	}
	if !rpc.Truthy(raw) {
		return fmt.Errorf("%s %d: %w", op, id, ErrRejected)
	}
	return nil
}
