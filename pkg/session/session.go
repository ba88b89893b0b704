package session

import (
	"context"
	"errors"
	"strings"
)

// DefaultKey is the well-known name the active session is persisted under.
const DefaultKey = "odoo_auth"

// ErrNoSession is returned when credentials or identity are missing.
var ErrNoSession = errors.New("session: no active session")

// Context carries everything required to authorize a remote call.
type Context struct {
	ServerURL string `json:"server_url"`
	Database  string `json:"database"`
	Username  string `json:"username"`
	UID       int64  `json:"uid"`
	Password  string `json:"password"`
}

// Complete reports whether c can authorize a data call.
func (c *Context) Complete() bool {
	if c == nil {
		return false
	}
	return strings.TrimSpace(c.ServerURL) != "" &&
		c.Database != "" &&
		c.UID > 0 &&
		c.Password != ""
}

// Store persists session contexts under a name.
type Store interface {
	// Load returns nil, nil when nothing is stored under key.
	Load(ctx context.Context, key string) (*Context, error)
	Save(ctx context.Context, key string, c *Context) error
	Delete(ctx context.Context, key string) error
}

// Resolve loads the session stored under key and checks it is usable.
func Resolve(ctx context.Context, st Store, key string) (*Context, error) {
	if key == "" {
		key = DefaultKey
	}
	c, err := st.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !c.Complete() {
		return nil, ErrNoSession
	}
	return c, nil
}
