package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_CallEnvelope(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jsonrpc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":"x","result":true}`))
	}))
	defer ts.Close()

	c := New(ts.URL + "/")
	raw, err := c.Call(context.Background(), "object", "execute_kw", "db", 2, "pw", "dpi.workflow.line", "write", []any{})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if string(raw) != "true" {
		t.Errorf("result = %s", raw)
	}

	if got["jsonrpc"] != "2.0" || got["method"] != "call" {
		t.Errorf("bad envelope: %v", got)
	}
	if id, _ := got["id"].(string); id == "" {
		t.Errorf("expected request id, got %v", got["id"])
	}
	p, _ := got["params"].(map[string]any)
	if p["service"] != "object" || p["method"] != "execute_kw" {
		t.Errorf("bad params: %v", p)
	}
	args, _ := p["args"].([]any)
	if len(args) != 6 || args[3] != "dpi.workflow.line" || args[4] != "write" {
		t.Errorf("bad args: %v", args)
	}
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantRemote    bool
		wantTransport bool
	}{
		{"RemoteError", http.StatusOK, `{"jsonrpc":"2.0","error":{"code":200,"message":"Odoo Server Error","data":{"name":"odoo.exceptions.AccessError","message":"denied"}}}`, true, false},
		{"BadStatus", http.StatusBadGateway, `upstream down`, false, true},
		{"Malformed", http.StatusOK, `{not json`, false, true},
		{"OK", http.StatusOK, `{"jsonrpc":"2.0","result":[]}`, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			_, err := New(ts.URL).Call(context.Background(), "common", "version")
			if IsRemote(err) != tt.wantRemote {
				t.Errorf("IsRemote(%v) = %v; want %v", err, IsRemote(err), tt.wantRemote)
			}
			if IsTransport(err) != tt.wantTransport {
				t.Errorf("IsTransport(%v) = %v; want %v", err, IsTransport(err), tt.wantTransport)
			}
			if !tt.wantRemote && !tt.wantTransport && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New(url).Call(context.Background(), "common", "version")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Op != "send" {
		t.Errorf("Op = %q; want send", te.Op)
	}
}

func TestClient_Authenticate(t *testing.T) {
	tests := []struct {
		name    string
		result  string
		wantUID int64
		wantErr error
	}{
		{"Success", `7`, 7, nil},
		{"False", `false`, 0, ErrAuthFailed},
		{"Null", `null`, 0, ErrAuthFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req request
				json.NewDecoder(r.Body).Decode(&req)
				if req.Params.Service != "common" || req.Params.Method != "authenticate" {
					t.Errorf("unexpected call %s.%s", req.Params.Service, req.Params.Method)
				}
				if len(req.Params.Args) != 4 {
					t.Errorf("expected 4 args, got %v", req.Params.Args)
				}
				w.Write([]byte(`{"jsonrpc":"2.0","result":` + tt.result + `}`))
			}))
			defer ts.Close()

			uid, err := New(ts.URL).Authenticate(context.Background(), "db", "admin", "pw")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v; want %v", err, tt.wantErr)
			}
			if uid != tt.wantUID {
				t.Errorf("uid = %d; want %d", uid, tt.wantUID)
			}
		})
	}
}

func TestClient_TimeoutLeavesSharedClient(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	a := New("http://a.example", WithHTTPClient(shared), WithTimeout(2*time.Second))
	b := New("http://b.example", WithTimeout(3*time.Second), WithHTTPClient(shared))
	plain := New("http://c.example", WithHTTPClient(shared))

	if shared.Timeout != time.Minute {
		t.Errorf("shared client timeout changed to %s", shared.Timeout)
	}
	if a.http.Timeout != 2*time.Second || b.http.Timeout != 3*time.Second {
		t.Errorf("timeouts not applied: a=%s b=%s", a.http.Timeout, b.http.Timeout)
	}
	if a.http == shared || b.http == shared {
		t.Error("timeout should apply to a copy of the shared client")
	}
	if plain.http != shared {
		t.Error("client without a timeout option should use the shared client as is")
	}
	if def := New("http://d.example"); def.http.Timeout != defaultTimeout {
		t.Errorf("default timeout = %s", def.http.Timeout)
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"", false},
		{"null", false},
		{"false", false},
		{"0", false},
		{`""`, false},
		{"true", true},
		{"42", true},
		{"[]", true},
		{"{}", true},
		{`"x"`, true},
	}
	for _, tt := range tests {
		if got := Truthy(json.RawMessage(tt.raw)); got != tt.want {
			t.Errorf("Truthy(%q) = %v; want %v", tt.raw, got, tt.want)
		}
	}
}
