// Package sessiontest holds a behavioural suite shared by session.Store implementations.
package sessiontest

import (
	"context"
	"testing"

	"github.com/rmax-ai/actionflow/pkg/session"
)

// RunStoreTests exercises the Store contract against st.
func RunStoreTests(t *testing.T, st session.Store) {
	ctx := context.Background()

	t.Run("Load missing", func(t *testing.T) {
		c, err := st.Load(ctx, "missing")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if c != nil {
			t.Errorf("expected nil context, got %+v", c)
		}
	})

	t.Run("Save and Load", func(t *testing.T) {
		want := &session.Context{
			ServerURL: "https://erp.example.com",
			Database:  "prod",
			Username:  "admin",
			UID:       2,
			Password:  "secret",
		}
		if err := st.Save(ctx, session.DefaultKey, want); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		got, err := st.Load(ctx, session.DefaultKey)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got == nil || *got != *want {
			t.Errorf("Load = %+v; want %+v", got, want)
		}
	})

	t.Run("Save overwrites", func(t *testing.T) {
		first := &session.Context{ServerURL: "http://a", Database: "a", UID: 1, Password: "p"}
		second := &session.Context{ServerURL: "http://b", Database: "b", UID: 3, Password: "q"}
		if err := st.Save(ctx, "overwrite", first); err != nil {
			t.Fatal(err)
		}
		if err := st.Save(ctx, "overwrite", second); err != nil {
			t.Fatal(err)
		}
		got, err := st.Load(ctx, "overwrite")
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.Database != "b" || got.UID != 3 {
			t.Errorf("expected second session, got %+v", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := st.Delete(ctx, session.DefaultKey); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		got, err := st.Load(ctx, session.DefaultKey)
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Errorf("expected session gone, got %+v", got)
		}
		if err := st.Delete(ctx, session.DefaultKey); err != nil {
			t.Errorf("second Delete should be a no-op, got %v", err)
		}
	})

	t.Run("Resolve incomplete", func(t *testing.T) {
		if err := st.Save(ctx, "partial", &session.Context{ServerURL: "http://a", Database: "a"}); err != nil {
			t.Fatal(err)
		}
		if _, err := session.Resolve(ctx, st, "partial"); err != session.ErrNoSession {
			t.Errorf("Resolve = %v; want ErrNoSession", err)
		}
	})
}
