package checkpoint

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/gatekeep/internal/graph"
)

func savers(t *testing.T) map[string]graph.Saver {
	t.Helper()
	sq, err := NewSQLite(filepath.Join(t.TempDir(), "checkpoints.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]graph.Saver{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestSaverRoundTrip(t *testing.T) {
	for name, s := range savers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := s.Get(ctx, "missing")
			if err != nil || got != nil {
				t.Fatalf("Get(missing) = (%v, %v), want (nil, nil)", got, err)
			}

			cp := &graph.Checkpoint{
				ThreadID:  "t1",
				State:     json.RawMessage(`{"messages":[]}`),
				Node:      "approval",
				Interrupt: json.RawMessage(`{"message":"hold"}`),
				UpdatedAt: time.Now().UTC().Truncate(time.Second),
			}
			if err := s.Put(ctx, cp); err != nil {
				t.Fatal(err)
			}

			got, err = s.Get(ctx, "t1")
			if err != nil {
				t.Fatal(err)
			}
			if got == nil {
				t.Fatal("checkpoint not found after Put")
			}
			if got.ThreadID != "t1" || got.Node != "approval" {
				t.Fatalf("got %+v", got)
			}
			if string(got.State) != `{"messages":[]}` {
				t.Fatalf("state = %s", got.State)
			}
			if string(got.Interrupt) != `{"message":"hold"}` {
				t.Fatalf("interrupt = %s", got.Interrupt)
			}
		})
	}
}

func TestSaverOverwrite(t *testing.T) {
	for name, s := range savers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first := &graph.Checkpoint{
				ThreadID:  "t1",
				State:     json.RawMessage(`{"v":1}`),
				Node:      "approval",
				Interrupt: json.RawMessage(`{}`),
				UpdatedAt: time.Now().UTC(),
			}
			if err := s.Put(ctx, first); err != nil {
				t.Fatal(err)
			}

			// Clearing Node and Interrupt marks the thread as no longer
			// suspended; the overwrite must not keep stale values.
			second := &graph.Checkpoint{
				ThreadID:  "t1",
				State:     json.RawMessage(`{"v":2}`),
				UpdatedAt: time.Now().UTC(),
			}
			if err := s.Put(ctx, second); err != nil {
				t.Fatal(err)
			}

			got, err := s.Get(ctx, "t1")
			if err != nil {
				t.Fatal(err)
			}
			if string(got.State) != `{"v":2}` {
				t.Fatalf("state = %s", got.State)
			}
			if got.Node != "" {
				t.Fatalf("node = %q, want empty", got.Node)
			}
			if len(got.Interrupt) != 0 {
				t.Fatalf("interrupt = %s, want empty", got.Interrupt)
			}
		})
	}
}

func TestSaverDelete(t *testing.T) {
	for name, s := range savers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := s.Delete(ctx, "absent"); err != nil {
				t.Fatalf("delete of absent thread: %v", err)
			}

			cp := &graph.Checkpoint{
				ThreadID:  "t1",
				State:     json.RawMessage(`{}`),
				UpdatedAt: time.Now().UTC(),
			}
			if err := s.Put(ctx, cp); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete(ctx, "t1"); err != nil {
				t.Fatal(err)
			}
			got, err := s.Get(ctx, "t1")
			if err != nil || got != nil {
				t.Fatalf("Get after delete = (%v, %v), want (nil, nil)", got, err)
			}
		})
	}
}

func TestSaverIsolatesThreads(t *testing.T) {
	for name, s := range savers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"a", "b"} {
				cp := &graph.Checkpoint{
					ThreadID:  id,
					State:     json.RawMessage(`{"id":"` + id + `"}`),
					UpdatedAt: time.Now().UTC(),
				}
				if err := s.Put(ctx, cp); err != nil {
					t.Fatal(err)
				}
			}
			if err := s.Delete(ctx, "a"); err != nil {
				t.Fatal(err)
			}
			got, err := s.Get(ctx, "b")
			if err != nil || got == nil {
				t.Fatalf("thread b lost: (%v, %v)", got, err)
			}
		})
	}
}

func TestSQLiteDurability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	ctx := context.Background()

	first, err := NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	cp := &graph.Checkpoint{
		ThreadID:  "t1",
		State:     json.RawMessage(`{"messages":[{"role":"user","content":"hi"}]}`),
		Node:      "approval",
		Interrupt: json.RawMessage(`{"message":"Tool call(s) require approval"}`),
		UpdatedAt: time.Now().UTC(),
	}
	if err := first.Put(ctx, cp); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	// A reopened store must see the suspended thread.
	second, err := NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	got, err := second.Get(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Node != "approval" {
		t.Fatalf("got %+v, want suspended checkpoint", got)
	}
	if string(got.Interrupt) != `{"message":"Tool call(s) require approval"}` {
		t.Fatalf("interrupt = %s", got.Interrupt)
	}
}
