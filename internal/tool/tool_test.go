package tool

import (
	"context"
	"encoding/json"
	"testing"
)

type stubTool struct {
	name string
}

func (s stubTool) Name() string                { return s.name }
func (s stubTool) Description() string         { return "desc of " + s.name }
func (s stubTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (s stubTool) Execute(context.Context, json.RawMessage) (string, error) {
	return "", nil
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "search_web"})

	if _, ok := r.Get("search_web"); !ok {
		t.Fatal("registered tool not found")
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatal("unregistered tool found")
	}
}

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		r.Register(stubTool{name: name})
	}

	var got []string
	for _, tl := range r.All() {
		got = append(got, tl.Name())
	}
	if len(got) != 3 || got[0] != "c" || got[1] != "a" || got[2] != "b" {
		t.Fatalf("order = %v, want [c a b]", got)
	}
}

func TestRegistryReplaceKeepsPosition(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "a"})
	r.Register(stubTool{name: "b"})
	r.Register(stubTool{name: "a"}) // re-registration

	all := r.All()
	if len(all) != 2 || all[0].Name() != "a" || all[1].Name() != "b" {
		t.Fatalf("tools = %v", all)
	}
}

func TestAsLLMTools(t *testing.T) {
	r := NewRegistry()
	r.Register(stubTool{name: "search_web"})

	tools := r.AsLLMTools()
	if len(tools) != 1 {
		t.Fatalf("tools = %d, want 1", len(tools))
	}
	tl := tools[0]
	if tl.Type != "function" {
		t.Errorf("type = %q", tl.Type)
	}
	if tl.Function.Name != "search_web" || tl.Function.Description != "desc of search_web" {
		t.Errorf("function = %+v", tl.Function)
	}
	if string(tl.Function.Parameters) != `{"type":"object"}` {
		t.Errorf("parameters = %s", tl.Function.Parameters)
	}
}
