package rca

import "testing"

func TestToolRegistry_RegisterAndGet(t *testing.T) {
	registry := NewToolRegistry()

	if err := registry.Register(&dummyTool{name: "b"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := registry.Register(&dummyTool{name: "a"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tool, err := registry.Get("a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if tool.Name() != "a" {
		t.Errorf("unexpected tool: %s", tool.Name())
	}

	if registry.Len() != 2 {
		t.Errorf("expected 2 tools, got %d", registry.Len())
	}
}

func TestToolRegistry_DuplicateRejected(t *testing.T) {
	registry := NewToolRegistry()

	if err := registry.Register(&dummyTool{name: "x"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	err := registry.Register(&dummyTool{name: "x"})
	if !HasCode(err, ErrCodeValidation) {
		t.Errorf("expected validation error for duplicate, got %v", err)
	}
}

func TestToolRegistry_NilAndUnnamedRejected(t *testing.T) {
	registry := NewToolRegistry()

	if err := registry.Register(nil); err == nil {
		t.Error("nil tool must be rejected")
	}
	if err := registry.Register(&dummyTool{name: ""}); err == nil {
		t.Error("unnamed tool must be rejected")
	}
}

func TestToolRegistry_GetMissing(t *testing.T) {
	registry := NewToolRegistry()

	_, err := registry.Get("ghost")
	if !HasCode(err, ErrCodeToolNotFound) {
		t.Errorf("expected tool not found, got %v", err)
	}
}

func TestToolRegistry_ListSorted(t *testing.T) {
	registry := NewToolRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := registry.Register(&dummyTool{name: name}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	tools := registry.List()
	want := []string{"alpha", "mid", "zeta"}
	for i, tool := range tools {
		if tool.Name() != want[i] {
			t.Errorf("position %d: got %s, want %s", i, tool.Name(), want[i])
		}
	}

	schemas := registry.Schemas()
	if len(schemas) != 3 {
		t.Fatalf("expected 3 schemas, got %d", len(schemas))
	}
	if schemas[0]["name"] != "alpha" {
		t.Errorf("schemas not in name order: %v", schemas[0])
	}
}
