package core

import (
	"testing"
)

// TestFindTransferables_Discovery tests the depth-first walk
// Main test items:
// 1. Transferables are found at any depth in sequences and mappings
// 2. Primitives and nils are skipped
// 3. The walk does not descend into a recognised transferable
func TestFindTransferables_Discovery(t *testing.T) {
	inner := NewBuffer([]byte{1, 2, 3})
	port, _ := PortPair()

	graph := map[string]any{
		"numbers": []int{1, 2, 3},
		"nested": []any{
			nil,
			"text",
			map[string]any{"buf": inner},
		},
		"port": port,
	}

	found := FindTransferables(graph)
	if len(found) != 2 {
		t.Fatalf("Expected 2 transferables, got %d", len(found))
	}

	seen := map[Transferable]bool{}
	for _, tr := range found {
		seen[tr] = true
	}
	if !seen[inner] || !seen[port] {
		t.Errorf("Expected both the buffer and the port, got %v", found)
	}
}

// TestFindTransferables_NoDuplicates tests handle dedup
// Main test items:
// 1. A handle reachable along several paths is reported once
func TestFindTransferables_NoDuplicates(t *testing.T) {
	buf := NewBuffer([]byte("payload"))
	graph := []any{buf, map[string]any{"again": buf}, []any{buf}}

	found := FindTransferables(graph)
	if len(found) != 1 {
		t.Fatalf("Expected 1 deduplicated handle, got %d", len(found))
	}
	if found[0] != buf {
		t.Errorf("Expected the buffer, got %v", found[0])
	}
}

// TestFindTransferables_Structs tests traversal of struct graphs
// Main test items:
// 1. Exported fields are traversed
// 2. Unexported fields are left alone
func TestFindTransferables_Structs(t *testing.T) {
	type payload struct {
		Buf    *Buffer
		hidden *Buffer
		Label  string
	}

	visible := NewBuffer([]byte("a"))
	invisible := NewBuffer([]byte("b"))
	found := FindTransferables(payload{Buf: visible, hidden: invisible, Label: "x"})

	if len(found) != 1 {
		t.Fatalf("Expected 1 transferable, got %d", len(found))
	}
	if found[0] != visible {
		t.Error("Expected only the exported field's buffer")
	}
}

// TestFindTransferables_EmptyInputs tests degenerate graphs
// Main test items:
// 1. Nil and transferable-free inputs return nothing
func TestFindTransferables_EmptyInputs(t *testing.T) {
	if got := FindTransferables(nil); got != nil {
		t.Errorf("Expected nil for nil input, got %v", got)
	}
	if got := FindTransferables([]int{1, 2, 3}); len(got) != 0 {
		t.Errorf("Expected nothing for a primitive slice, got %v", got)
	}
	if got := FindTransferables(map[string]string{"a": "b"}); len(got) != 0 {
		t.Errorf("Expected nothing for a string map, got %v", got)
	}
}
