package provider

import "testing"

// TestCapabilityState_AddModel verifies deduplication and insertion
// order.
func TestCapabilityState_AddModel(t *testing.T) {
	var c capabilityState
	c.addModel("opus")
	c.addModel("sonnet")
	c.addModel("opus")
	c.addModel("")

	want := []string{"opus", "sonnet"}
	if len(c.models) != len(want) {
		t.Fatalf("Expected %v, got %v", want, c.models)
	}
	for i := range want {
		if c.models[i] != want[i] {
			t.Errorf("Model %d: expected %s, got %s", i, want[i], c.models[i])
		}
	}
}

// TestCapabilityState_SnapshotIsCopy verifies mutating a snapshot does
// not leak back into backend state.
func TestCapabilityState_SnapshotIsCopy(t *testing.T) {
	c := capabilityState{
		model:    "opus",
		models:   []string{"opus"},
		commands: []string{"compact"},
		tools:    []string{"Read"},
		servers:  []string{"inkdesk"},
	}

	snap := c.snapshot(PolicyFullWorkspace)
	snap.Models[0] = "mutated"
	snap.Tools[0] = "mutated"

	if c.models[0] != "opus" || c.tools[0] != "Read" {
		t.Error("Snapshot must be a deep copy of the list fields")
	}
	if snap.Policy != PolicyFullWorkspace {
		t.Errorf("Expected policy to be carried through, got %s", snap.Policy)
	}
}
