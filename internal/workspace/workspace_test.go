package workspace

import (
	"strings"
	"testing"
)

// TestWorkspace_ContextString_Empty verifies an empty workspace builds
// no context prefix.
func TestWorkspace_ContextString_Empty(t *testing.T) {
	w := New("/ws")
	if got := w.ContextString(); got != "" {
		t.Errorf("Expected empty context, got %q", got)
	}
}

// TestWorkspace_ContextString_Contents verifies documents and tables
// both appear in the prefix.
func TestWorkspace_ContextString_Contents(t *testing.T) {
	w := New("/ws")
	w.AddDocument(Document{Title: "Report", Body: "Quarterly numbers."})
	w.AddTable(Table{
		Name:    "Sales",
		Columns: []string{"Region", "Total"},
		Rows:    [][]string{{"EU", "120"}, {"US", "200"}},
	})

	ctx := w.ContextString()
	for _, want := range []string{"Document: Report", "Quarterly numbers.", "Table: Sales", "Region | Total", "EU | 120"} {
		if !strings.Contains(ctx, want) {
			t.Errorf("Context missing %q:\n%s", want, ctx)
		}
	}
}

// TestWorkspace_MutationsSetDirty verifies edits flip the dirty gate
// until it is explicitly cleared.
func TestWorkspace_MutationsSetDirty(t *testing.T) {
	w := New("/ws")
	if w.Dirty() {
		t.Error("Fresh workspace should not be dirty")
	}

	w.AddDocument(Document{Title: "Notes"})
	if !w.Dirty() {
		t.Error("AddDocument should mark the workspace dirty")
	}

	w.SetDirty(false)
	if w.Dirty() {
		t.Error("SetDirty(false) should clear the flag")
	}
}

// TestWorkspace_EditingCellGate verifies the cell-edit flag round
// trips.
func TestWorkspace_EditingCellGate(t *testing.T) {
	w := New("/ws")
	w.SetEditingCell(true)
	if !w.EditingCell() {
		t.Error("Expected editing flag set")
	}
	w.SetEditingCell(false)
	if w.EditingCell() {
		t.Error("Expected editing flag cleared")
	}
}

// TestWorkspace_CopyOutAccessors verifies returned slices are copies.
func TestWorkspace_CopyOutAccessors(t *testing.T) {
	w := New("/ws")
	w.AddDocument(Document{Title: "A"})

	docs := w.Documents()
	docs[0].Title = "mutated"

	if w.Documents()[0].Title != "A" {
		t.Error("Documents() must return a copy")
	}
}
