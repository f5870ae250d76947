// Package workspace holds the document data model the assistant
// operates on. The provider layer consumes it read-only: a textual
// context prefix plus two gate flags.
package workspace

import (
	"fmt"
	"strings"
	"sync"
)

// Document is one titled text document.
type Document struct {
	Title string
	Body  string
}

// Table is a named grid with a fixed column set.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Workspace is the in-memory state of one open workspace directory.
type Workspace struct {
	mu          sync.Mutex
	root        string
	documents   []Document
	tables      []Table
	dirty       bool
	editingCell bool
}

// New opens a workspace rooted at dir.
func New(dir string) *Workspace {
	return &Workspace{root: dir}
}

// Root returns the workspace directory.
func (w *Workspace) Root() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root
}

// Dirty reports unsaved changes.
func (w *Workspace) Dirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

// EditingCell reports an in-progress cell edit.
func (w *Workspace) EditingCell() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.editingCell
}

// SetDirty marks or clears the unsaved-changes flag.
func (w *Workspace) SetDirty(dirty bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirty = dirty
}

// SetEditingCell marks or clears the cell-edit flag.
func (w *Workspace) SetEditingCell(editing bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.editingCell = editing
}

// AddDocument appends a document and marks the workspace dirty.
func (w *Workspace) AddDocument(doc Document) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.documents = append(w.documents, doc)
	w.dirty = true
}

// AddTable appends a table and marks the workspace dirty.
func (w *Workspace) AddTable(tbl Table) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tables = append(w.tables, tbl)
	w.dirty = true
}

// Documents returns a copy of the document list.
func (w *Workspace) Documents() []Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Document(nil), w.documents...)
}

// Tables returns a copy of the table list.
func (w *Workspace) Tables() []Table {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Table, len(w.tables))
	copy(out, w.tables)
	return out
}

// ContextString renders the workspace as the read-only context prefix
// sent ahead of each user message. Empty when the workspace holds
// nothing.
func (w *Workspace) ContextString() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.documents) == 0 && len(w.tables) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Current workspace contents:\n")
	for _, doc := range w.documents {
		fmt.Fprintf(&sb, "\n## Document: %s\n%s\n", doc.Title, doc.Body)
	}
	for _, tbl := range w.tables {
		fmt.Fprintf(&sb, "\n## Table: %s\n", tbl.Name)
		sb.WriteString(strings.Join(tbl.Columns, " | "))
		sb.WriteByte('\n')
		for _, row := range tbl.Rows {
			sb.WriteString(strings.Join(row, " | "))
			sb.WriteByte('\n')
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
