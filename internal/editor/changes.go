package editor

import (
	"fmt"
	"strings"
)

// OpType represents the kind of a recorded change.
type OpType int

const (
	OpEdit OpType = iota
	OpInsertRow
	OpDeleteRows
	OpAddColumn
	OpRenameColumn
	OpDeleteColumn
	OpMoveColumn
)

var opNames = map[OpType][2]string{
	OpEdit:         {"edit", "edits"},
	OpInsertRow:    {"row added", "rows added"},
	OpDeleteRows:   {"row deleted", "rows deleted"},
	OpAddColumn:    {"column added", "columns added"},
	OpRenameColumn: {"column renamed", "columns renamed"},
	OpDeleteColumn: {"column deleted", "columns deleted"},
	OpMoveColumn:   {"column moved", "columns moved"},
}

// Change is one mutation applied since the last load or save.
type Change struct {
	Type     OpType
	RowID    int64
	Column   int
	OldValue string
	NewValue string
	// Count is the number of rows a deletion removed.
	Count int
}

// ChangeTracker records every mutation since the table was loaded or last
// saved. It is the session's dirty flag.
type ChangeTracker struct {
	changes []Change
}

// NewChangeTracker creates a new empty change tracker.
func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{}
}

// Record adds a change. Repeated edits of the same cell collapse into one,
// keeping the first old value.
func (ct *ChangeTracker) Record(c Change) {
	if c.Type == OpEdit {
		for i, e := range ct.changes {
			if e.Type == OpEdit && e.RowID == c.RowID && e.Column == c.Column {
				ct.changes[i].NewValue = c.NewValue
				return
			}
		}
	}
	if c.Type == OpDeleteRows && c.Count == 0 {
		c.Count = 1
	}
	ct.changes = append(ct.changes, c)
}

// HasChanges returns whether there are unsaved changes.
func (ct *ChangeTracker) HasChanges() bool {
	return len(ct.changes) > 0
}

// PendingCount returns the number of affected cells, rows and columns.
func (ct *ChangeTracker) PendingCount() int {
	n := 0
	for _, c := range ct.changes {
		if c.Type == OpDeleteRows {
			n += c.Count
		} else {
			n++
		}
	}
	return n
}

// Changes returns the recorded changes in order.
func (ct *ChangeTracker) Changes() []Change {
	return ct.changes
}

// CellEdit returns the staged edit for a cell, if any.
func (ct *ChangeTracker) CellEdit(rowID int64, col int) (Change, bool) {
	for _, c := range ct.changes {
		if c.Type == OpEdit && c.RowID == rowID && c.Column == col {
			return c, true
		}
	}
	return Change{}, false
}

// Summary describes the pending changes, e.g. "2 edits, 1 row added".
func (ct *ChangeTracker) Summary() string {
	counts := make(map[OpType]int)
	for _, c := range ct.changes {
		if c.Type == OpDeleteRows {
			counts[c.Type] += c.Count
		} else {
			counts[c.Type]++
		}
	}
	var parts []string
	for op := OpEdit; op <= OpMoveColumn; op++ {
		n := counts[op]
		if n == 0 {
			continue
		}
		name := opNames[op][1]
		if n == 1 {
			name = opNames[op][0]
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, name))
	}
	return strings.Join(parts, ", ")
}

// Clear removes all recorded changes.
func (ct *ChangeTracker) Clear() {
	ct.changes = nil
}

// remapColumns rewrites the column of every staged edit after a column was
// moved or removed. Edits whose column is gone are dropped from the cell
// view but still count as pending.
func (ct *ChangeTracker) remapColumns(remap func(int) (int, bool)) {
	for i, c := range ct.changes {
		if c.Type != OpEdit {
			continue
		}
		if col, ok := remap(c.Column); ok {
			ct.changes[i].Column = col
		} else {
			ct.changes[i].Column = -1
		}
	}
}
