package parse

import "pintrace/internal/program"

// backlogEntry is one opened-but-not-yet-closed unit. caller is the
// separator-joined chain of enclosing function names computed when the entry
// was opened. count accumulates executed instructions while the entry stands
// in for a simulated function call (instructions mode only).
type backlogEntry struct {
	entry  Entry
	caller string
	count  uint64
}

// backlog is an ordered multiset of open entries. All scans run from the most
// recently pushed entry to the oldest: the innermost open call of a
// reentrantly executed unit must close first.
type backlog []backlogEntry

func (b *backlog) push(e backlogEntry) {
	*b = append(*b, e)
}

// removeAt removes and returns the entry at index i, preserving the order of
// the remaining entries.
func (b *backlog) removeAt(i int) backlogEntry {
	e := (*b)[i]
	*b = append((*b)[:i], (*b)[i+1:]...)
	return e
}

// findComplement returns the index of the most recent entry complementary to
// e, or -1.
func (b backlog) findComplement(e Entry) int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i].entry.ComplementaryTo(e) {
			return i
		}
	}
	return -1
}

// findScope returns the index of the most recent entry sharing e's process
// and thread, or -1.
func (b backlog) findScope(e Entry) int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i].entry.SameScope(e) {
			return i
		}
	}
	return -1
}

// findEnclosingFunction returns the index of the most recent entry that
// shares e's scope and belongs to the same function as e, or -1. This locates
// the simulated function call a basic block executes within.
func (b backlog) findEnclosingFunction(e Entry, data *program.Data) int {
	want := data.FunctionName(e.ID, e.Granularity)
	for i := len(b) - 1; i >= 0; i-- {
		if !b[i].entry.SameScope(e) {
			continue
		}
		if data.FunctionName(b[i].entry.ID, b[i].entry.Granularity) == want {
			return i
		}
	}
	return -1
}
