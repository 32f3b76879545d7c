package store

import (
	"slices"

	"github.com/drpcorg/objgraph/op"
)

// Entry is one slot of an array. ID and Pred are fixed at creation,
// Tombstone only ever goes from false to true.
type Entry struct {
	ID        op.ID
	Pred      op.ID
	Value     any
	Stamp     op.Stamp
	Tombstone bool
}

// Array keeps every entry ever inserted, deleted ones included, in
// physical order. The logical array is the entries that are not tombstoned.
type Array struct {
	ID      op.ID
	entries []*Entry
	byID    map[op.ID]*Entry
	live    int
}

func NewArray(id op.ID) *Array {
	return &Array{ID: id, byID: make(map[op.ID]*Entry)}
}

func (a *Array) EntityID() op.ID { return a.ID }
func (a *Array) isEntity()       {}

func (a *Array) Entry(id op.ID) (*Entry, bool) {
	e, ok := a.byID[id]
	return e, ok
}

// Position is the physical index of an entry; -1 for the head or unknown ids.
func (a *Array) Position(id op.ID) int {
	if id == op.Head {
		return -1
	}
	return slices.IndexFunc(a.entries, func(e *Entry) bool { return e.ID == id })
}

// At returns the entry at a physical index.
func (a *Array) At(pos int) *Entry {
	return a.entries[pos]
}

// Physical is the number of stored entries, tombstones included.
func (a *Array) Physical() int {
	return len(a.entries)
}

// InsertAt splices e in at physical index pos.
func (a *Array) InsertAt(pos int, e *Entry) {
	a.entries = slices.Insert(a.entries, pos, e)
	a.byID[e.ID] = e
	if !e.Tombstone {
		a.live++
	}
}

// Kill tombstones an entry; false if it was dead already.
func (a *Array) Kill(e *Entry) bool {
	if e.Tombstone {
		return false
	}
	e.Tombstone = true
	a.live--
	return true
}

// Len is the logical length.
func (a *Array) Len() int {
	return a.live
}

// LiveAt finds the index-th live entry.
func (a *Array) LiveAt(index int) (*Entry, bool) {
	if index < 0 || index >= a.live {
		return nil, false
	}
	for _, e := range a.entries {
		if e.Tombstone {
			continue
		}
		if index == 0 {
			return e, true
		}
		index--
	}
	return nil, false
}

// Values lists live values in order.
func (a *Array) Values() []any {
	vals := make([]any, 0, a.live)
	for _, e := range a.entries {
		if !e.Tombstone {
			vals = append(vals, e.Value)
		}
	}
	return vals
}

// Entries copies the physical sequence.
func (a *Array) Entries() []Entry {
	out := make([]Entry, len(a.entries))
	for i, e := range a.entries {
		out[i] = *e
	}
	return out
}
