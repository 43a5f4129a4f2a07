package solosh

import (
	"testing"
	"time"
)

func newTestJob(name string, pids ...int) *Job {
	return &Job{
		Name:         name,
		Pids:         pids,
		RunCount:     len(pids),
		LastModified: time.Now(),
	}
}

func TestRegistryPushFindErase(t *testing.T) {
	r := &Registry{slots: make([]*Job, 0, 4)}

	j1 := newTestJob("sleep 5", 100)
	j2 := newTestJob("sleep 6", 200)

	i1 := r.Push(j1)
	i2 := r.Push(j2)
	if i1 != 0 || i2 != 1 {
		t.Fatalf("unexpected indices: %d, %d", i1, i2)
	}

	if got := r.FindByPID(100); got != j1 {
		t.Fatalf("FindByPID(100) = %v, want j1", got)
	}
	if got := r.FindByPID(999); got != nil {
		t.Fatalf("FindByPID(999) = %v, want nil", got)
	}

	r.Erase(j1)
	if got := r.FindByPID(100); got != nil {
		t.Fatalf("expected j1 gone after erase, got %v", got)
	}
	// Tombstone: j2's index must not have shifted.
	if r.ByIndex(1) != j2 {
		t.Fatalf("expected j2 to remain at index 1 after tombstoning index 0")
	}
}

func TestRegistryTombstoneReuse(t *testing.T) {
	r := &Registry{slots: make([]*Job, 0, 4)}

	j1 := newTestJob("a", 1)
	j2 := newTestJob("b", 2)
	r.Push(j1)
	r.Push(j2)
	r.Erase(j1)

	j3 := newTestJob("c", 3)
	idx := r.Push(j3)
	if idx != 0 {
		t.Fatalf("expected tombstoned slot 0 reused, got index %d", idx)
	}
}

func TestRegistryEmptiesResetsLast(t *testing.T) {
	r := &Registry{slots: make([]*Job, 0, 4)}
	j1 := newTestJob("a", 1)
	r.Push(j1)
	r.Erase(j1)

	j2 := newTestJob("b", 2)
	idx := r.Push(j2)
	if idx != 0 {
		t.Fatalf("expected list to reset to empty and reuse index 0, got %d", idx)
	}
}

func TestRegistryFindLastModified(t *testing.T) {
	r := &Registry{slots: make([]*Job, 0, 4)}

	j1 := newTestJob("old", 1)
	j1.LastModified = time.Now().Add(-time.Hour)
	j2 := newTestJob("new", 2)
	j2.LastModified = time.Now()

	r.Push(j1)
	r.Push(j2)

	if got := r.FindLastModified(); got != j2 {
		t.Fatalf("FindLastModified() = %v, want j2", got)
	}
}

func TestRegistryListOrder(t *testing.T) {
	r := &Registry{slots: make([]*Job, 0, 4)}
	j1 := newTestJob("a", 1)
	j2 := newTestJob("b", 2)
	r.Push(j1)
	r.Push(j2)

	entries := r.List()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Index != 0 || entries[0].Job != j1 {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Index != 1 || entries[1].Job != j2 {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}
