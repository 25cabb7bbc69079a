package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/setuper/internal/ir"
)

func desc(key, event string, priority int64) ir.ActionDescriptor {
	return ir.ActionDescriptor{Key: key, Event: event, Priority: priority, Action: "write"}
}

func TestRegistry_PrioritiesDescending(t *testing.T) {
	r := NewRegistry()
	r.Add(desc("a", "setup", -1))
	r.Add(desc("b", "setup", 10))
	r.Add(desc("c", "setup", 0))
	r.Add(desc("d", "setup", 10))

	assert.Equal(t, []int64{10, 0, -1}, r.Priorities("setup"))
	assert.Equal(t, 4, r.Total("setup"))
	assert.Empty(t, r.Priorities("other"))
}

func TestRegistry_Batch(t *testing.T) {
	r := NewRegistry()
	r.Add(desc("a", "setup", 1))
	r.Add(desc("b", "setup", 5))
	r.Add(desc("c", "setup", 5))

	batch, prio, ok := r.Batch("setup", 0)
	assert.True(t, ok)
	assert.Equal(t, int64(5), prio)
	assert.Equal(t, []string{"b", "c"}, keys(batch))

	batch, prio, ok = r.Batch("setup", 1)
	assert.True(t, ok)
	assert.Equal(t, int64(1), prio)
	assert.Equal(t, []string{"a"}, keys(batch))

	_, _, ok = r.Batch("setup", 2)
	assert.False(t, ok)
	_, _, ok = r.Batch("setup", -1)
	assert.False(t, ok)
}

func TestRegistry_BatchIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Add(desc("a", "setup", 0))

	batch, _, _ := r.Batch("setup", 0)
	batch[0].Key = "mutated"

	again, _, _ := r.Batch("setup", 0)
	assert.Equal(t, "a", again[0].Key)
}

func TestRegistry_EventsAndDescriptors(t *testing.T) {
	r := NewRegistry()
	r.Add(desc("i", "post-install", 0))
	r.Add(desc("s1", "setup", 0))
	r.Add(desc("s2", "setup", 3))

	assert.Equal(t, []string{"post-install", "setup"}, r.Events())
	assert.Equal(t, []string{"i", "s2", "s1"}, keys(r.Descriptors()))
	assert.Equal(t, 3, r.Len())
}

func TestCursor(t *testing.T) {
	var c Cursor

	assert.Equal(t, 0, c.Advance("setup"))
	assert.Equal(t, 1, c.Step())
	assert.Equal(t, 2, c.Step())
	assert.Equal(t, 1, c.Advance("setup"))
	assert.Equal(t, CursorState{Event: "setup", Offset: 2, Counter: 2}, c.State())

	assert.Equal(t, 0, c.Advance("post-install"), "a new event restarts the round")
	assert.Equal(t, CursorState{Event: "post-install", Offset: 1}, c.State())
	assert.Equal(t, 1, c.Step())
}

func keys(ds []ir.ActionDescriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Key
	}
	return out
}
