package engine

import (
	"cmp"
	"slices"

	"github.com/roach88/setuper/internal/ir"
)

// Registry maps event -> priority -> ordered descriptors.
//
// It only grows: Add appends, nothing removes. Priorities are visited in
// descending numeric order; descriptors sharing a priority keep the order
// they were added in.
type Registry struct {
	events map[string]map[int64][]ir.ActionDescriptor
	order  []string // events in first-registration order
	total  map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		events: make(map[string]map[int64][]ir.ActionDescriptor),
		total:  make(map[string]int),
	}
}

// Add appends d to its event and priority tier.
func (r *Registry) Add(d ir.ActionDescriptor) {
	tiers, ok := r.events[d.Event]
	if !ok {
		tiers = make(map[int64][]ir.ActionDescriptor)
		r.events[d.Event] = tiers
		r.order = append(r.order, d.Event)
	}
	tiers[d.Priority] = append(tiers[d.Priority], d)
	r.total[d.Event]++
}

// Priorities returns the priorities registered under event, highest first.
func (r *Registry) Priorities(event string) []int64 {
	tiers := r.events[event]
	out := make([]int64, 0, len(tiers))
	for p := range tiers {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b int64) int { return cmp.Compare(b, a) })
	return out
}

// Batch returns the tier at position index of the descending priority list.
// ok is false when the event has no tier at that position.
func (r *Registry) Batch(event string, index int) (batch []ir.ActionDescriptor, priority int64, ok bool) {
	prios := r.Priorities(event)
	if index < 0 || index >= len(prios) {
		return nil, 0, false
	}
	priority = prios[index]
	return slices.Clone(r.events[event][priority]), priority, true
}

// Total returns the number of descriptors registered under event across
// all priorities.
func (r *Registry) Total(event string) int {
	return r.total[event]
}

// Events returns event names in first-registration order.
func (r *Registry) Events() []string {
	return slices.Clone(r.order)
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	n := 0
	for _, c := range r.total {
		n += c
	}
	return n
}

// Descriptors returns every descriptor grouped the way dispatch visits them:
// events in registration order, priorities descending.
func (r *Registry) Descriptors() []ir.ActionDescriptor {
	var out []ir.ActionDescriptor
	for _, event := range r.order {
		for _, p := range r.Priorities(event) {
			out = append(out, r.events[event][p]...)
		}
	}
	return out
}
