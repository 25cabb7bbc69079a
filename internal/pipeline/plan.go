package pipeline

import "github.com/roach88/setuper/internal/ir"

// Tier is one priority level of an event as dispatch will visit it.
type Tier struct {
	Event    string                `json:"event"`
	Priority int64                 `json:"priority"`
	Actions  []ir.ActionDescriptor `json:"actions"`
}

// Plan lists every tier, events in registration order and priorities
// highest first. Emitting an event runs its tiers in this order.
func (p *Pipeline) Plan() []Tier {
	reg := p.Engine.Registry()
	var tiers []Tier
	for _, event := range reg.Events() {
		for i := 0; ; i++ {
			batch, priority, ok := reg.Batch(event, i)
			if !ok {
				break
			}
			tiers = append(tiers, Tier{Event: event, Priority: priority, Actions: batch})
		}
	}
	return tiers
}
