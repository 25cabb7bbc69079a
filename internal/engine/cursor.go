package engine

// CursorState is a snapshot of dispatch progress.
type CursorState struct {
	// Event is the event of the current round ("" before the first dispatch).
	Event string

	// Offset is the index of the next priority tier to run.
	Offset int

	// Counter is the number of actions started in the current round.
	Counter int
}

// Cursor tracks which priority tier the next dispatch call runs.
//
// A round starts whenever the dispatched event differs from the previous
// one. Within a round every call consumes one tier position, whether or
// not a tier exists there.
type Cursor struct {
	state CursorState
}

// Advance registers a dispatch call for event and returns the tier index
// it should run.
func (c *Cursor) Advance(event string) int {
	if event != c.state.Event {
		c.state = CursorState{Event: event}
	}
	index := c.state.Offset
	c.state.Offset++
	return index
}

// Step counts one started action and returns its 1-based position in the
// round.
func (c *Cursor) Step() int {
	c.state.Counter++
	return c.state.Counter
}

// State returns the current cursor state.
func (c *Cursor) State() CursorState {
	return c.state
}
