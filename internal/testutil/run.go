package testutil

// DefaultRunID is used when a scenario does not name a run id.
const DefaultRunID = "run-00000000-0000-0000-0000-000000000000"

// FixedRunGenerator generates the same run id every time.
//
// Unlike engine.FixedGenerator, which hands out ids in sequence and panics
// when they run out, this generator never runs dry. Golden traces rely on
// it for byte-identical journals.
//
// Stateless and safe for concurrent use.
type FixedRunGenerator struct {
	id string
}

// NewFixedRunGenerator creates a generator for id. An empty id means
// DefaultRunID.
func NewFixedRunGenerator(id string) *FixedRunGenerator {
	if id == "" {
		id = DefaultRunID
	}
	return &FixedRunGenerator{id: id}
}

// Generate returns the fixed run id.
func (g *FixedRunGenerator) Generate() string {
	return g.id
}
