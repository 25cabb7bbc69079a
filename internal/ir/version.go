package ir

// Version constants for the schema contract and engine.
const (
	// SchemaVersion is the version of the embedded action schema.
	SchemaVersion = "1"

	// EngineVersion is the setuper engine version.
	EngineVersion = "0.1.0"
)
