// Package engine implements the setuper action pipeline.
//
// Registration (once, at activation):
//
//	raw entry -> producer? -> resolve -> default event/priority -> schema -> staged
//	all entries staged -> committed to the Registry
//
// Dispatch (once per host trigger):
//
//	Cursor.Advance(event) -> Registry.Batch(event, offset) -> for each descriptor:
//	notify -> re-resolve against the live store -> handler
//
// A host that wants every tier of an event calls Dispatch once per priority
// listed by Subscriptions. Extra calls past the last tier are no-ops; a
// different event starts a new round.
//
// The engine is synchronous and single-threaded. Ordering guarantees:
//   - tiers run in descending priority
//   - descriptors in a tier run in registration order
//   - a store write by one descriptor is visible to every later one
package engine
