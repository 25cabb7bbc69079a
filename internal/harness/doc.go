// Package harness runs setup scenarios end to end and checks the result.
//
// A scenario builds a real pipeline (the same one `setuper run` uses) in a
// fresh temporary directory, feeds prompts from a fixed answer list, fires
// events and records every execution in an in-memory journal. The recorded
// executions form the trace that assertions and golden files compare.
//
// # Scenario Format
//
//	name: project_readme
//	description: "Prompts for a name and writes a README"
//	run_id: run-readme            # optional, fixed for golden traces
//	config: ../setups/readme.yaml # or an inline setup mapping:
//	setup:
//	  name:
//	    action: insert
//	    message: "Project name?"
//	    variable: name
//	  readme:
//	    action: dump
//	    file: README.md
//	    content: "# {$name}"
//	answers: [acme]
//	vars: { author: jane }        # seeds the variable store
//	events: [setup]               # default: [setup]
//	files:                        # created before the run
//	  notes.txt: "draft"
//	expect:                       # optional expected failure
//	  code: HANDLER
//	  error: "already exists"
//	assertions:
//	  - type: trace_order
//	    actions: [insert, dump]
//	  - type: file
//	    path: README.md
//	    content: "# acme"
//
// # Assertion Types
//
//   - trace_contains: an execution of action whose args include args
//   - trace_order: actions executed in this order (gaps allowed)
//   - trace_count: action executed exactly count times
//   - variable: the final value of a variable
//   - file: a file exists (or not), with content, a substring or a link
//   - output: the console transcript contains a string
//   - progress: the exact progress lines, "(i/n) event action"
//
// # Deterministic Testing
//
// Runs use a fixed run id, a fresh journal whose clock starts at zero and
// relative paths only, so a scenario produces the same trace on every run.
package harness
