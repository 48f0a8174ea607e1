// Package harness runs registry conformance scenarios.
//
// A scenario drives the real service and store through a flow of
// operations (create, delete, list, archive, advance) on a fresh database in
// a temporary directory. The clock and archive run ids are deterministic, so
// the trace of a scenario is reproducible and can be compared against a
// golden file.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	now: "2025-10-03T09:30:00Z"   # optional, clock start
//	user: clerk                   # optional, audit attribution
//	flow:
//	  - op: create
//	    category: common_incoming
//	    args: { issuer: "...", referenceNumber: "...", subject: "...", offices: ["OFF-1"] }
//	    expect:
//	      case: ok
//	      result: { protocolNumber: 1 }
//	  - op: delete
//	    id: 1
//	  - op: list
//	    month: "2025-10"
//	  - op: advance
//	    to: "2025-11-01T00:00:00Z"
//	  - op: archive                # no month: the month before the clock's
//	assertions:
//	  - type: trace_contains
//	    op: archive
//	    result: { itemsMoved: 1 }
//	  - type: final_state
//	    table: numbering_sequences
//	    where: { kind: protocol, category: common_incoming, year: 2025 }
//	    expect: { next_value: 2 }
//	  - type: archive_state
//	    month: "2025-10"
//	    registrations: 1
//	    audit_events: 2
//
// # Outcomes
//
// Every step is traced with one outcome: ok, validation, not_found or
// storage. A step without an expect clause must end ok.
//
// # Assertion Types
//
//   - trace_contains: an op (optionally with an outcome) appears with a
//     result containing the given fields
//   - trace_order: ops first appear in the given order
//   - trace_count: an op appears exactly count times
//   - final_state: exactly one primary store row matches where and holds
//     the expected column values
//   - archive_state: a month's archive store holds the given counts
//
// # Golden Files
//
// RunWithGolden compares a scenario's trace against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
