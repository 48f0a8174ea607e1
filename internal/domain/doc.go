// Package domain holds the registry's core types: categories, registrations,
// audit events, sequence counters and archive batches, plus the typed errors
// and input validation shared by every other internal package.
//
// domain imports nothing internal. Store, archive, service and the outer
// layers all build on it.
//
// Key constraints:
//   - Category is a closed set: {common, confidential, signals} x {incoming, outgoing}
//   - Dates (entry dates) are local calendar dates formatted YYYY-MM-DD
//   - Months are formatted YYYY-MM
//   - All JSON tags use camelCase to match the registry's HTTP payloads
package domain
