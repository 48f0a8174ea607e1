// Package store provides SQLite-backed durable storage for the registry.
//
// The primary store holds four tables:
//   - registrations: Logged correspondence, soft-deleted via deleted_flag
//   - numbering_sequences: Protocol and draft counters keyed by (kind, category, year)
//   - audit_events: Append-only create/delete records, written in the same
//     transaction as the mutation they describe
//   - archive_batches: One receipt per archive run, including empty reruns
//
// Each completed month can be moved into its own archive store
// (archive/<YYYY-MM>.db next to the primary file) holding registrations and
// audit_events with the same column shapes.
//
// # Critical Patterns
//
// Numbers are allocated with a single upsert inside the creating transaction,
// so a failed insert rolls the counter back with it.
//
// registrations and audit_events use AUTOINCREMENT: ids are never reused after
// rows are moved out, so an archive store can key on the original ids.
//
// All listings use ORDER BY id ASC for deterministic results.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: audit_events must reference an existing registration
//   - _txlock=immediate: Every transaction takes the write lock at BEGIN
//   - One pooled connection: the single writer the registry assumes
package store
