package store

import _ "embed"

// Schema version tracking:
// 1 - Initial registry schema
const currentSchemaVersion = 1

// registrationsDDL is applied to the primary store and to every archive store.
//
//go:embed registrations.sql
var registrationsDDL string

// primaryDDL holds the numbering counters and archive receipts.
//
//go:embed schema.sql
var primaryDDL string

// registrationColumns is the explicit column list used when copying rows
// between stores.
const registrationColumns = `id, category, issuer, reference_number, subject, recipient, offices,
	protocol_number, draft_number, entry_date, created_at, deleted_flag, deleted_at`

const auditColumns = `id, action, registration_id, timestamp, username`
