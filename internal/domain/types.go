package domain

import "time"

// Registration is one logged piece of correspondence.
type Registration struct {
	ID              int64      `json:"id"`
	Category        Category   `json:"category"`
	Issuer          string     `json:"issuer"`
	ReferenceNumber string     `json:"referenceNumber"`
	Subject         string     `json:"subject"`
	Recipient       string     `json:"recipient,omitempty"` // outgoing only
	Offices         []string   `json:"offices,omitempty"`   // incoming only
	ProtocolNumber  int64      `json:"protocolNumber"`
	DraftNumber     *int64     `json:"draftNumber"` // nil for incoming
	EntryDate       string     `json:"entryDate"`   // YYYY-MM-DD
	CreatedAt       time.Time  `json:"createdAt"`
	DeletedFlag     bool       `json:"deletedFlag"`
	DeletedAt       *time.Time `json:"deletedAt"`
}

// AuditAction is the kind of mutation an audit event records.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditDelete AuditAction = "delete"
)

// AuditEvent is an append-only record of a mutation on a registration.
type AuditEvent struct {
	ID             int64       `json:"id"`
	Action         AuditAction `json:"action"`
	RegistrationID int64       `json:"registrationId"`
	Timestamp      time.Time   `json:"timestamp"`
	Username       string      `json:"username"`
}

// ArchiveBatch is the receipt written for every archive run.
type ArchiveBatch struct {
	ID         int64     `json:"id"`
	Month      string    `json:"month"`
	CreatedAt  time.Time `json:"createdAt"`
	ItemsMoved int64     `json:"itemsMoved"`
	RunID      string    `json:"runId"`
}

// ArchiveResult is returned by an archive run.
type ArchiveResult struct {
	Month      string `json:"month"`
	ItemsMoved int64  `json:"itemsMoved"`
	RunID      string `json:"runId,omitempty"`
}

// PageSize is the fixed listing page size.
const PageSize = 100

// Page is one page of a registration listing.
type Page struct {
	Items    []Registration `json:"items"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Total    int64          `json:"total"`
}
