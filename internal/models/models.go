package models

import (
	"time"
)

// InstanceRecord is the durable unit tracked by the ledger. A record exists
// iff the relay believes the corresponding instance is live upstream; the
// reconciliation sweep closes the gaps. Records are immutable once written.
type InstanceRecord struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Address   string    `json:"address"`
	Provider  string    `json:"provider"`
	TTL       int64     `json:"ttl,omitempty"` // seconds; optional upstream lifetime hint
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LogEntry is a persisted structured log row, written through the logging
// persistence hook so logs survive restarts.
type LogEntry struct {
	ID     uint      `gorm:"primaryKey" json:"id"`
	Time   time.Time `json:"time"`
	Level  string    `json:"level"`
	Msg    string    `json:"msg"`
	Fields string    `json:"fields"` // JSON string of fields
}
