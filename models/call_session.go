package models

import (
	"time"

	"gorm.io/datatypes"
)

// CallSession holds IVR state of one in-progress call, one document per call.
// UpdatedAt is advisory: callers decide when a session is stale.
type CallSession struct {
	CallID    string         `gorm:"primaryKey;size:128" json:"call_id"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	UpdatedAt time.Time      `gorm:"not null;index:idx_call_sessions_updated_at" json:"updated_at"`
}

func (CallSession) TableName() string { return "call_sessions" }
