package models

import (
	"time"
)

// HistoryEntry represents one stored chat exchange: the user's submitted
// content and the analysis verdict attached to it.
type HistoryEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	SessionID string    `json:"session_id" gorm:"index"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Verdict   string    `json:"verdict"`
	RiskScore float64   `json:"risk_score"`
	CreatedAt time.Time `json:"created_at"`
}

// Feedback represents user feedback on an analysis verdict
type Feedback struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID string    `gorm:"index" json:"messageId"`
	Verdict   string    `json:"verdict"`
	CreatedAt time.Time `json:"createdAt"`
}
