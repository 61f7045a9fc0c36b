// Package domain defines the persistence models for pending generations and
// the per-user generation history. These types are mapped with GORM and form
// the durable state that correlates asynchronous webhook completions with the
// chat context that requested them.
package domain

import "time"

// PendingGeneration correlates a dispatched asynchronous prediction with the
// chat context needed to deliver its result. A row exists if and only if an
// asynchronous generation has been dispatched and not yet resolved or
// abandoned. Rows are created once and deleted after delivery, never updated.
//
// Fields:
//   - ID: the service-assigned prediction id (primary key).
//   - UserID / RoomID: the sender and room the result must be delivered to.
//   - ThreadID: optional thread within the room.
//   - Prompt: the original prompt, reused for the upload filename and history.
type PendingGeneration struct {
	ID        string    `json:"id"        gorm:"type:varchar(64);primaryKey"`
	UserID    string    `json:"user_id"   gorm:"type:varchar(64);not null;index:idx_pending_user"`
	RoomID    string    `json:"room_id"   gorm:"type:varchar(64);not null"`
	ThreadID  string    `json:"thread_id,omitempty" gorm:"type:varchar(64)"`
	Prompt    string    `json:"prompt"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for PendingGeneration.
func (PendingGeneration) TableName() string { return "pending_generations" }

// GenerationHistory is one completed generation archived for a user.
// Entries are only ever prepended (most recent first) and never rewritten;
// the monotonically increasing ID is what List orders on.
type GenerationHistory struct {
	ID        uint64    `json:"-"          gorm:"primaryKey;autoIncrement"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_history_user"`
	Query     string    `json:"query"      gorm:"type:text;not null"`
	URL       string    `json:"url"        gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for GenerationHistory.
func (GenerationHistory) TableName() string { return "generation_history" }
