package models

import "time"

// StatusEntry is one row of a complaint's status history.
// Every transition appends an entry; entries are never updated.
type StatusEntry struct {
	ID          uint            `gorm:"primaryKey" json:"-"`
	ComplaintID int64           `gorm:"not null;index:idx_status_complaint" json:"complaint_id"`
	Status      ComplaintStatus `gorm:"type:varchar(50);not null" json:"status"`
	// ExecutorID is the executor responsible right after the transition.
	ExecutorID  *int64    `gorm:"index" json:"executor_id"`
	SortOrder   int       `gorm:"not null;index:idx_status_complaint" json:"sort_order"`
	Description *string   `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (StatusEntry) TableName() string { return "ticket_statuses" }
