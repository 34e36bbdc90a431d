package models

import "time"

// Complaint is a resident-filed issue tracked through the status lifecycle.
type Complaint struct {
	// ComplaintID is the primary key.
	ComplaintID int64 `gorm:"primaryKey;autoIncrement" json:"complaint_id"`
	// Description is the free text written by the resident.
	Description string `gorm:"type:text;not null" json:"description"`
	// District is the city district the complaint belongs to.
	District *string `gorm:"type:varchar(255)" json:"district"`
	// Status is changed only by the lifecycle engine after creation.
	Status ComplaintStatus `gorm:"type:varchar(50);not null;index" json:"status"`
	// ExecutorID is the currently responsible executor; nil means unassigned.
	ExecutorID *int64 `gorm:"index" json:"executor_id"`
	// Resolution holds the last accepted executor response.
	Resolution *string `gorm:"type:text" json:"resolution"`

	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	ExecutionDate *time.Time `json:"execution_date"`
	// FinalStatusAt is written once, when the complaint enters a terminal status.
	FinalStatusAt *time.Time `json:"final_status_at"`
}

func (Complaint) TableName() string { return "complaints" }

// MarkFinal stamps FinalStatusAt unless it has already been set.
func (c *Complaint) MarkFinal(at time.Time) {
	if c.FinalStatusAt != nil {
		return
	}
	t := at
	c.FinalStatusAt = &t
}

// AssignedTo reports whether executorID is the current executor.
func (c *Complaint) AssignedTo(executorID int64) bool {
	return c.ExecutorID != nil && *c.ExecutorID == executorID
}
