package models

// Executor is a service organization that complaints are routed to.
type Executor struct {
	ExecutorID   int64   `gorm:"primaryKey;autoIncrement" json:"executor_id"`
	Name         string  `gorm:"type:varchar(255);not null;index" json:"name"`
	Organization *string `gorm:"type:varchar(255)" json:"organization"`
	Phone        *string `gorm:"type:varchar(50)" json:"phone"`
	Email        *string `gorm:"type:varchar(255)" json:"email"`
	IsActive     bool    `gorm:"not null;default:true" json:"is_active"`
}

func (Executor) TableName() string { return "executors" }
