package models

// Moderator reviews blocked complaints and receives live notifications.
type Moderator struct {
	ModeratorID int64   `gorm:"primaryKey;autoIncrement" json:"moderator_id"`
	Username    string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	FullName    string  `gorm:"type:varchar(255);not null" json:"full_name"`
	Email       *string `gorm:"type:varchar(255)" json:"email"`
	Phone       *string `gorm:"type:varchar(50)" json:"phone"`
	IsActive    bool    `gorm:"not null;default:true" json:"is_active"`
	// PasswordHash is a bcrypt hash; it never leaves the server.
	PasswordHash string `gorm:"type:varchar(255);not null;default:''" json:"-"`
	// ComplaintID is the complaint the moderator is currently handling, if any.
	ComplaintID *int64 `gorm:"index" json:"complaint_id"`
}

func (Moderator) TableName() string { return "moderators" }
