package model

import (
	"time"

	"gorm.io/gorm"
)

// Roles known to the platform
const (
	RoleStudent   = "student"
	RoleTeacher   = "teacher"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// User represents a platform account. Credentials live with the identity provider;
// ExternalID is the provider's stable subject for the account.
type User struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	ExternalID    string         `gorm:"type:varchar(128);uniqueIndex;not null" json:"-"`
	Email         string         `gorm:"uniqueIndex;not null" json:"email"`
	Name          string         `gorm:"not null" json:"name"`
	Role          string         `gorm:"type:varchar(20);default:'student'" json:"role"` // student, teacher, moderator, admin
	Phone         string         `gorm:"type:varchar(32)" json:"phone,omitempty"`
	FacebookID    string         `gorm:"type:varchar(255)" json:"facebook_id,omitempty"`
	SchoolCollege string         `gorm:"type:varchar(255)" json:"school_college,omitempty"`
	Session       string         `gorm:"type:varchar(64)" json:"session,omitempty"`
	ProfileImage  string         `gorm:"type:varchar(512)" json:"profile_image,omitempty"`

	// Relationships
	Courses      []UserCourse  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"purchased_courses,omitempty"`
	Transactions []Transaction `gorm:"foreignKey:UserID" json:"-"`
}

// UserCourse is the purchased-course set of a user. Membership is what gates
// protected course content.
type UserCourse struct {
	UserID     uint  `gorm:"primaryKey" json:"user_id"`
	CourseID   uint  `gorm:"primaryKey" json:"course_id"`
	EnrolledAt int64 `gorm:"autoCreateTime" json:"enrolled_at"`

	// Relationships
	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}
