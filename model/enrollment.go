package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Enrollment grants a user access to a course. There is at most one row per
// (user, course); the unique index enforces it at the storage layer.
type Enrollment struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	UserID         uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"user_id"`
	CourseID       uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course;index:idx_enrollment_course_date,priority:1" json:"course_id"`
	EnrollmentDate time.Time `gorm:"not null;index:idx_enrollment_course_date,priority:2,sort:desc" json:"enrollment_date"`

	// Contact snapshot at the time of purchase
	Phone         string `gorm:"type:varchar(32);not null" json:"phone"`
	FacebookID    string `gorm:"type:varchar(255);not null" json:"facebook_id"`
	SchoolCollege string `gorm:"type:varchar(255);not null" json:"school_college"`
	Session       string `gorm:"type:varchar(64);not null" json:"session"`

	// Facebook group acceptance
	IsAcceptedToFacebookGroup bool       `gorm:"default:false;index" json:"is_accepted_to_facebook_group"`
	AcceptedByID              *uint      `json:"accepted_by_id,omitempty"`
	AcceptedAt                *time.Time `json:"accepted_at,omitempty"`

	// Payment details
	TransactionRef string          `gorm:"type:varchar(64);index" json:"transaction_id"`
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	CouponUsedID   *uint           `json:"coupon_used,omitempty"`

	// Relationships
	User       *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Course     *Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	AcceptedBy *User   `gorm:"foreignKey:AcceptedByID" json:"accepted_by,omitempty"`
}

// TableName specifies the table name for Enrollment
func (Enrollment) TableName() string {
	return "enrollments"
}
