package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TransactionStatus is the payment state of a purchase attempt
type TransactionStatus string

const (
	TransactionInitiated TransactionStatus = "initiated"
	TransactionSuccess   TransactionStatus = "success"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
)

// EnrollmentInfo is the contact snapshot a student submits when buying a course.
// It is captured at initiate time and copied onto the Enrollment on success.
type EnrollmentInfo struct {
	Phone         string `json:"phone"`
	FacebookID    string `json:"facebook_id"`
	SchoolCollege string `json:"school_college"`
	Session       string `json:"session"`
}

// Transaction is one payment attempt. Rows are financial records and are never deleted.
type Transaction struct {
	ID             uint                               `gorm:"primaryKey" json:"id"`
	TranID         string                             `gorm:"type:varchar(64);uniqueIndex;not null" json:"tran_id"`
	UserID         uint                               `gorm:"not null;index" json:"user_id"`
	CourseID       uint                               `gorm:"not null;index" json:"course_id"`
	CouponID       *uint                              `gorm:"index" json:"coupon_id,omitempty"`
	Amount         decimal.Decimal                    `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency       string                             `gorm:"type:varchar(10);not null;default:'BDT'" json:"currency"`
	Status         TransactionStatus                  `gorm:"type:varchar(20);not null;default:'initiated';index" json:"status"`
	ValID          string                             `gorm:"type:varchar(128)" json:"val_id,omitempty"`
	FailureReason  string                             `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`
	EnrollmentInfo datatypes.JSONType[EnrollmentInfo] `json:"enrollment_info"`
	InvoiceURL     string                             `gorm:"type:varchar(512)" json:"invoice_url,omitempty"`
	CompletedAt    *time.Time                         `json:"completed_at,omitempty"`
	CreatedAt      time.Time                          `json:"created_at"`
	UpdatedAt      time.Time                          `json:"updated_at"`

	// Relationships
	User   *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Course *Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Coupon *Coupon `gorm:"foreignKey:CouponID" json:"coupon,omitempty"`
}

// TableName specifies the table name for Transaction
func (Transaction) TableName() string {
	return "transactions"
}
