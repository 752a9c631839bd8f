package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Course is the catalog view needed by the payment flow
type Course struct {
	ID                uint                `gorm:"primaryKey" json:"id"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	DeletedAt         gorm.DeletedAt      `gorm:"index" json:"-"`
	Title             string              `gorm:"uniqueIndex;not null" json:"title"`
	Thumbnail         string              `gorm:"type:varchar(512)" json:"thumbnail,omitempty"`
	ClassType         string              `gorm:"type:varchar(20)" json:"class_type"` // SSC, HSC, ADMISSION
	Price             decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"price"`
	DiscountedPrice   decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"discounted_price"`
	StudentsEnrolled  int                 `gorm:"default:0" json:"students_enrolled"`
	FacebookGroupLink string              `gorm:"type:varchar(512)" json:"facebook_group_link,omitempty"`

	// Relationships
	Users []UserCourse `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// PayableAmount returns the discounted price when one is set and positive,
// otherwise the list price.
func (c *Course) PayableAmount() decimal.Decimal {
	if c.DiscountedPrice.Valid && c.DiscountedPrice.Decimal.IsPositive() {
		return c.DiscountedPrice.Decimal
	}
	return c.Price
}
