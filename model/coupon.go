package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Coupon is a percentage discount, optionally restricted to a set of courses
type Coupon struct {
	ID                 uint                      `gorm:"primaryKey" json:"id"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
	DeletedAt          gorm.DeletedAt            `gorm:"index" json:"-"`
	Code               string                    `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	DiscountPercentage decimal.Decimal           `gorm:"type:numeric(5,2);not null" json:"discount_percentage"`
	ValidUntil         time.Time                 `gorm:"not null" json:"valid_until"`
	CourseIDs          datatypes.JSONSlice[uint] `json:"course_ids"`
	CreatedByID        uint                      `gorm:"index" json:"created_by"`
}

// AppliesTo reports whether the coupon may be used for courseID at time now
func (c *Coupon) AppliesTo(courseID uint, now time.Time) bool {
	if !now.Before(c.ValidUntil) {
		return false
	}
	if len(c.CourseIDs) == 0 {
		return true
	}
	for _, id := range c.CourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

// Apply returns amount reduced by the coupon percentage, rounded to 2 places
func (c *Coupon) Apply(amount decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	pct := c.DiscountPercentage
	if pct.IsNegative() {
		pct = decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	return amount.Mul(hundred.Sub(pct)).Div(hundred).Round(2)
}
