package database

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/sahilchouksey/active-classroom-api/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db     *gorm.DB
	getenv func(string) string
	now    func() time.Time
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db, getenv: os.Getenv, now: time.Now}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	if err := s.SeedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := s.SeedCourses(); err != nil {
		return fmt.Errorf("failed to seed courses: %w", err)
	}

	if err := s.SeedCoupons(); err != nil {
		return fmt.Errorf("failed to seed coupons: %w", err)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// SeedAdminUser links the identity provider account named by ADMIN_UID to an admin user
func (s *Seeder) SeedAdminUser() error {
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", model.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Admin user already exists, skipping...")
		return nil
	}

	adminUID := s.getenv("ADMIN_UID")
	adminEmail := s.getenv("ADMIN_EMAIL")

	if adminUID == "" || adminEmail == "" {
		log.Println("⚠️  ADMIN_UID and ADMIN_EMAIL environment variables not set, skipping admin user creation")
		return nil
	}

	admin := &model.User{
		ExternalID: adminUID,
		Email:      adminEmail,
		Name:       "System Administrator",
		Role:       model.RoleAdmin,
	}

	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("✅ Created admin user: %s\n", admin.Email)
	return nil
}

// SeedCourses creates sample courses
func (s *Seeder) SeedCourses() error {
	var count int64
	if err := s.db.Model(&model.Course{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Courses already exist, skipping...")
		return nil
	}

	courses := []model.Course{
		{
			Title:           "SSC Science Complete Preparation",
			ClassType:       "SSC",
			Price:           decimal.NewFromInt(2000),
			DiscountedPrice: decimal.NewNullDecimal(decimal.NewFromInt(1500)),
		},
		{
			Title:     "HSC Physics First Paper",
			ClassType: "HSC",
			Price:     decimal.NewFromInt(1500),
		},
		{
			Title:           "University Admission Crash Course",
			ClassType:       "ADMISSION",
			Price:           decimal.NewFromInt(3500),
			DiscountedPrice: decimal.NewNullDecimal(decimal.NewFromInt(2999)),
		},
	}

	if err := s.db.Create(&courses).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d courses\n", len(courses))
	return nil
}

// SeedCoupons creates the launch coupon valid for every course.
// SEED_COUPON_CODE overrides the code.
func (s *Seeder) SeedCoupons() error {
	code := strings.ToUpper(strings.TrimSpace(s.getenv("SEED_COUPON_CODE")))
	if code == "" {
		code = "WELCOME10"
	}

	coupon := model.Coupon{
		Code:               code,
		DiscountPercentage: decimal.NewFromInt(10),
		ValidUntil:         s.now().AddDate(0, 3, 0),
	}

	result := s.db.Where(model.Coupon{Code: code}).FirstOrCreate(&coupon)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		log.Printf("⏭️  Coupon %s already exists, skipping...\n", code)
		return nil
	}

	log.Printf("✅ Created coupon: %s\n", code)
	return nil
}

// RunSeeds runs all database seeds
func RunSeeds(db *gorm.DB) error {
	return NewSeeder(db).SeedAll()
}
