package services

import (
	"context"
	"errors"
	"time"

	"github.com/sahilchouksey/active-classroom-api/model"
	"github.com/sahilchouksey/active-classroom-api/utils/apperrors"
	"gorm.io/gorm"
)

// EnrollmentService runs the group-acceptance workflow over enrollments
type EnrollmentService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(db *gorm.DB) *EnrollmentService {
	return &EnrollmentService{db: db, now: time.Now}
}

// ListByCourse returns a course's enrollments, newest first
func (s *EnrollmentService) ListByCourse(ctx context.Context, courseID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := s.db.WithContext(ctx).
		Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "email", "profile_image") }).
		Preload("AcceptedBy", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name") }).
		Preload("Course", func(db *gorm.DB) *gorm.DB { return db.Select("id", "title", "facebook_group_link") }).
		Where("course_id = ?", courseID).
		Order("enrollment_date DESC").
		Find(&enrollments).Error
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to fetch enrollments")
	}
	return enrollments, nil
}

// SetAccepted sets or clears the group acceptance of an enrollment. Only the
// acceptance fields change.
func (s *EnrollmentService) SetAccepted(ctx context.Context, enrollmentID uint, approver *model.User, accepted bool) (*model.Enrollment, error) {
	db := s.db.WithContext(ctx)

	updates := map[string]interface{}{
		"is_accepted_to_facebook_group": accepted,
		"accepted_by_id":                nil,
		"accepted_at":                   nil,
	}
	if accepted {
		updates["accepted_by_id"] = approver.ID
		updates["accepted_at"] = s.now()
	}

	res := db.Model(&model.Enrollment{}).Where("id = ?", enrollmentID).Updates(updates)
	if res.Error != nil {
		return nil, apperrors.Internal(res.Error, "Failed to update enrollment")
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("Enrollment not found")
	}

	var enrollment model.Enrollment
	err := db.
		Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "email") }).
		Preload("AcceptedBy", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name") }).
		First(&enrollment, enrollmentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Enrollment not found")
		}
		return nil, apperrors.Internal(err, "Failed to fetch enrollment")
	}
	return &enrollment, nil
}

// PendingCount counts enrollments not yet accepted, optionally for one course
func (s *EnrollmentService) PendingCount(ctx context.Context, courseID *uint) (int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("is_accepted_to_facebook_group = ?", false)
	if courseID != nil {
		query = query.Where("course_id = ?", *courseID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, apperrors.Internal(err, "Failed to count enrollments")
	}
	return count, nil
}

// ListForUser returns a user's enrollments with course summaries, newest first
func (s *EnrollmentService) ListForUser(ctx context.Context, userID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := s.db.WithContext(ctx).
		Preload("Course", func(db *gorm.DB) *gorm.DB { return db.Select("id", "title", "thumbnail", "class_type") }).
		Where("user_id = ?", userID).
		Order("enrollment_date DESC").
		Find(&enrollments).Error
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to fetch enrollments")
	}
	return enrollments, nil
}
