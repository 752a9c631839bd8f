package services

import (
	"context"
	"testing"
	"time"

	"github.com/sahilchouksey/active-classroom-api/model"
	"github.com/sahilchouksey/active-classroom-api/utils/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) enroll(t *testing.T, user model.User, at time.Time) model.Enrollment {
	t.Helper()
	enrollment := model.Enrollment{
		UserID:         user.ID,
		CourseID:       f.course.ID,
		EnrollmentDate: at,
		Phone:          "01711111111",
		FacebookID:     "fb." + user.Name,
		SchoolCollege:  "Dhaka College",
		Session:        "2024-25",
		Amount:         f.course.Price,
	}
	require.NoError(t, f.db.Create(&enrollment).Error)
	return enrollment
}

func TestEnrollmentAcceptanceWorkflow(t *testing.T) {
	f := newFixture(t)
	moderator := f.otherUser(t, "mod-1", model.RoleModerator)
	second := f.otherUser(t, "student-2", model.RoleStudent)

	first := f.enroll(t, f.user, time.Now().Add(-time.Hour))
	f.enroll(t, second, time.Now())

	accepted := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := NewEnrollmentService(f.db)
	svc.now = func() time.Time { return accepted }

	listed, err := svc.ListByCourse(context.Background(), f.course.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, second.ID, listed[0].UserID)

	pending, err := svc.PendingCount(context.Background(), &f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	updated, err := svc.SetAccepted(context.Background(), first.ID, &moderator, true)
	require.NoError(t, err)
	assert.True(t, updated.IsAcceptedToFacebookGroup)
	require.NotNil(t, updated.AcceptedBy)
	assert.Equal(t, "mod-1", updated.AcceptedBy.Name)
	require.NotNil(t, updated.AcceptedAt)
	assert.True(t, accepted.Equal(*updated.AcceptedAt))
	assert.Equal(t, first.Phone, updated.Phone)

	pending, err = svc.PendingCount(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	revoked, err := svc.SetAccepted(context.Background(), first.ID, &moderator, false)
	require.NoError(t, err)
	assert.False(t, revoked.IsAcceptedToFacebookGroup)
	assert.Nil(t, revoked.AcceptedByID)
	assert.Nil(t, revoked.AcceptedAt)
}

func TestSetAcceptedUnknownEnrollment(t *testing.T) {
	f := newFixture(t)
	_, err := NewEnrollmentService(f.db).SetAccepted(context.Background(), 999, &f.user, true)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestEnrollmentListForUser(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, f.user, time.Now())

	enrollments, err := NewEnrollmentService(f.db).ListForUser(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	require.NotNil(t, enrollments[0].Course)
	assert.Equal(t, "HSC Physics", enrollments[0].Course.Title)
}
