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

func (f *fixture) otherUser(t *testing.T, uid, role string) model.User {
	t.Helper()
	user := model.User{ExternalID: uid, Email: uid + "@example.com", Name: uid, Role: role}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

func TestTransactionListScopesToViewer(t *testing.T) {
	f := newFixture(t)
	admin := f.otherUser(t, "admin-1", model.RoleAdmin)
	other := f.otherUser(t, "student-2", model.RoleStudent)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"t-1", "t-2", "t-3"} {
		f.initiatedTransaction(t, id)
		f.backdate(t, id, base.Add(time.Duration(i)*time.Minute))
	}
	require.NoError(t, f.db.Create(&model.Transaction{
		TranID: "t-other", UserID: other.ID, CourseID: f.course.ID, Amount: f.course.Price,
		Currency: "BDT", Status: model.TransactionInitiated,
	}).Error)

	svc := NewTransactionService(f.db)

	own, total, err := svc.List(context.Background(), &f.user, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, own, 3)
	assert.Equal(t, "t-3", own[0].TranID)
	require.NotNil(t, own[0].Course)
	assert.Equal(t, "HSC Physics", own[0].Course.Title)

	all, total, err := svc.List(context.Background(), &admin, ListOptions{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, all, 2)

	page2, _, err := svc.List(context.Background(), &admin, ListOptions{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page2, 2)
}

func TestTransactionListForUser(t *testing.T) {
	f := newFixture(t)
	svc := NewTransactionService(f.db)

	_, err := svc.ListForUser(context.Background(), f.user.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	f.initiatedTransaction(t, "t-1")
	transactions, err := svc.ListForUser(context.Background(), f.user.ID)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "t-1", transactions[0].TranID)
}

func TestTransactionGet(t *testing.T) {
	f := newFixture(t)
	admin := f.otherUser(t, "admin-1", model.RoleAdmin)
	stranger := f.otherUser(t, "student-2", model.RoleStudent)
	f.initiatedTransaction(t, "t-1")
	svc := NewTransactionService(f.db)

	got, err := svc.Get(context.Background(), &f.user, "t-1")
	require.NoError(t, err)
	require.NotNil(t, got.User)
	assert.Equal(t, "student@example.com", got.User.Email)

	_, err = svc.Get(context.Background(), &admin, "t-1")
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), &stranger, "t-1")
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	_, err = svc.Get(context.Background(), &f.user, "missing")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, err = svc.Get(context.Background(), &f.user, "")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}
