package database

import (
	"testing"
	"time"

	"github.com/sahilchouksey/active-classroom-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSeedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, NewGORMStore(db).Init())
	return db
}

func TestSeedAllIsRepeatable(t *testing.T) {
	db := newSeedDB(t)
	env := map[string]string{"ADMIN_UID": "uid-admin", "ADMIN_EMAIL": "admin@example.com"}

	seeder := NewSeeder(db)
	seeder.getenv = func(k string) string { return env[k] }
	seeder.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, seeder.SeedAll())
	require.NoError(t, seeder.SeedAll())

	var admins []model.User
	require.NoError(t, db.Where("role = ?", model.RoleAdmin).Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "uid-admin", admins[0].ExternalID)

	var courses int64
	require.NoError(t, db.Model(&model.Course{}).Count(&courses).Error)
	assert.Equal(t, int64(3), courses)

	var coupon model.Coupon
	require.NoError(t, db.Where("code = ?", "WELCOME10").First(&coupon).Error)
	assert.Empty(t, coupon.CourseIDs)
	assert.True(t, coupon.ValidUntil.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestSeedAdminSkippedWithoutIdentity(t *testing.T) {
	db := newSeedDB(t)
	seeder := NewSeeder(db)
	seeder.getenv = func(string) string { return "" }

	require.NoError(t, seeder.SeedAdminUser())

	var count int64
	require.NoError(t, db.Model(&model.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHealthCheck(t *testing.T) {
	assert.NoError(t, NewGORMStore(newSeedDB(t)).HealthCheck())
}
