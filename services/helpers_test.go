package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sahilchouksey/active-classroom-api/database"
	"github.com/sahilchouksey/active-classroom-api/model"
	"github.com/sahilchouksey/active-classroom-api/services/events"
	"github.com/sahilchouksey/active-classroom-api/services/sslcommerz"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// One connection keeps the shared in-memory database alive and serializes
	// writers, so sqlite-backed tests interleave callers but never overlap
	// their storage transactions. newPostgresDB covers real overlap.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// newPostgresDB connects to the database named by the DB_* variables and
// empties the payment tables. Set RUN_INTEGRATION_TESTS=true to run.
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run.")
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER_NAME"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		envOrDefault("DB_SSL_MODE", "disable"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(20)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, db.Exec("TRUNCATE enrollments, user_courses, transactions, coupons, courses, users, cron_job_logs RESTART IDENTITY CASCADE").Error)
	return db
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

type fixture struct {
	db      *gorm.DB
	user    model.User
	course  model.Course
	gateway *fakeGateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, newTestDB(t))
}

func newFixtureOn(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()

	user := model.User{ExternalID: "uid-1", Email: "student@example.com", Name: "Rahim", Role: model.RoleStudent}
	require.NoError(t, db.Create(&user).Error)

	course := model.Course{
		Title:             "HSC Physics",
		ClassType:         "HSC",
		Price:             decimal.NewFromInt(1500),
		DiscountedPrice:   decimal.NewNullDecimal(decimal.NewFromInt(1200)),
		FacebookGroupLink: "https://facebook.com/groups/hsc-physics",
	}
	require.NoError(t, db.Create(&course).Error)

	return &fixture{db: db, user: user, course: course, gateway: newFakeGateway()}
}

func (f *fixture) service(opts ...PaymentOption) *PaymentService {
	return NewPaymentService(f.db, f.gateway, PaymentConfig{
		BackendURL:  "https://api.example.com",
		FrontendURL: "https://app.example.com/",
		Currency:    "BDT",
	}, opts...)
}

func (f *fixture) initiatedTransaction(t *testing.T, tranID string) model.Transaction {
	t.Helper()
	transaction := model.Transaction{
		TranID:   tranID,
		UserID:   f.user.ID,
		CourseID: f.course.ID,
		Amount:   decimal.NewFromInt(1200),
		Currency: "BDT",
		Status:   model.TransactionInitiated,
		EnrollmentInfo: datatypes.NewJSONType(model.EnrollmentInfo{
			Phone:         "01711111111",
			FacebookID:    "fb.rahim",
			SchoolCollege: "Dhaka College",
			Session:       "2024-25",
		}),
	}
	require.NoError(t, f.db.Create(&transaction).Error)
	return transaction
}

func (f *fixture) reload(t *testing.T, tranID string) model.Transaction {
	t.Helper()
	var transaction model.Transaction
	require.NoError(t, f.db.Where("tran_id = ?", tranID).First(&transaction).Error)
	return transaction
}

func (f *fixture) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

func (f *fixture) studentsEnrolled(t *testing.T) int {
	t.Helper()
	var course model.Course
	require.NoError(t, f.db.First(&course, f.course.ID).Error)
	return course.StudentsEnrolled
}

// validFor returns a gateway validation that confirms transaction
func validFor(tranID, valID string, amount int64) *sslcommerz.Validation {
	return &sslcommerz.Validation{
		Status:   sslcommerz.StatusValid,
		TranID:   tranID,
		ValID:    valID,
		Amount:   decimal.NewFromInt(amount),
		Currency: "BDT",
	}
}

type fakeGateway struct {
	mu            sync.Mutex
	session       *sslcommerz.Session
	sessionErr    error
	sessionReqs   []sslcommerz.SessionRequest
	validations   map[string]*sslcommerz.Validation
	validateErr   error
	validateCalls int32
	queries       map[string]*sslcommerz.Validation
	queryErrs     map[string]error
	queryCalls    []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		session:     &sslcommerz.Session{GatewayURL: "https://sandbox.sslcommerz.com/pay/abc", SessionKey: "abc"},
		validations: map[string]*sslcommerz.Validation{},
		queries:     map[string]*sslcommerz.Validation{},
		queryErrs:   map[string]error{},
	}
}

func (g *fakeGateway) CreateSession(_ context.Context, req sslcommerz.SessionRequest) (*sslcommerz.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionReqs = append(g.sessionReqs, req)
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	return g.session, nil
}

func (g *fakeGateway) Validate(_ context.Context, valID string) (*sslcommerz.Validation, error) {
	atomic.AddInt32(&g.validateCalls, 1)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.validateErr != nil {
		return nil, g.validateErr
	}
	if v, ok := g.validations[valID]; ok {
		copied := *v
		return &copied, nil
	}
	return &sslcommerz.Validation{Status: sslcommerz.StatusInvalid}, nil
}

func (g *fakeGateway) QueryByTranID(_ context.Context, tranID string) (*sslcommerz.Validation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queryCalls = append(g.queryCalls, tranID)
	if err, ok := g.queryErrs[tranID]; ok {
		return nil, err
	}
	if v, ok := g.queries[tranID]; ok {
		copied := *v
		return &copied, nil
	}
	return nil, sslcommerz.ErrNoRecord
}

func (g *fakeGateway) setValidation(valID string, v *sslcommerz.Validation) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.validations[valID] = v
}

type fakeNotifier struct {
	mu       sync.Mutex
	invoices []Invoice
}

func (n *fakeNotifier) SendInvoice(_ context.Context, inv Invoice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invoices = append(n.invoices, inv)
	return nil
}

func (n *fakeNotifier) sent() []Invoice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Invoice(nil), n.invoices...)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.EnrollmentCreated
}

func (p *fakePublisher) PublishEnrollmentCreated(_ context.Context, e events.EnrollmentCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) published() []events.EnrollmentCreated {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.EnrollmentCreated(nil), p.events...)
}

type fakeGuard struct {
	mu   sync.Mutex
	held map[string]bool
}

func (g *fakeGuard) TryLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == nil {
		g.held = map[string]bool{}
	}
	if g.held[key] {
		return false, nil
	}
	g.held[key] = true
	return true, nil
}

func (g *fakeGuard) Unlock(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, key)
	return nil
}
