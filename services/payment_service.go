package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/sahilchouksey/active-classroom-api/model"
	"github.com/sahilchouksey/active-classroom-api/services/events"
	"github.com/sahilchouksey/active-classroom-api/services/sslcommerz"
	"github.com/sahilchouksey/active-classroom-api/utils/apperrors"
	"github.com/sahilchouksey/active-classroom-api/utils/validation"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentGateway is the processor surface the payment flow depends on
type PaymentGateway interface {
	CreateSession(ctx context.Context, req sslcommerz.SessionRequest) (*sslcommerz.Session, error)
	Validate(ctx context.Context, valID string) (*sslcommerz.Validation, error)
	QueryByTranID(ctx context.Context, tranID string) (*sslcommerz.Validation, error)
}

// InvoiceNotifier sends the purchase invoice
type InvoiceNotifier interface {
	SendInvoice(ctx context.Context, inv Invoice) error
}

// EventPublisher publishes enrollment events
type EventPublisher interface {
	PublishEnrollmentCreated(ctx context.Context, event events.EnrollmentCreated) error
}

// InflightGuard suppresses concurrent processing of the same callback
type InflightGuard interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// RedirectReason is the failure reason handed to the frontend
type RedirectReason string

const (
	ReasonTransactionNotFound  RedirectReason = "TransactionNotFound"
	ReasonValidationFailed     RedirectReason = "ValidationFailed"
	ReasonUserOrCourseNotFound RedirectReason = "UserOrCourseNotFound"
	ReasonPaymentFailed        RedirectReason = "PaymentFailed"
	ReasonUserCancelled        RedirectReason = "UserCancelled"
)

// RedirectOutcome is where a browser callback should land
type RedirectOutcome struct {
	Success bool
	TranID  string
	Reason  RedirectReason
}

// IPN acknowledgement messages
const (
	IPNMsgNotFound       = "Transaction not found in DB."
	IPNMsgAlreadySuccess = "Transaction already successful."
	IPNMsgProcessed      = "IPN processed successfully"
	IPNMsgInFlight       = "IPN already being processed."
	IPNMsgPending        = "IPN received, validation pending."
	IPNMsgRejected       = "IPN validation failed."
	IPNMsgIgnored        = "IPN status ignored."
	IPNMsgInternalError  = "IPN processed, but internal error occurred."
)

// InitiateRequest is the purchase request of an authenticated student
type InitiateRequest struct {
	CourseID      uint   `json:"course_id" validate:"required,gt=0"`
	Phone         string `json:"phone" validate:"required,phone"`
	FacebookID    string `json:"facebook_id" validate:"required,max=255"`
	SchoolCollege string `json:"school_college" validate:"required,max=255"`
	Session       string `json:"session" validate:"required,max=64"`
	CouponCode    string `json:"coupon_code" validate:"omitempty,max=64"`
}

// InitiateResult carries the hosted payment page
type InitiateResult struct {
	PaymentURL string          `json:"payment_url"`
	TranID     string          `json:"tran_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
}

// IPNRequest is the server-to-server notification body
type IPNRequest struct {
	TranID string `form:"tran_id" json:"tran_id"`
	ValID  string `form:"val_id" json:"val_id"`
	Status string `form:"status" json:"status"`
}

// PaymentConfig holds URLs and defaults for the payment flow
type PaymentConfig struct {
	BackendURL  string
	FrontendURL string
	Currency    string
	// SideEffectTimeout bounds the post-commit invoice and event work
	SideEffectTimeout time.Duration
	// InflightTTL is how long an IPN marker lives in the guard
	InflightTTL time.Duration
}

// PaymentService reconciles gateway callbacks into transactions and enrollments
type PaymentService struct {
	db        *gorm.DB
	gateway   PaymentGateway
	validator *validation.Validator
	config    PaymentConfig
	notifier  InvoiceNotifier
	publisher EventPublisher
	guard     InflightGuard
	now       func() time.Time
	wg        sync.WaitGroup
}

// PaymentOption customizes a PaymentService
type PaymentOption func(*PaymentService)

func WithNotifier(n InvoiceNotifier) PaymentOption {
	return func(s *PaymentService) { s.notifier = n }
}

func WithPublisher(p EventPublisher) PaymentOption {
	return func(s *PaymentService) { s.publisher = p }
}

func WithInflightGuard(g InflightGuard) PaymentOption {
	return func(s *PaymentService) { s.guard = g }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) PaymentOption {
	return func(s *PaymentService) { s.now = now }
}

// NewPaymentService creates the payment service
func NewPaymentService(db *gorm.DB, gateway PaymentGateway, config PaymentConfig, opts ...PaymentOption) *PaymentService {
	if config.Currency == "" {
		config.Currency = "BDT"
	}
	if config.SideEffectTimeout <= 0 {
		config.SideEffectTimeout = 2 * time.Minute
	}
	if config.InflightTTL <= 0 {
		config.InflightTTL = 30 * time.Second
	}
	config.BackendURL = strings.TrimRight(config.BackendURL, "/")
	config.FrontendURL = strings.TrimRight(config.FrontendURL, "/")

	s := &PaymentService{
		db:        db,
		gateway:   gateway,
		validator: validation.NewValidator(),
		config:    config,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until dispatched post-commit work has finished
func (s *PaymentService) Wait() {
	s.wg.Wait()
}

// RedirectURL builds the frontend landing URL for an outcome
func (s *PaymentService) RedirectURL(o RedirectOutcome) string {
	if o.Success {
		return fmt.Sprintf("%s/payment/success?tranId=%s", s.config.FrontendURL, url.QueryEscape(o.TranID))
	}
	tranID := o.TranID
	if tranID == "" {
		tranID = "N/A"
	}
	return fmt.Sprintf("%s/payment/failed?tranId=%s&reason=%s", s.config.FrontendURL, url.QueryEscape(tranID), o.Reason)
}

func success(tranID string) RedirectOutcome {
	return RedirectOutcome{Success: true, TranID: tranID}
}

func failure(tranID string, reason RedirectReason) RedirectOutcome {
	return RedirectOutcome{TranID: tranID, Reason: reason}
}

// Initiate opens a checkout session for userID and records the initiated transaction
func (s *PaymentService) Initiate(ctx context.Context, userID uint, req InitiateRequest) (*InitiateResult, error) {
	req.Phone = validation.SanitizeString(req.Phone)
	req.FacebookID = validation.SanitizeString(req.FacebookID)
	req.SchoolCollege = validation.SanitizeString(req.SchoolCollege)
	req.Session = validation.SanitizeString(req.Session)
	req.CouponCode = validation.SanitizeString(req.CouponCode)

	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, apperrors.Validation("%s", validation.Summary(err))
	}

	db := s.db.WithContext(ctx)

	var course model.Course
	if err := db.First(&course, req.CourseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Course not found")
		}
		return nil, apperrors.Internal(err, "Failed to load course")
	}

	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Internal(err, "Failed to load user")
	}

	enrolled, err := isEnrolled(db, user.ID, course.ID)
	if err != nil {
		return nil, apperrors.Internal(err, "Failed to check enrollment")
	}
	if enrolled {
		return nil, apperrors.Conflict("User already enrolled in this course")
	}

	amount := course.PayableAmount()
	var couponID *uint
	if req.CouponCode != "" {
		coupon, err := s.findCoupon(db, req.CouponCode, course.ID)
		if err != nil {
			return nil, err
		}
		amount = coupon.Apply(amount)
		couponID = &coupon.ID
	}
	if !amount.IsPositive() {
		return nil, apperrors.Validation("Payable amount must be greater than zero")
	}

	tranID := uuid.NewString()
	session, err := s.gateway.CreateSession(ctx, sslcommerz.SessionRequest{
		TranID:        tranID,
		Amount:        amount,
		Currency:      s.config.Currency,
		SuccessURL:    s.config.BackendURL + "/api/v1/transactions/success",
		FailURL:       s.config.BackendURL + "/api/v1/transactions/fail",
		CancelURL:     s.config.BackendURL + "/api/v1/transactions/cancel",
		IPNURL:        s.config.BackendURL + "/api/v1/transactions/ipn",
		CustomerName:  orDefault(user.Name, "Anonymous"),
		CustomerEmail: orDefault(user.Email, "contact@example.com"),
		CustomerPhone: req.Phone,
		ProductName:   course.Title,
		ValueA:        req.Phone,
		ValueB:        req.FacebookID,
		ValueC:        req.SchoolCollege,
		ValueD:        req.Session,
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindGateway {
			return nil, err
		}
		return nil, apperrors.Gateway(err, "failed to initiate payment")
	}

	transaction := model.Transaction{
		TranID:   tranID,
		UserID:   user.ID,
		CourseID: course.ID,
		CouponID: couponID,
		Amount:   amount,
		Currency: s.config.Currency,
		Status:   model.TransactionInitiated,
		EnrollmentInfo: datatypes.NewJSONType(model.EnrollmentInfo{
			Phone:         req.Phone,
			FacebookID:    req.FacebookID,
			SchoolCollege: req.SchoolCollege,
			Session:       req.Session,
		}),
	}
	if err := db.Create(&transaction).Error; err != nil {
		return nil, apperrors.Internal(err, "Failed to record transaction")
	}

	log.Infof("[PAYMENT] Initiated %s for user %d course %d amount %s %s",
		tranID, user.ID, course.ID, amount.StringFixed(2), s.config.Currency)

	return &InitiateResult{
		PaymentURL: session.GatewayURL,
		TranID:     tranID,
		Amount:     amount,
		Currency:   s.config.Currency,
	}, nil
}

func (s *PaymentService) findCoupon(db *gorm.DB, code string, courseID uint) (*model.Coupon, error) {
	var coupon model.Coupon
	if err := db.Where("code = ?", code).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Validation("Invalid coupon code")
		}
		return nil, apperrors.Internal(err, "Failed to load coupon")
	}
	if !coupon.AppliesTo(courseID, s.now()) {
		return nil, apperrors.Validation("Coupon is expired or not valid for this course")
	}
	return &coupon, nil
}

// HandleSuccess processes the gateway's success redirect
func (s *PaymentService) HandleSuccess(ctx context.Context, tranID, valID string) RedirectOutcome {
	transaction, err := s.findTransaction(ctx, tranID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return failure(tranID, ReasonTransactionNotFound)
		}
		log.Errorf("[PAYMENT] Failed to load %s: %v", tranID, err)
		return failure(tranID, ReasonPaymentFailed)
	}
	if transaction.Status == model.TransactionSuccess {
		return success(tranID)
	}

	if valID == "" {
		return s.rejectValidation(ctx, tranID, "missing val_id")
	}

	v, err := s.gateway.Validate(ctx, valID)
	if err != nil {
		// Left as is; the reconcile job retries later
		log.Errorf("[PAYMENT] Validation of %s unavailable: %v", tranID, err)
		return failure(tranID, ReasonValidationFailed)
	}
	if reason := mismatch(transaction, v); reason != "" {
		return s.rejectValidation(ctx, tranID, reason)
	}

	return s.commitOutcome(ctx, tranID, valID, "redirect")
}

func (s *PaymentService) rejectValidation(ctx context.Context, tranID, reason string) RedirectOutcome {
	log.Warnf("[PAYMENT] Validation rejected %s: %s", tranID, reason)
	changed, err := s.markStatus(ctx, tranID, model.TransactionFailed, "validation failed: "+reason)
	if err != nil {
		log.Errorf("[PAYMENT] Failed to mark %s failed: %v", tranID, err)
	}
	if !changed && s.isSuccess(ctx, tranID) {
		// A concurrent callback committed first
		return success(tranID)
	}
	return failure(tranID, ReasonValidationFailed)
}

func (s *PaymentService) commitOutcome(ctx context.Context, tranID, valID, source string) RedirectOutcome {
	if _, err := s.Commit(ctx, tranID, valID, source); err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return failure(tranID, ReasonUserOrCourseNotFound)
		}
		return failure(tranID, ReasonPaymentFailed)
	}
	return success(tranID)
}

// HandleFail processes the gateway's failure redirect
func (s *PaymentService) HandleFail(ctx context.Context, tranID string) RedirectOutcome {
	s.mirrorStatus(ctx, tranID, model.TransactionFailed, "payment failed at gateway")
	return failure(tranID, ReasonPaymentFailed)
}

// HandleCancel processes the gateway's cancel redirect
func (s *PaymentService) HandleCancel(ctx context.Context, tranID string) RedirectOutcome {
	s.mirrorStatus(ctx, tranID, model.TransactionCancelled, "cancelled by user")
	return failure(tranID, ReasonUserCancelled)
}

func (s *PaymentService) mirrorStatus(ctx context.Context, tranID string, status model.TransactionStatus, reason string) {
	if tranID == "" {
		return
	}
	if _, err := s.markStatus(ctx, tranID, status, reason); err != nil {
		log.Errorf("[PAYMENT] Failed to mark %s %s: %v", tranID, status, err)
	}
}

// HandleIPN processes a server-to-server notification. It never fails; the
// returned message is for the gateway's logs.
func (s *PaymentService) HandleIPN(ctx context.Context, req IPNRequest) (message string) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[IPN] Panic while processing %s: %v", req.TranID, r)
			message = IPNMsgInternalError
		}
	}()

	transaction, err := s.findTransaction(ctx, req.TranID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return IPNMsgNotFound
		}
		log.Errorf("[IPN] Failed to load %s: %v", req.TranID, err)
		return IPNMsgInternalError
	}
	if transaction.Status == model.TransactionSuccess {
		return IPNMsgAlreadySuccess
	}

	if s.guard != nil {
		locked, err := s.guard.TryLock(ctx, "ipn:"+req.TranID, s.config.InflightTTL)
		if err != nil {
			// Fall through; the CAS still guarantees a single commit
			log.Warnf("[IPN] In-flight guard unavailable for %s: %v", req.TranID, err)
		} else if !locked {
			return IPNMsgInFlight
		} else {
			defer func() {
				if err := s.guard.Unlock(context.Background(), "ipn:"+req.TranID); err != nil {
					log.Warnf("[IPN] Failed to release guard for %s: %v", req.TranID, err)
				}
			}()
		}
	}

	switch strings.ToUpper(req.Status) {
	case sslcommerz.StatusValid, sslcommerz.StatusValidated:
		return s.handleValidIPN(ctx, transaction, req.ValID)
	case sslcommerz.StatusFailed:
		if _, err := s.markStatus(ctx, req.TranID, model.TransactionFailed, "payment failed (IPN)"); err != nil {
			log.Errorf("[IPN] Failed to mark %s failed: %v", req.TranID, err)
			return IPNMsgInternalError
		}
		return IPNMsgProcessed
	case sslcommerz.StatusCancelled:
		if _, err := s.markStatus(ctx, req.TranID, model.TransactionCancelled, "cancelled (IPN)"); err != nil {
			log.Errorf("[IPN] Failed to mark %s cancelled: %v", req.TranID, err)
			return IPNMsgInternalError
		}
		return IPNMsgProcessed
	default:
		log.Infof("[IPN] Ignoring status %q for %s", req.Status, req.TranID)
		return IPNMsgIgnored
	}
}

func (s *PaymentService) handleValidIPN(ctx context.Context, transaction *model.Transaction, valID string) string {
	if valID == "" {
		log.Warnf("[IPN] VALID notification for %s without val_id", transaction.TranID)
		return IPNMsgRejected
	}

	v, err := s.gateway.Validate(ctx, valID)
	if err != nil {
		log.Errorf("[IPN] Validation of %s unavailable: %v", transaction.TranID, err)
		return IPNMsgPending
	}
	if reason := mismatch(transaction, v); reason != "" {
		log.Warnf("[IPN] Validation rejected %s: %s", transaction.TranID, reason)
		return IPNMsgRejected
	}

	result, err := s.Commit(ctx, transaction.TranID, valID, "ipn")
	if err != nil {
		log.Errorf("[IPN] Commit of %s failed: %v", transaction.TranID, err)
		return IPNMsgInternalError
	}
	if result == CommitAlreadyDone {
		return IPNMsgAlreadySuccess
	}
	return IPNMsgProcessed
}

// mismatch returns why a gateway validation cannot confirm transaction, or ""
func mismatch(transaction *model.Transaction, v *sslcommerz.Validation) string {
	if !v.IsValid() {
		return fmt.Sprintf("gateway status %s", orDefault(v.Status, "empty"))
	}
	if v.TranID != transaction.TranID {
		return fmt.Sprintf("tran_id mismatch (%s)", v.TranID)
	}
	if !v.Amount.Equal(transaction.Amount) {
		return fmt.Sprintf("amount mismatch (%s != %s)", v.Amount.String(), transaction.Amount.StringFixed(2))
	}
	if !strings.EqualFold(v.Currency, transaction.Currency) {
		return fmt.Sprintf("currency mismatch (%s != %s)", v.Currency, transaction.Currency)
	}
	return ""
}

// CommitResult tells how a commit attempt ended
type CommitResult int

const (
	// CommitApplied means this caller moved the transaction to success and enrolled the user
	CommitApplied CommitResult = iota
	// CommitAlreadyDone means another caller committed first
	CommitAlreadyDone
	// CommitDuplicate means the user already owned the course; the payment is kept as success
	CommitDuplicate
)

var errAlreadyEnrolled = errors.New("user already enrolled")

// Commit runs the enrollment commit sequence for tranID in one database
// transaction. Only the caller whose CAS on the status succeeds performs it.
func (s *PaymentService) Commit(ctx context.Context, tranID, valID, source string) (CommitResult, error) {
	now := s.now()
	result := CommitApplied
	var (
		committed model.Transaction
		user      model.User
		course    model.Course
		previous  model.TransactionStatus
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tran_id = ?", tranID).First(&committed).Error; err != nil {
			return err
		}
		previous = committed.Status

		// 1. CAS; the row count picks the single winner
		cas := tx.Model(&model.Transaction{}).
			Where("tran_id = ? AND status <> ?", tranID, model.TransactionSuccess).
			Updates(map[string]interface{}{
				"status":         model.TransactionSuccess,
				"val_id":         valID,
				"failure_reason": "",
				"completed_at":   now,
			})
		if cas.Error != nil {
			return cas.Error
		}
		if cas.RowsAffected == 0 {
			result = CommitAlreadyDone
			return nil
		}

		if err := tx.First(&user, committed.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("User not found")
			}
			return err
		}
		if err := tx.First(&course, committed.CourseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("Course not found")
			}
			return err
		}

		// 2. Guard against a purchase that raced through another transaction
		enrolled, err := isEnrolled(tx, user.ID, course.ID)
		if err != nil {
			return err
		}
		if enrolled {
			return errAlreadyEnrolled
		}

		// 3. Counter
		if err := tx.Model(&model.Course{}).Where("id = ?", course.ID).
			UpdateColumn("students_enrolled", gorm.Expr("students_enrolled + ?", 1)).Error; err != nil {
			return err
		}

		// 4. Purchased set
		if err := tx.Create(&model.UserCourse{UserID: user.ID, CourseID: course.ID}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errAlreadyEnrolled
			}
			return err
		}

		// 5. Enrollment from the snapshot taken at initiate
		info := committed.EnrollmentInfo.Data()
		enrollment := model.Enrollment{
			UserID:         user.ID,
			CourseID:       course.ID,
			EnrollmentDate: now,
			Phone:          info.Phone,
			FacebookID:     info.FacebookID,
			SchoolCollege:  info.SchoolCollege,
			Session:        info.Session,
			TransactionRef: committed.TranID,
			Amount:         committed.Amount,
			CouponUsedID:   committed.CouponID,
		}
		// An enrollment row without the purchased-course grant is kept as is;
		// ownership is decided by the purchased set alone.
		created := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).Create(&enrollment)
		if created.Error != nil {
			return created.Error
		}
		if created.RowsAffected == 0 {
			log.Warnf("[AUDIT] User %d already had an enrollment for course %d; %s granted access only", user.ID, course.ID, tranID)
		}

		// Profile back-fill
		return tx.Model(&model.User{}).Where("id = ?", user.ID).Updates(profileUpdates(info)).Error
	})

	switch {
	case err == nil && result == CommitAlreadyDone:
		return CommitAlreadyDone, nil
	case err == nil:
		if previous == model.TransactionFailed || previous == model.TransactionCancelled {
			log.Warnf("[AUDIT] Transaction %s moved from %s to success by %s", tranID, previous, source)
		}
		log.Infof("[PAYMENT] Enrolled user %d in course %d via %s (%s)", user.ID, course.ID, tranID, source)
		committed.Status = model.TransactionSuccess
		committed.ValID = valID
		committed.CompletedAt = &now
		s.dispatchSideEffects(committed, user, course)
		return CommitApplied, nil
	case errors.Is(err, errAlreadyEnrolled):
		return s.keepDuplicatePayment(ctx, tranID, valID, source, now)
	default:
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.NotFound("Transaction not found")
		}
		reason := "commit failed: " + err.Error()
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			reason = apperrors.MessageOf(err)
		}
		log.Errorf("[PAYMENT] Commit of %s via %s rolled back: %v", tranID, source, err)
		if _, markErr := s.markStatus(ctx, tranID, model.TransactionFailed, reason); markErr != nil {
			log.Errorf("[PAYMENT] Failed to mark %s failed after rollback: %v", tranID, markErr)
		}
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return 0, err
		}
		return 0, apperrors.Internal(err, "Failed to complete enrollment")
	}
}

// keepDuplicatePayment records a payment for a course the user already owns. The
// money was taken, so the transaction stays success and is flagged for refund.
func (s *PaymentService) keepDuplicatePayment(ctx context.Context, tranID, valID, source string, now time.Time) (CommitResult, error) {
	res := s.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("tran_id = ? AND status <> ?", tranID, model.TransactionSuccess).
		Updates(map[string]interface{}{
			"status":         model.TransactionSuccess,
			"val_id":         valID,
			"failure_reason": "duplicate payment: already enrolled",
			"completed_at":   now,
		})
	if res.Error != nil {
		return 0, apperrors.Internal(res.Error, "Failed to record duplicate payment")
	}
	if res.RowsAffected == 0 {
		return CommitAlreadyDone, nil
	}
	log.Warnf("[AUDIT] Duplicate payment %s via %s: user already enrolled, refund required", tranID, source)
	return CommitDuplicate, nil
}

// markStatus moves a non-success transaction to status. It reports whether a row changed.
func (s *PaymentService) markStatus(ctx context.Context, tranID string, status model.TransactionStatus, reason string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("tran_id = ? AND status <> ?", tranID, model.TransactionSuccess).
		Updates(map[string]interface{}{
			"status":         status,
			"failure_reason": truncate(reason, 255),
		})
	return res.RowsAffected > 0, res.Error
}

func (s *PaymentService) findTransaction(ctx context.Context, tranID string) (*model.Transaction, error) {
	if tranID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var transaction model.Transaction
	if err := s.db.WithContext(ctx).Where("tran_id = ?", tranID).First(&transaction).Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

func (s *PaymentService) isSuccess(ctx context.Context, tranID string) bool {
	t, err := s.findTransaction(ctx, tranID)
	return err == nil && t.Status == model.TransactionSuccess
}

// dispatchSideEffects fires the invoice and the domain event after commit.
// They run detached from the request and never touch payment state.
func (s *PaymentService) dispatchSideEffects(transaction model.Transaction, user model.User, course model.Course) {
	if s.notifier == nil && s.publisher == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.config.SideEffectTimeout)
		defer cancel()

		if s.publisher != nil {
			err := s.publisher.PublishEnrollmentCreated(ctx, events.EnrollmentCreated{
				EventID:    uuid.NewString(),
				TranID:     transaction.TranID,
				UserID:     user.ID,
				CourseID:   course.ID,
				Amount:     transaction.Amount,
				Currency:   transaction.Currency,
				EnrolledAt: *transaction.CompletedAt,
			})
			if err != nil {
				log.Warnf("[EVENTS] enrollment.created for %s not published: %v", transaction.TranID, err)
			}
		}

		if s.notifier != nil {
			err := s.notifier.SendInvoice(ctx, Invoice{
				TranID:            transaction.TranID,
				CustomerName:      user.Name,
				CustomerEmail:     user.Email,
				CourseTitle:       course.Title,
				Amount:            transaction.Amount,
				Currency:          transaction.Currency,
				PaidAt:            *transaction.CompletedAt,
				FacebookGroupLink: course.FacebookGroupLink,
			})
			if err != nil {
				log.Errorf("[MAIL] Invoice for %s failed: %v", transaction.TranID, err)
			}
		}
	}()
}

func isEnrolled(db *gorm.DB, userID, courseID uint) (bool, error) {
	var count int64
	err := db.Model(&model.UserCourse{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

func profileUpdates(info model.EnrollmentInfo) map[string]interface{} {
	updates := map[string]interface{}{}
	if info.Phone != "" {
		updates["phone"] = info.Phone
	}
	if info.FacebookID != "" {
		updates["facebook_id"] = info.FacebookID
	}
	if info.SchoolCollege != "" {
		updates["school_college"] = info.SchoolCollege
	}
	if info.Session != "" {
		updates["session"] = info.Session
	}
	return updates
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
