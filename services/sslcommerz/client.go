package sslcommerz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sahilchouksey/active-classroom-api/utils/apperrors"
	"github.com/shopspring/decimal"
)

const (
	SandboxURL = "https://sandbox.sslcommerz.com"
	LiveURL    = "https://securepay.sslcommerz.com"

	initPath       = "/gwprocess/v4/api.php"
	validatePath   = "/validator/api/validationserverAPI.php"
	queryTransPath = "/validator/api/merchantTransIDvalidationAPI.php"
)

// Status values reported by the validation and IPN APIs
const (
	StatusValid     = "VALID"
	StatusValidated = "VALIDATED"
	StatusInvalid   = "INVALID_TRANSACTION"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
	StatusPending   = "PENDING"
	StatusUnattempt = "UNATTEMPTED"
	StatusExpired   = "EXPIRED"
)

// ErrNoRecord is returned by QueryByTranID when the gateway has never seen the tranId
var ErrNoRecord = errors.New("sslcommerz: no record for transaction")

// Config holds the store credentials and endpoint selection
type Config struct {
	StoreID       string
	StorePassword string
	IsLive        bool
	// BaseURL overrides the sandbox/live endpoint
	BaseURL string
	Timeout time.Duration
}

// SessionRequest describes a hosted checkout session
type SessionRequest struct {
	TranID        string
	Amount        decimal.Decimal
	Currency      string
	SuccessURL    string
	FailURL       string
	CancelURL     string
	IPNURL        string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	ProductName   string
	// Passthrough values echoed back on redirects and IPN
	ValueA string
	ValueB string
	ValueC string
	ValueD string
}

// Session is a created checkout session
type Session struct {
	GatewayURL string
	SessionKey string
}

// Validation is the gateway's authoritative view of a payment
type Validation struct {
	Status   string
	TranID   string
	ValID    string
	Amount   decimal.Decimal
	Currency string
}

// IsValid reports whether the payment is confirmed. VALIDATED is a repeat lookup of a VALID payment.
func (v *Validation) IsValid() bool {
	return v.Status == StatusValid || v.Status == StatusValidated
}

// Client talks to the SSLCommerz v4 API
type Client struct {
	config Config
	http   *resty.Client
}

type initResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

type validationResponse struct {
	Status         string `json:"status"`
	TranID         string `json:"tran_id"`
	ValID          string `json:"val_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	CurrencyType   string `json:"currency_type"`
	CurrencyAmount string `json:"currency_amount"`
}

type queryResponse struct {
	APIConnect string               `json:"APIConnect"`
	Element    []validationResponse `json:"element"`
}

// NewClient creates a gateway client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = SandboxURL
		if config.IsLive {
			config.BaseURL = LiveURL
		}
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	http := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{config: config, http: http}
}

// CreateSession registers a checkout session and returns the hosted page URL
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	var out initResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"store_id":         c.config.StoreID,
			"store_passwd":     c.config.StorePassword,
			"total_amount":     req.Amount.StringFixed(2),
			"currency":         req.Currency,
			"tran_id":          req.TranID,
			"success_url":      req.SuccessURL,
			"fail_url":         req.FailURL,
			"cancel_url":       req.CancelURL,
			"ipn_url":          req.IPNURL,
			"cus_name":         req.CustomerName,
			"cus_email":        req.CustomerEmail,
			"cus_phone":        req.CustomerPhone,
			"cus_add1":         "N/A",
			"cus_city":         "N/A",
			"cus_country":      "Bangladesh",
			"shipping_method":  "NO",
			"product_name":     req.ProductName,
			"product_category": "Course",
			"product_profile":  "general",
			"value_a":          req.ValueA,
			"value_b":          req.ValueB,
			"value_c":          req.ValueC,
			"value_d":          req.ValueD,
		}).
		ForceContentType("application/json").
		SetResult(&out).
		Post(initPath)
	if err != nil {
		return nil, apperrors.Gateway(err, "payment gateway unreachable")
	}
	if resp.IsError() {
		return nil, apperrors.Gateway(fmt.Errorf("status %d", resp.StatusCode()), "payment gateway rejected session")
	}
	if out.Status != "SUCCESS" || out.GatewayPageURL == "" {
		reason := out.FailedReason
		if reason == "" {
			reason = "no gateway page returned"
		}
		return nil, apperrors.Gateway(errors.New(reason), "failed to initiate payment")
	}

	return &Session{GatewayURL: out.GatewayPageURL, SessionKey: out.SessionKey}, nil
}

// Validate asks the gateway whether valID is a confirmed payment
func (c *Client) Validate(ctx context.Context, valID string) (*Validation, error) {
	var out validationResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"val_id":       valID,
			"store_id":     c.config.StoreID,
			"store_passwd": c.config.StorePassword,
			"v":            "1",
			"format":       "json",
		}).
		ForceContentType("application/json").
		SetResult(&out).
		Get(validatePath)
	if err != nil {
		return nil, apperrors.Gateway(err, "payment validation unreachable")
	}
	if resp.IsError() {
		return nil, apperrors.Gateway(fmt.Errorf("status %d", resp.StatusCode()), "payment validation failed")
	}

	v := out.toValidation()
	if v.ValID == "" {
		v.ValID = valID
	}
	return v, nil
}

// QueryByTranID looks up the gateway's record for a merchant transaction id.
// When several attempts exist a confirmed one wins.
func (c *Client) QueryByTranID(ctx context.Context, tranID string) (*Validation, error) {
	var out queryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"tran_id":      tranID,
			"store_id":     c.config.StoreID,
			"store_passwd": c.config.StorePassword,
			"format":       "json",
		}).
		ForceContentType("application/json").
		SetResult(&out).
		Get(queryTransPath)
	if err != nil {
		return nil, apperrors.Gateway(err, "transaction query unreachable")
	}
	if resp.IsError() {
		return nil, apperrors.Gateway(fmt.Errorf("status %d", resp.StatusCode()), "transaction query failed")
	}
	if out.APIConnect != "" && out.APIConnect != "DONE" {
		return nil, apperrors.Gateway(errors.New(out.APIConnect), "transaction query refused")
	}
	if len(out.Element) == 0 {
		return nil, ErrNoRecord
	}

	best := out.Element[0].toValidation()
	for _, e := range out.Element[1:] {
		if v := e.toValidation(); v.IsValid() && !best.IsValid() {
			best = v
			break
		}
	}
	if best.TranID == "" {
		best.TranID = tranID
	}
	return best, nil
}

func (r validationResponse) toValidation() *Validation {
	amount := r.CurrencyAmount
	if amount == "" {
		amount = r.Amount
	}
	currency := r.CurrencyType
	if currency == "" {
		currency = r.Currency
	}

	// An unparsable amount stays zero and fails the amount check downstream
	parsed, _ := decimal.NewFromString(amount)

	return &Validation{
		Status:   r.Status,
		TranID:   r.TranID,
		ValID:    r.ValID,
		Amount:   parsed,
		Currency: currency,
	}
}
