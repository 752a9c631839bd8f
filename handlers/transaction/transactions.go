package transaction

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/active-classroom-api/services"
	"github.com/sahilchouksey/active-classroom-api/utils/middleware"
	"github.com/sahilchouksey/active-classroom-api/utils/response"
)

// TransactionHandler handles payment and ledger requests
type TransactionHandler struct {
	payments     *services.PaymentService
	transactions *services.TransactionService
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(payments *services.PaymentService, transactions *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		payments:     payments,
		transactions: transactions,
	}
}

// Initiate handles POST /api/v1/transactions/initiate
func (h *TransactionHandler) Initiate(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req services.InitiateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.payments.Initiate(c.UserContext(), userID, req)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Payment session created", result)
}

// Success handles the gateway's POST /api/v1/transactions/success redirect
func (h *TransactionHandler) Success(c *fiber.Ctx) error {
	outcome := h.payments.HandleSuccess(c.UserContext(), c.FormValue("tran_id"), c.FormValue("val_id"))
	return c.Redirect(h.payments.RedirectURL(outcome), fiber.StatusFound)
}

// Fail handles the gateway's POST /api/v1/transactions/fail redirect
func (h *TransactionHandler) Fail(c *fiber.Ctx) error {
	outcome := h.payments.HandleFail(c.UserContext(), c.FormValue("tran_id"))
	return c.Redirect(h.payments.RedirectURL(outcome), fiber.StatusFound)
}

// Cancel handles the gateway's POST /api/v1/transactions/cancel redirect
func (h *TransactionHandler) Cancel(c *fiber.Ctx) error {
	outcome := h.payments.HandleCancel(c.UserContext(), c.FormValue("tran_id"))
	return c.Redirect(h.payments.RedirectURL(outcome), fiber.StatusFound)
}

// IPN handles POST /api/v1/transactions/ipn. The gateway retries anything
// other than 200, so every outcome is acknowledged.
func (h *TransactionHandler) IPN(c *fiber.Ctx) error {
	var req services.IPNRequest
	if err := c.BodyParser(&req); err != nil {
		log.Warnf("[IPN] Unreadable notification body: %v", err)
	}

	message := h.payments.HandleIPN(c.UserContext(), req)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": message})
}

// List handles GET /api/v1/transactions
func (h *TransactionHandler) List(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	transactions, total, err := h.transactions.List(c.UserContext(), user, services.ListOptions{Page: page, Limit: limit})
	if err != nil {
		return response.FromError(c, err)
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return response.Paginated(c, transactions, response.CalculatePagination(page, limit, total))
}

// Mine handles GET /api/v1/transactions/mine
func (h *TransactionHandler) Mine(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	transactions, err := h.transactions.ListForUser(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, transactions)
}

// Get handles GET /api/v1/transactions/:tran_id
func (h *TransactionHandler) Get(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	transaction, err := h.transactions.Get(c.UserContext(), user, c.Params("tran_id"))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, transaction)
}
