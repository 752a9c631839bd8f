package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/active-classroom-api/database"
	"github.com/sahilchouksey/active-classroom-api/handlers"
	course_handlers "github.com/sahilchouksey/active-classroom-api/handlers/course"
	enrollment_handlers "github.com/sahilchouksey/active-classroom-api/handlers/enrollment"
	transaction_handlers "github.com/sahilchouksey/active-classroom-api/handlers/transaction"
	"github.com/sahilchouksey/active-classroom-api/services"
	"github.com/sahilchouksey/active-classroom-api/utils"
	"github.com/sahilchouksey/active-classroom-api/utils/auth"
	"github.com/sahilchouksey/active-classroom-api/utils/middleware"
)

// GatewayCallbackPrefix groups the routes SSLCommerz calls
const GatewayCallbackPrefix = "/api/v1/transactions/"

// GatewayCallbackPaths are posted by the gateway or by the customer's browser
// on the way back from checkout. They stay outside the per-IP rate limit.
var GatewayCallbackPaths = []string{
	GatewayCallbackPrefix + "success",
	GatewayCallbackPrefix + "fail",
	GatewayCallbackPrefix + "cancel",
	GatewayCallbackPrefix + "ipn",
}

// Dependencies are the collaborators the routes are built from
type Dependencies struct {
	Store    database.Storage
	Verifier auth.IdentityVerifier
	Payments *services.PaymentService
	Security middleware.SecurityConfig
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	db := deps.Store.GetDB()

	authMiddleware := middleware.NewAuthMiddleware(deps.Verifier, db)

	transactionHandler := transaction_handlers.NewTransactionHandler(deps.Payments, services.NewTransactionService(db))
	enrollmentHandler := enrollment_handlers.NewEnrollmentHandler(services.NewEnrollmentService(db))
	courseHandler := course_handlers.NewCourseHandler(db)

	// Apply security middleware
	middleware.SetupSecurity(app, deps.Security)

	// Health check endpoint (public)
	app.Get("/ping", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, deps.Store))

	// API v1 group
	api := app.Group("/api/v1")

	// ==================== Transactions ====================

	transactions := api.Group("/transactions")

	// Gateway callbacks (public, the gateway carries no bearer token)
	transactions.Post("/success", transactionHandler.Success)
	transactions.Post("/fail", transactionHandler.Fail)
	transactions.Post("/cancel", transactionHandler.Cancel)
	transactions.Post("/ipn", transactionHandler.IPN)

	transactions.Post("/initiate", authMiddleware.Required(), transactionHandler.Initiate) // Protected: Start a purchase
	transactions.Get("/", authMiddleware.Required(), transactionHandler.List)              // Protected: Own ledger, or all with ViewAllTransactions
	transactions.Get("/mine", authMiddleware.Required(), transactionHandler.Mine)          // Protected: All own transactions
	transactions.Get("/:tran_id", authMiddleware.Required(), transactionHandler.Get)       // Protected: Owner or ViewAllTransactions

	// ==================== Enrollments ====================

	enrollments := api.Group("/enrollments", authMiddleware.Required())
	manage := authMiddleware.RequireCapability(auth.ManageEnrollments)

	enrollments.Get("/my-enrollments", enrollmentHandler.Mine)
	enrollments.Get("/pending-count", manage, enrollmentHandler.PendingCount)
	enrollments.Get("/course/:course_id", manage, enrollmentHandler.ListByCourse)
	enrollments.Get("/course/:course_id/pending-count", manage, enrollmentHandler.PendingCount)
	enrollments.Patch("/:id/accept", manage, enrollmentHandler.SetAccepted)

	// ==================== Course access ====================

	courses := api.Group("/courses", authMiddleware.Required())
	courses.Get("/:course_id/access", middleware.RequireCourseAccess(db, "course_id"), courseHandler.GetAccess)
}
