package enrollment

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/active-classroom-api/services"
	"github.com/sahilchouksey/active-classroom-api/utils/middleware"
	"github.com/sahilchouksey/active-classroom-api/utils/response"
	"github.com/sahilchouksey/active-classroom-api/utils/validation"
)

// EnrollmentHandler handles the group-acceptance workflow
type EnrollmentHandler struct {
	enrollments *services.EnrollmentService
	validator   *validation.Validator
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(enrollments *services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{
		enrollments: enrollments,
		validator:   validation.NewValidator(),
	}
}

// AcceptRequest represents the request body for toggling group acceptance
type AcceptRequest struct {
	IsAccepted *bool `json:"is_accepted" validate:"required"`
}

// ListByCourse handles GET /api/v1/enrollments/course/:course_id
func (h *EnrollmentHandler) ListByCourse(c *fiber.Ctx) error {
	courseID, err := c.ParamsInt("course_id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course ID")
	}

	enrollments, err := h.enrollments.ListByCourse(c.UserContext(), uint(courseID))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, enrollments)
}

// SetAccepted handles PATCH /api/v1/enrollments/:id/accept
func (h *EnrollmentHandler) SetAccepted(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid enrollment ID")
	}

	var req AcceptRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	enrollment, err := h.enrollments.SetAccepted(c.UserContext(), uint(id), user, *req.IsAccepted)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Enrollment updated", enrollment)
}

// PendingCount handles GET /api/v1/enrollments/pending-count and
// GET /api/v1/enrollments/course/:course_id/pending-count
func (h *EnrollmentHandler) PendingCount(c *fiber.Ctx) error {
	var courseID *uint
	if c.Params("course_id") != "" {
		id, err := c.ParamsInt("course_id")
		if err != nil || id <= 0 {
			return response.BadRequest(c, "Invalid course ID")
		}
		cid := uint(id)
		courseID = &cid
	}

	count, err := h.enrollments.PendingCount(c.UserContext(), courseID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, fiber.Map{"pending_count": count})
}

// Mine handles GET /api/v1/enrollments/my-enrollments
func (h *EnrollmentHandler) Mine(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	enrollments, err := h.enrollments.ListForUser(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, enrollments)
}
