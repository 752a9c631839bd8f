package course

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/active-classroom-api/model"
	"github.com/sahilchouksey/active-classroom-api/utils/auth"
	"github.com/sahilchouksey/active-classroom-api/utils/middleware"
	"github.com/sahilchouksey/active-classroom-api/utils/response"
	"gorm.io/gorm"
)

// CourseHandler handles course access requests
type CourseHandler struct {
	db *gorm.DB
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(db *gorm.DB) *CourseHandler {
	return &CourseHandler{db: db}
}

// AccessResponse describes why the caller may open a course
type AccessResponse struct {
	CourseID          uint   `json:"course_id"`
	Title             string `json:"title"`
	Access            string `json:"access"` // purchased, staff
	FacebookGroupLink string `json:"facebook_group_link,omitempty"`
}

// GetAccess handles GET /api/v1/courses/:course_id/access. It runs behind
// RequireCourseAccess, so reaching it means access is granted.
func (h *CourseHandler) GetAccess(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	courseID, err := c.ParamsInt("course_id")
	if err != nil || courseID <= 0 {
		return response.BadRequest(c, "Invalid course ID")
	}

	var course model.Course
	if err := h.db.Select("id", "title", "facebook_group_link").First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	access := "purchased"
	if auth.Can(user.Role, auth.AccessAllCourses) {
		access = "staff"
	}

	return response.Success(c, AccessResponse{
		CourseID:          course.ID,
		Title:             course.Title,
		Access:            access,
		FacebookGroupLink: course.FacebookGroupLink,
	})
}
