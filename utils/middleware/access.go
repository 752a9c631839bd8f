package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/active-classroom-api/model"
	"github.com/sahilchouksey/active-classroom-api/utils/auth"
	"github.com/sahilchouksey/active-classroom-api/utils/response"
	"gorm.io/gorm"
)

// RequireCourseAccess admits staff and students who own the course named by
// the route param. Must run after Required.
func RequireCourseAccess(db *gorm.DB, param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := GetUser(c)
		if !ok {
			return response.Unauthorized(c, "Authentication required")
		}

		courseID, err := c.ParamsInt(param)
		if err != nil || courseID <= 0 {
			return response.BadRequest(c, "Invalid course ID")
		}

		if auth.Can(user.Role, auth.AccessAllCourses) {
			return c.Next()
		}

		var owned model.UserCourse
		err = db.Where("user_id = ? AND course_id = ?", user.ID, courseID).First(&owned).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return response.Forbidden(c, "Course not purchased")
			}
			return response.InternalServerError(c, "Failed to check course access")
		}

		return c.Next()
	}
}
