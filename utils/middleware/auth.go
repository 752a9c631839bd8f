package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/active-classroom-api/model"
	"github.com/sahilchouksey/active-classroom-api/utils/auth"
	"github.com/sahilchouksey/active-classroom-api/utils/response"
	"gorm.io/gorm"
)

// AuthMiddleware authenticates requests against the identity provider
type AuthMiddleware struct {
	verifier auth.IdentityVerifier
	db       *gorm.DB
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(verifier auth.IdentityVerifier, db *gorm.DB) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		db:       db,
	}
}

// Required is middleware that requires a valid bearer token. Unknown identities
// are provisioned as students.
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "Missing authorization token")
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return response.Unauthorized(c, "Invalid authorization format")
		}

		identity, err := m.verifier.Verify(parts[1])
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				return response.Unauthorized(c, "Token has expired")
			}
			return response.Unauthorized(c, "Invalid token")
		}

		user, err := m.resolveUser(c.UserContext(), identity)
		if err != nil {
			switch {
			case errors.Is(err, errIdentityWithoutEmail):
				return response.Unauthorized(c, "Token carries no email")
			case errors.Is(err, errEmailTaken):
				return response.Conflict(c, "Email is linked to another account")
			default:
				return response.InternalServerError(c, "Failed to load user")
			}
		}

		c.Locals("user_id", user.ID)
		c.Locals("user_role", user.Role)
		c.Locals("user", user)

		return c.Next()
	}
}

var (
	errIdentityWithoutEmail = errors.New("identity has no email")
	errEmailTaken           = errors.New("email belongs to another account")
)

// resolveUser loads the account for identity, creating a student account the
// first time a verified identity is seen.
func (m *AuthMiddleware) resolveUser(ctx context.Context, identity *auth.Identity) (*model.User, error) {
	db := m.db.WithContext(ctx)

	var user model.User
	err := db.Where("external_id = ?", identity.UID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		return nil, errIdentityWithoutEmail
	}
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	err = db.Where(model.User{ExternalID: identity.UID}).
		Attrs(model.User{Email: email, Name: name, Role: model.RoleStudent}).
		FirstOrCreate(&user).Error
	if err == nil {
		log.Infof("[AUTH] Provisioned user %d for identity %s", user.ID, identity.UID)
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}

	// Either a concurrent request created the row first, or the email is taken
	if err := db.Where("external_id = ?", identity.UID).First(&user).Error; err == nil {
		return &user, nil
	}
	return nil, errEmailTaken
}

// RequireCapability rejects callers whose role lacks capability. Must run after Required.
func (m *AuthMiddleware) RequireCapability(capability auth.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := GetUserRole(c)
		if !ok {
			return response.Forbidden(c, "Access denied")
		}
		if !auth.Can(role, capability) {
			return response.Forbidden(c, "Insufficient permissions")
		}
		return c.Next()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) (uint, bool) {
	userID := c.Locals("user_id")
	if userID == nil {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetUserRole extracts user role from context
func GetUserRole(c *fiber.Ctx) (string, bool) {
	role := c.Locals("user_role")
	if role == nil {
		return "", false
	}
	r, ok := role.(string)
	return r, ok
}

// GetUser extracts full user object from context
func GetUser(c *fiber.Ctx) (*model.User, bool) {
	user := c.Locals("user")
	if user == nil {
		return nil, false
	}
	u, ok := user.(*model.User)
	return u, ok
}
