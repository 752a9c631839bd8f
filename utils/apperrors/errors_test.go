package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("initiate: %w", Conflict("User already enrolled in this course"))

	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, Is(err, KindConflict))
	assert.Equal(t, "User already enrolled in this course", MessageOf(err))
}

func TestForeignErrorsAreInternal(t *testing.T) {
	err := errors.New("connection reset")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "Internal server error", MessageOf(err))
	assert.False(t, Is(nil, KindInternal))
}

func TestGatewayKeepsCause(t *testing.T) {
	cause := errors.New("timeout")
	err := Gateway(cause, "payment validation unreachable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "payment validation unreachable: timeout", err.Error())
	assert.Equal(t, "payment validation unreachable", MessageOf(err))
}

func TestConstructorsFormat(t *testing.T) {
	assert.Equal(t, "Course 7 not found", NotFound("Course %d not found", 7).Error())
	assert.Equal(t, KindValidation, Validation("bad").Kind)
	assert.Equal(t, KindForbidden, Forbidden("no").Kind)
	assert.Equal(t, KindUnauthorized, Unauthorized("who").Kind)
}
