package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	m := NewJWTManager(JWTConfig{Secret: "test-secret", Issuer: "identity"})

	token, err := m.IssueToken("uid-123", "student@example.com", "Student")
	require.NoError(t, err)

	identity, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "uid-123", identity.UID)
	assert.Equal(t, "student@example.com", identity.Email)
	assert.Equal(t, "Student", identity.Name)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTManager(JWTConfig{Secret: "one"})
	verifier := NewJWTManager(JWTConfig{Secret: "two"})

	token, err := issuer.IssueToken("uid-1", "", "")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewJWTManager(JWTConfig{Secret: "s", Expiry: -time.Minute})

	token, err := m.IssueToken("uid-1", "", "")
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	issuer := NewJWTManager(JWTConfig{Secret: "s", Issuer: "someone-else"})
	verifier := NewJWTManager(JWTConfig{Secret: "s", Issuer: "identity"})

	token, err := issuer.IssueToken("uid-1", "", "")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	require.NoError(t, err)

	_, err = NewJWTManager(JWTConfig{Secret: "s"}).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestCan(t *testing.T) {
	tests := []struct {
		role       string
		capability Capability
		want       bool
	}{
		{"admin", ViewAllTransactions, true},
		{"admin", ManageEnrollments, true},
		{"moderator", ManageEnrollments, true},
		{"moderator", ViewAllTransactions, false},
		{"teacher", AccessAllCourses, true},
		{"student", AccessAllCourses, false},
		{"student", ManageEnrollments, false},
		{"", ManageEnrollments, false},
		{"superuser", ViewAllTransactions, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+string(tt.capability), func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.role, tt.capability))
		})
	}
}
