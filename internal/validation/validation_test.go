package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/livefeed/backend/internal/apperr"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=5"`
	Name     string `json:"name" validate:"required"`
}

func TestCheck_CollectsEveryViolation(t *testing.T) {
	fields := Check(signup{Email: "not-an-email", Password: "abc"})

	require.Len(t, fields, 3)
	assert.Equal(t, "email", fields[0].Field)
	assert.Equal(t, "must be a valid email address", fields[0].Message)
	assert.Equal(t, "password", fields[1].Field)
	assert.Equal(t, "must be at least 5 characters", fields[1].Message)
	assert.Equal(t, "name", fields[2].Field)
	assert.Equal(t, "is required", fields[2].Message)
}

func TestCheck_Valid(t *testing.T) {
	assert.Nil(t, Check(signup{Email: "a@b.co", Password: "secret", Name: "Ann"}))
}

func TestStruct_ReturnsValidationError(t *testing.T) {
	err := Struct(signup{})

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.NoError(t, Struct(signup{Email: "a@b.co", Password: "secret", Name: "Ann"}))
}
