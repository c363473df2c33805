package validation

import (
	"errors"
	"testing"

	"monolith/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerInput struct {
	FullName             string `json:"full_name" validate:"required,max=255"`
	UserName             string `json:"user_name" validate:"required,max=50,username"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,password"`
	PasswordConfirmation string `json:"password_confirmation" validate:"eqfield=Password"`
	ProfilePicture       string `json:"profile_picture" validate:"omitempty,url"`
}

func TestStruct_Valid(t *testing.T) {
	t.Parallel()
	in := registerInput{
		FullName:             "Ann",
		UserName:             "ann1",
		Email:                "a@x.com",
		Password:             "secret123",
		PasswordConfirmation: "secret123",
	}
	assert.NoError(t, Struct(in))
}

func TestStruct_FieldMessages(t *testing.T) {
	t.Parallel()
	in := registerInput{
		UserName:             "bad name",
		Email:                "nope",
		Password:             "short",
		PasswordConfirmation: "other",
		ProfilePicture:       "not a url",
	}
	err := Struct(in)

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeValidation, appErr.Code)
	assert.Equal(t, "The full name field is required.", appErr.Message)
	assert.Equal(t, []string{"The full name field is required."}, appErr.Fields["full_name"])
	assert.Contains(t, appErr.Fields, "user_name")
	assert.Equal(t, []string{"The email field must be a valid email address."}, appErr.Fields["email"])
	assert.Equal(t, []string{"The password field must be at least 8 characters."}, appErr.Fields["password"])
	assert.Equal(t, []string{"The password field confirmation does not match."}, appErr.Fields["password_confirmation"])
	assert.Equal(t, []string{"The profile picture field must be a valid URL."}, appErr.Fields["profile_picture"])
}

func TestStruct_MaxLength(t *testing.T) {
	t.Parallel()
	type commentInput struct {
		Content string `json:"content" validate:"required,max=5"`
	}
	err := Struct(commentInput{Content: "too long"})

	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, []string{"The content field must not be greater than 5 characters."}, appErr.Fields["content"])
}
