package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type invitePayload struct {
	Email    string `json:"email" validate:"required,email"`
	Currency string `json:"currency" validate:"omitempty,oneof=GBP USD NGN"`
	Content  string `json:"content" validate:"notblank"`
}

func TestValidateStructSuccess(t *testing.T) {
	err := ValidateStruct(invitePayload{Email: "guest@example.com", Currency: "NGN", Content: "hi"})
	require.NoError(t, err)
}

func TestValidateStructFailures(t *testing.T) {
	err := ValidateStruct(invitePayload{Email: "invalid", Currency: "EUR", Content: "   "})
	require.Error(t, err)

	failures, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, failures, 3)

	fields := map[string]string{}
	for _, failure := range failures {
		fields[failure.Field] = failure.Tag
	}
	require.Equal(t, "email", fields["email"])
	require.Equal(t, "oneof", fields["currency"])
	require.Equal(t, "notblank", fields["content"])
}

func TestRegisterValidation(t *testing.T) {
	require.NoError(t, RegisterValidation("nest", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "nest"
	}))

	type custom struct {
		Value string `validate:"nest"`
	}

	require.NoError(t, ValidateStruct(custom{Value: "nest"}))
	require.Error(t, ValidateStruct(custom{Value: "other"}))
}
