package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_UnwrapsToSentinel(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{ValidationFailed("userId", "required"), ErrValidation},
		{Ineligible(), ErrIneligible},
		{AlreadyClaimed(), ErrAlreadyClaimed},
		{OutOfStock("Coffee Kit"), ErrOutOfStock},
		{InventoryUpdateFailed("coffee-kit"), ErrInventoryUpdate},
		{Unavailable(errors.New("boom")), ErrUnavailable},
		{SubmissionFailed(errors.New("boom")), ErrSubmission},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, tt.err, tt.want)
	}
}

func TestAppError_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("submitting claim: %w", OutOfStock("Coffee Kit"))

	assert.ErrorIs(t, err, ErrOutOfStock)

	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, `"Coffee Kit" is out of stock`, appErr.Message)
}

func TestValidationFailed_CarriesField(t *testing.T) {
	var appErr *AppError
	assert.True(t, errors.As(ValidationFailed("giftId", "unknown gift"), &appErr))
	assert.Equal(t, "giftId", appErr.Field)
	assert.Equal(t, "unknown gift", appErr.Error())
}
