package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// testPaymentForm carries the same tags as the bill payment request bodies.
type testPaymentForm struct {
	PayeeID   string          `validate:"required"`
	AccountID string          `validate:"required"`
	Amount    decimal.Decimal `validate:"required"`
	Reference string          `validate:"omitempty,max=64"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		valid := testPaymentForm{
			PayeeID:   "payee-1",
			AccountID: "acc-1",
			Amount:    decimal.RequireFromString("12.50"),
		}

		err := vh.ValidateStruct(&valid)
		assert.NoError(t, err)
	})

	t.Run("missing fields and zero amount", func(t *testing.T) {
		invalid := testPaymentForm{}

		err := vh.ValidateStruct(&invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 3) // PayeeID, AccountID, Amount
		assert.Equal(t, "Amount", validationErrors[2].Field())
		assert.Equal(t, "required", validationErrors[2].Tag())
	})

	t.Run("negative and sub-cent amounts are left to the payment service", func(t *testing.T) {
		for _, amount := range []string{"-10", "0.004"} {
			form := testPaymentForm{
				PayeeID:   "payee-1",
				AccountID: "acc-1",
				Amount:    decimal.RequireFromString(amount),
			}

			assert.NoError(t, vh.ValidateStruct(&form), amount)
		}
	})

	t.Run("reference too long", func(t *testing.T) {
		invalid := testPaymentForm{
			PayeeID:   "payee-1",
			AccountID: "acc-1",
			Amount:    decimal.NewFromInt(10),
			Reference: strings.Repeat("x", 65),
		}

		err := vh.ValidateStruct(&invalid)
		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 1)
		assert.Equal(t, "Reference", validationErrors[0].Field())
		assert.Equal(t, "max", validationErrors[0].Tag())
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation errors", func(t *testing.T) {
		vh := NewValidationHelper()
		validationErr := vh.ValidateStruct(&testPaymentForm{})
		assert.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Validation failed", response.Error)
		assert.Contains(t, response.Details, "PayeeID")
		assert.Contains(t, response.Details, "AccountID")
		assert.Contains(t, response.Details, "Amount")
	})

	t.Run("non validation error has no details", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, errors.New("boom"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Invalid request", response.Error)
		assert.Nil(t, response.Details)
	})
}

func TestSendJSON(t *testing.T) {
	w := httptest.NewRecorder()

	SendJSON(w, http.StatusCreated, map[string]bool{"success": true})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
}
