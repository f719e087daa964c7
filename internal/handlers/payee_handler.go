package handlers

import (
	"log"
	"net/http"

	"github.com/ruralpay/billpay/internal/services"
)

type PayeeHandler struct {
	service   *services.PayeeService
	validator *services.ValidationHelper
}

func NewPayeeHandler(service *services.PayeeService) *PayeeHandler {
	return &PayeeHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// ListPayees returns the caller's bill payees
// @Summary List bill payees
// @Tags Payees
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{payees=[]models.BillPayee}
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /payees [get]
func (h *PayeeHandler) ListPayees(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r, "[PAYEE] ListPayees -")
	if !ok {
		return
	}

	payees, err := h.service.ListPayees(r.Context(), userID)
	if err != nil {
		log.Printf("[PAYEE] ListPayees - Failed for user %s: %v", userID, err)
		services.SendErrorResponse(w, "Failed to fetch payees", http.StatusInternalServerError, nil)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{"payees": payees})
}

// CreatePayee registers a new bill payee
// @Summary Create bill payee
// @Tags Payees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.CreatePayeeRequest true "Payee"
// @Success 201 {object} models.BillPayee
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /payees [post]
func (h *PayeeHandler) CreatePayee(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r, "[PAYEE] CreatePayee -")
	if !ok {
		return
	}

	var req services.CreatePayeeRequest
	if !services.DecodeJSONBody(w, r, &req, "[PAYEE] CreatePayee -") {
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		log.Printf("[PAYEE] CreatePayee - Validation error: %v", err)
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	payee, err := h.service.CreatePayee(r.Context(), userID, req)
	if err != nil {
		log.Printf("[PAYEE] CreatePayee - Failed for user %s: %v", userID, err)
		services.SendErrorResponse(w, "Failed to create payee", http.StatusInternalServerError, nil)
		return
	}

	services.SendJSON(w, http.StatusCreated, payee)
}
