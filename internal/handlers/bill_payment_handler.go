package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/ruralpay/billpay/internal/config"
	"github.com/ruralpay/billpay/internal/middleware"
	"github.com/ruralpay/billpay/internal/services"
	"github.com/shopspring/decimal"
)

var allowedDocumentTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

type BillPaymentHandler struct {
	service   *services.BillPaymentService
	validator *services.ValidationHelper
	config    *config.PaymentConfig
}

func NewBillPaymentHandler(service *services.BillPaymentService, cfg *config.PaymentConfig) *BillPaymentHandler {
	return &BillPaymentHandler{
		service:   service,
		validator: services.NewValidationHelper(),
		config:    cfg,
	}
}

// PayBillRequest is the body of a standard bill payment
// @Description Bill payment request
type PayBillRequest struct {
	PayeeID   string          `json:"payeeId" validate:"required" example:"3f1c1a9e-7d0b-4c58-9a57-0f6f4bb0b6a1"`
	AccountID string          `json:"accountId" validate:"required" example:"a7d2e6f4-2b8e-4a3c-8d6e-1e4b5f0c9d21"`
	Amount    decimal.Decimal `json:"amount" validate:"required" swaggertype:"string" example:"125.50"`
	Reference string          `json:"reference,omitempty" validate:"omitempty,max=64" example:"INV-2026-0042"`
}

// PayVerifiedBillRequest is the body of a bill payment above the threshold
// @Description Verified bill payment request
type PayVerifiedBillRequest struct {
	PayeeID      string          `json:"payeeId" validate:"required"`
	AccountID    string          `json:"accountId" validate:"required"`
	Amount       decimal.Decimal `json:"amount" validate:"required" swaggertype:"string" example:"25000"`
	DocumentPath string          `json:"documentPath,omitempty" validate:"omitempty,max=255"`
	DocumentType string          `json:"documentType,omitempty" validate:"omitempty,oneof=INVOICE RECEIPT CONTRACT STATEMENT OTHER"`
}

func userFromRequest(w http.ResponseWriter, r *http.Request, tag string) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		log.Printf("%s Unauthorized: userID missing or invalid", tag)
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
	}
	return userID, ok
}

// writeResult maps an expected payment outcome to its response code.
func writeResult(w http.ResponseWriter, result *services.PaymentResult) {
	status := http.StatusOK
	switch result.Reason {
	case services.ReasonAccountNotFound, services.ReasonPayeeNotFound:
		status = http.StatusNotFound
	case services.ReasonInvalidAmount, services.ReasonInsufficientFunds, services.ReasonVerificationRequired:
		status = http.StatusBadRequest
	}
	services.SendJSON(w, status, result)
}

// PayBill settles a bill payment at or below the verification threshold
// @Summary Pay a bill
// @Description Debit an account for a bill payee. Amounts above the verification threshold are refused with requiresVerification set.
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PayBillRequest true "Bill payment request"
// @Success 200 {object} services.PaymentResult
// @Failure 400 {object} services.PaymentResult
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.PaymentResult
// @Failure 500 {object} services.ErrorResponse
// @Router /payments/bills [post]
func (h *BillPaymentHandler) PayBill(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r, "[PAYMENT] PayBill -")
	if !ok {
		return
	}

	var req PayBillRequest
	if !services.DecodeJSONBody(w, r, &req, "[PAYMENT] PayBill -") {
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		log.Printf("[PAYMENT] PayBill - Validation error: %v", err)
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.ProcessPayment(r.Context(), services.PaymentRequest{
		UserID:    userID,
		PayeeID:   req.PayeeID,
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Reference: strings.TrimSpace(req.Reference),
	})
	if err != nil {
		log.Printf("[PAYMENT] PayBill - Processing failed for user %s: %v", userID, err)
		services.SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
		return
	}

	writeResult(w, result)
}

// PayVerifiedBill debits a bill payment that is held for document review
// @Summary Pay a bill with supporting document
// @Description Debit an account immediately and queue the payment for verification
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PayVerifiedBillRequest true "Verified bill payment request"
// @Success 200 {object} services.PaymentResult
// @Failure 400 {object} services.PaymentResult
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.PaymentResult
// @Failure 500 {object} services.ErrorResponse
// @Router /payments/bills/verified [post]
func (h *BillPaymentHandler) PayVerifiedBill(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r, "[PAYMENT] PayVerifiedBill -")
	if !ok {
		return
	}

	var req PayVerifiedBillRequest
	if !services.DecodeJSONBody(w, r, &req, "[PAYMENT] PayVerifiedBill -") {
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		log.Printf("[PAYMENT] PayVerifiedBill - Validation error: %v", err)
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if req.DocumentPath != "" && !h.ownsDocument(userID, req.DocumentPath) {
		log.Printf("[PAYMENT] PayVerifiedBill - Document %q not uploaded by user %s", req.DocumentPath, userID)
		services.SendErrorResponse(w, "Unknown document", http.StatusBadRequest, nil)
		return
	}

	result, err := h.service.ProcessVerifiedPayment(r.Context(), services.VerifiedPaymentRequest{
		UserID:       userID,
		PayeeID:      req.PayeeID,
		AccountID:    req.AccountID,
		Amount:       req.Amount,
		DocumentPath: req.DocumentPath,
		DocumentType: req.DocumentType,
	})
	if err != nil {
		log.Printf("[PAYMENT] PayVerifiedBill - Processing failed for user %s: %v", userID, err)
		services.SendErrorResponse(w, "Failed to process payment", http.StatusInternalServerError, nil)
		return
	}

	writeResult(w, result)
}

// ListBillPayments returns recent bill payments
// @Summary List bill payments
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Maximum number of results (1-100)"
// @Success 200 {object} object{transactions=[]models.Transaction}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /payments/bills [get]
func (h *BillPaymentHandler) ListBillPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r, "[PAYMENT] ListBillPayments -")
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			services.SendErrorResponse(w, "limit must be a positive integer", http.StatusBadRequest, nil)
			return
		}
		limit = n
	}

	transactions, err := h.service.ListBillPayments(r.Context(), userID, limit)
	if err != nil {
		log.Printf("[PAYMENT] ListBillPayments - Failed for user %s: %v", userID, err)
		services.SendErrorResponse(w, "Failed to fetch payments", http.StatusInternalServerError, nil)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

// Threshold returns the current verification threshold
// @Summary Get verification threshold
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{threshold=string}
// @Failure 500 {object} services.ErrorResponse
// @Router /payments/threshold [get]
func (h *BillPaymentHandler) Threshold(w http.ResponseWriter, r *http.Request) {
	threshold, err := h.service.VerificationThreshold(r.Context())
	if err != nil {
		log.Printf("[PAYMENT] Threshold lookup failed: %v", err)
		services.SendErrorResponse(w, "Failed to resolve threshold", http.StatusInternalServerError, nil)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{"threshold": threshold})
}

// UploadDocument stores a supporting document for a verified payment
// @Summary Upload supporting document
// @Description Store a PDF or image and return the path to reference in a verified payment
// @Tags Payments
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param document formData file true "Supporting document"
// @Success 201 {object} object{documentPath=string,contentType=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 413 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /payments/documents [post]
func (h *BillPaymentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromRequest(w, r, "[PAYMENT] UploadDocument -")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			services.SendErrorResponse(w, "Document too large", http.StatusRequestEntityTooLarge, nil)
			return
		}
		log.Printf("[PAYMENT] UploadDocument - Invalid form: %v", err)
		services.SendErrorResponse(w, "Invalid multipart form", http.StatusBadRequest, nil)
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		services.SendErrorResponse(w, "document file is required", http.StatusBadRequest, nil)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, allowed := allowedDocumentTypes[ext]
	if !allowed {
		services.SendErrorResponse(w, "Unsupported document type", http.StatusBadRequest, nil)
		return
	}

	dir, ok := middleware.UserDocumentDir(h.config.UploadDir, userID)
	if !ok {
		log.Printf("[PAYMENT] UploadDocument - Unusable user id %q", userID)
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.Printf("[PAYMENT] UploadDocument - Cannot create upload dir: %v", err)
		services.SendErrorResponse(w, "Failed to store document", http.StatusInternalServerError, nil)
		return
	}

	name := uuid.NewString() + ext
	path := filepath.Join(dir, name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		log.Printf("[PAYMENT] UploadDocument - Cannot create %s: %v", path, err)
		services.SendErrorResponse(w, "Failed to store document", http.StatusInternalServerError, nil)
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		log.Printf("[PAYMENT] UploadDocument - Write failed for %s: %v", path, err)
		services.SendErrorResponse(w, "Failed to store document", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[PAYMENT] UploadDocument - Stored %s (%d bytes) for user %s", name, header.Size, userID)
	services.SendJSON(w, http.StatusCreated, map[string]string{
		"documentPath": path,
		"contentType":  contentType,
	})
}

// ownsDocument reports whether path names a file that userID uploaded.
func (h *BillPaymentHandler) ownsDocument(userID, path string) bool {
	dir, ok := middleware.UserDocumentDir(h.config.UploadDir, userID)
	if !ok {
		return false
	}
	clean := filepath.Clean(path)
	if filepath.Dir(clean) != dir || strings.HasPrefix(filepath.Base(clean), ".") {
		return false
	}
	info, err := os.Stat(clean)
	return err == nil && info.Mode().IsRegular()
}
