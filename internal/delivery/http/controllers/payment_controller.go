package controllers

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"eventportal/internal/delivery/http/helpers"
	"eventportal/internal/domain"
)

const (
	missingFieldsMessage = "Missing required fields"
	maxWebhookBody       = 64 << 10
)

// CreatePaymentRequest is the request body for POST /api/payments/create.
type CreatePaymentRequest struct {
	RegistrationID string `json:"registrationId"`
	Amount         int64  `json:"amount"`
	Provider       string `json:"provider"`
	PhoneNumber    string `json:"phoneNumber"`
}

// Validate implements Validator.
func (c CreatePaymentRequest) Validate() []string {
	if strings.TrimSpace(c.RegistrationID) == "" || c.Amount <= 0 ||
		strings.TrimSpace(c.Provider) == "" || strings.TrimSpace(c.PhoneNumber) == "" {
		return []string{missingFieldsMessage}
	}
	return nil
}

// CreatePaymentResponse is the data of POST /api/payments/create.
type CreatePaymentResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
}

type PaymentController struct {
	Logger  *slog.Logger
	Service domain.PaymentService
}

func NewPaymentController(logger *slog.Logger, svc domain.PaymentService) *PaymentController {
	return &PaymentController{
		Logger:  logger,
		Service: svc,
	}
}

// CreatePayment godoc
// @Summary Start a mobile money payment
// @Description Sends a collection request to the operator. The amount must equal the event price times the attendee count. Confirmation continues server-side.
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreatePaymentRequest true "Payment request"
// @Success 200 {object} helpers.APIResponse "data contains success and transactionId"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 502 {object} helpers.APIResponse "error.code: payment_provider_error"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/payments/create [post]
func (c *PaymentController) CreatePayment(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req CreatePaymentRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	in := domain.InitiatePaymentInput{
		RegistrationID: strings.TrimSpace(req.RegistrationID),
		Amount:         req.Amount,
		Provider:       domain.PaymentProvider(strings.ToLower(strings.TrimSpace(req.Provider))),
		PhoneNumber:    req.PhoneNumber,
	}
	payment, err := c.Service.InitiatePayment(r.Context(), in, caller)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, CreatePaymentResponse{Success: true, TransactionID: payment.TransactionID})
}

// PaymentStatus godoc
// @Summary Check a payment
// @Description Asks the operator once and applies the outcome. Settled payments are answered from storage.
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param transactionId query string true "Transaction ID"
// @Param provider query string true "mtn or orange"
// @Success 200 {object} helpers.APIResponse "data contains status and message"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 502 {object} helpers.APIResponse "error.code: payment_provider_error"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/payments/status [get]
func (c *PaymentController) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	txID := strings.TrimSpace(r.URL.Query().Get("transactionId"))
	provider := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("provider")))
	if txID == "" || provider == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, missingFieldsMessage)
		return
	}
	res, err := c.Service.CheckStatus(r.Context(), txID, domain.PaymentProvider(provider), caller)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, res)
}

// Webhook godoc
// @Summary Payment aggregator callback
// @Description The raw body is authenticated with an HMAC-SHA256 hex digest in X-Signature. Repeated deliveries are no-ops.
// @Tags payments
// @Accept json
// @Produce json
// @Param X-Signature header string true "HMAC-SHA256 of the body"
// @Param body body domain.PaymentWebhook true "Callback payload"
// @Success 200 {object} helpers.APIResponse "data.received is true"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/payments/webhook [post]
func (c *PaymentController) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "unreadable body")
		return
	}
	if err := c.Service.HandleWebhook(r.Context(), body, r.Header.Get("X-Signature")); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, map[string]bool{"received": true})
}
