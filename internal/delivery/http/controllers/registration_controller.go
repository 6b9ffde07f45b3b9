package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"eventportal/internal/delivery/http/helpers"
	"eventportal/internal/domain"
)

// CreateRegistrationRequest is the request body for POST /api/registrations.
type CreateRegistrationRequest struct {
	EventID   string `json:"eventId"`
	Attendees int    `json:"attendees"`
}

// Validate implements Validator.
func (c CreateRegistrationRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(c.EventID) == "" {
		errs = append(errs, "eventId is required")
	}
	if c.Attendees < 1 {
		errs = append(errs, "attendees must be at least 1")
	} else if c.Attendees > domain.MaxAttendeesPerRegistration {
		errs = append(errs, "too many attendees for one registration")
	}
	return errs
}

// GenerateCodeRequest is the request body for POST /api/registrations/code-generator.
type GenerateCodeRequest struct {
	RegistrationID string `json:"registrationId"`
}

// Validate implements Validator.
func (g GenerateCodeRequest) Validate() []string {
	if strings.TrimSpace(g.RegistrationID) == "" {
		return []string{"registrationId is required"}
	}
	return nil
}

// GenerateCodeResponse is the data of POST /api/registrations/code-generator.
type GenerateCodeResponse struct {
	Success bool   `json:"success"`
	CodeID  string `json:"code_id"`
}

// VerifyCodeRequest is the request body for POST /api/registrations/verify-code.
type VerifyCodeRequest struct {
	RegistrationID string `json:"registrationId"`
	Code           string `json:"code"`
}

// Validate implements Validator.
func (v VerifyCodeRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(v.RegistrationID) == "" {
		errs = append(errs, "registrationId is required")
	}
	if strings.TrimSpace(v.Code) == "" {
		errs = append(errs, "code is required")
	}
	return errs
}

// RegistrationSuccessResponse is the success response envelope for single-registration endpoints.
type RegistrationSuccessResponse struct {
	Data  *domain.Registration `json:"data"`
	Error *helpers.APIError    `json:"error"`
}

type RegistrationController struct {
	Logger       *slog.Logger
	Service      domain.RegistrationService
	Verification domain.VerificationService
}

func NewRegistrationController(logger *slog.Logger, svc domain.RegistrationService, verification domain.VerificationService) *RegistrationController {
	return &RegistrationController{
		Logger:       logger,
		Service:      svc,
		Verification: verification,
	}
}

// CreateRegistration godoc
// @Summary Register for an event
// @Description Holds the seats immediately. Paid events stay pending until the payment succeeds; free events are confirmed.
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateRegistrationRequest true "Event and attendee count"
// @Success 201 {object} controllers.RegistrationSuccessResponse "data contains the registration"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/registrations [post]
func (c *RegistrationController) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req CreateRegistrationRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	reg, err := c.Service.CreateRegistration(r.Context(), strings.TrimSpace(req.EventID), caller.UserID, req.Attendees)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, reg)
}

// ListMyRegistrations godoc
// @Summary List my registrations
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data contains registrations with their events"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/registrations [get]
func (c *RegistrationController) ListMyRegistrations(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	regs, err := c.Service.ListMyRegistrations(r.Context(), caller.UserID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if regs == nil {
		regs = []*domain.RegistrationWithEvent{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, regs)
}

// GetRegistration godoc
// @Summary Get a registration
// @Description Owner or admin only.
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Registration ID"
// @Success 200 {object} helpers.APIResponse "data contains registration and event"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/registrations/{id} [get]
func (c *RegistrationController) GetRegistration(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	reg, err := c.Service.GetRegistration(r.Context(), id, caller)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}

// CancelRegistration godoc
// @Summary Cancel a pending registration
// @Description Releases the held seats. Confirmed registrations and registrations with a payment in flight cannot be cancelled.
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Registration ID"
// @Success 200 {object} controllers.RegistrationSuccessResponse "data contains the cancelled registration"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/registrations/{id}/cancel [post]
func (c *RegistrationController) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	reg, err := c.Service.CancelRegistration(r.Context(), id, caller)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, reg)
}

// GenerateCode godoc
// @Summary Send a verification code
// @Description Texts a 6-digit code, valid for 15 minutes, to the caller's profile phone number.
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body GenerateCodeRequest true "Registration"
// @Success 200 {object} helpers.APIResponse "data contains success and code_id"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 429 {object} helpers.APIResponse "error.code: too_many_requests"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/registrations/code-generator [post]
func (c *RegistrationController) GenerateCode(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req GenerateCodeRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	codeID, err := c.Verification.GenerateCode(r.Context(), strings.TrimSpace(req.RegistrationID), caller)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, GenerateCodeResponse{Success: true, CodeID: codeID})
}

// VerifyCode godoc
// @Summary Check a verification code
// @Description Codes are single use and expire 15 minutes after they were sent.
// @Tags registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body VerifyCodeRequest true "Registration and code"
// @Success 200 {object} helpers.APIResponse "data.verified is true"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 429 {object} helpers.APIResponse "error.code: too_many_requests"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/registrations/verify-code [post]
func (c *RegistrationController) VerifyCode(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req VerifyCodeRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	if err := c.Verification.VerifyCode(r.Context(), strings.TrimSpace(req.RegistrationID), strings.TrimSpace(req.Code), caller); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, map[string]bool{"verified": true})
}
