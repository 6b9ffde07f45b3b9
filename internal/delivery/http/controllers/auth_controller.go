package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	h "eventportal/internal/delivery/http/helpers"
	"eventportal/internal/domain"
)

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// checkEmail returns the validation message for an email field, or "" when it is usable.
func checkEmail(raw string) string {
	switch email := strings.ToLower(strings.TrimSpace(raw)); {
	case email == "":
		return "email is required"
	case !emailRegexp.MatchString(email):
		return "invalid email format"
	}
	return ""
}

// LoginCodeRequest is the body of POST /auth/login-code.
type LoginCodeRequest struct {
	Email string `json:"email"`
}

func (l LoginCodeRequest) Validate() []string {
	if msg := checkEmail(l.Email); msg != "" {
		return []string{msg}
	}
	return nil
}

// VerifyLoginCodeRequest is the body of POST /auth/verify-code.
type VerifyLoginCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (v VerifyLoginCodeRequest) Validate() []string {
	var errs []string
	if msg := checkEmail(v.Email); msg != "" {
		errs = append(errs, msg)
	}
	if strings.TrimSpace(v.Code) == "" {
		errs = append(errs, "code is required")
	}
	return errs
}

// LoginResponse is the response body for POST /auth/verify-code
type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	User      *domain.User `json:"user"`
}

// LoginSuccessResponse is the success response envelope for POST /auth/verify-code (200).
type LoginSuccessResponse struct {
	Data  LoginResponse `json:"data"`
	Error *h.APIError   `json:"error"`
}

// AuthController runs the passwordless login exchange.
type AuthController struct {
	Logger  *slog.Logger
	Service domain.UserService
}

func NewAuthController(logger *slog.Logger, svc domain.UserService) *AuthController {
	return &AuthController{Logger: logger, Service: svc}
}

// RequestLoginCode godoc
// @Summary Request a login code
// @Description Emails a 6-digit one-time code valid for 15 minutes. Accounts are created on first verification.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body LoginCodeRequest true "Email to send the code to"
// @Success 202 {object} helpers.APIResponse "data.sent is true"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /auth/login-code [post]
func (c *AuthController) RequestLoginCode(w http.ResponseWriter, r *http.Request) {
	var req LoginCodeRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	if err := c.Service.RequestLoginCode(r.Context(), req.Email); err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusAccepted, map[string]bool{"sent": true})
}

// VerifyLoginCode godoc
// @Summary Log in with a code
// @Description Exchanges the emailed code for a JWT carrying the user id and roles. Codes are single use.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body VerifyLoginCodeRequest true "Email and code"
// @Success 200 {object} controllers.LoginSuccessResponse "data contains token, token_type and user"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /auth/verify-code [post]
func (c *AuthController) VerifyLoginCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyLoginCodeRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	token, user, err := c.Service.VerifyLoginCode(r.Context(), req.Email, req.Code)
	switch {
	case errors.Is(err, domain.ErrInvalidCode):
		// A bad login code is an authentication failure, not a malformed request.
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid or expired code")
		return
	case err != nil:
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, LoginResponse{Token: token, TokenType: "Bearer", User: user})
}
