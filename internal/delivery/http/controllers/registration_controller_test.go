package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"eventportal/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationController_CreateRegistration(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		err            error
		noCaller       bool
		wantStatus     int
		wantBodySubstr string
	}{
		{name: "success", body: `{"eventId":"ev-1","attendees":2}`, wantStatus: http.StatusCreated},
		{name: "no caller", body: `{"eventId":"ev-1","attendees":2}`, noCaller: true, wantStatus: http.StatusUnauthorized},
		{name: "zero attendees", body: `{"eventId":"ev-1","attendees":0}`, wantStatus: http.StatusBadRequest, wantBodySubstr: "attendees must be at least 1"},
		{name: "too many attendees", body: `{"eventId":"ev-1","attendees":11}`, wantStatus: http.StatusBadRequest, wantBodySubstr: "too many attendees"},
		{name: "missing event", body: `{"attendees":1}`, wantStatus: http.StatusBadRequest, wantBodySubstr: "eventId is required"},
		{
			name:           "sold out",
			body:           `{"eventId":"ev-1","attendees":3}`,
			err:            fmt.Errorf("failed to create registration: %w", domain.ErrInsufficientCapacity),
			wantStatus:     http.StatusConflict,
			wantBodySubstr: domain.ErrInsufficientCapacity.Error(),
		},
		{name: "event cancelled", body: `{"eventId":"ev-1","attendees":1}`, err: domain.ErrEventUnavailable, wantStatus: http.StatusConflict},
		{name: "event not found", body: `{"eventId":"ev-x","attendees":1}`, err: domain.ErrNotFound, wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRegistrationService{
				registration: &domain.Registration{ID: "reg-1", EventID: "ev-1", UserID: "user-123", Attendees: 2, Status: domain.RegistrationPending, PaymentStatus: domain.PaymentStatePending},
				err:          tt.err,
			}
			ctrl := NewRegistrationController(testLogger, fake, &fakeVerificationService{})
			req := httptest.NewRequest(http.MethodPost, "/api/registrations", bytes.NewBufferString(tt.body))
			if !tt.noCaller {
				req = withCaller(req, attendee)
			}
			rr := httptest.NewRecorder()

			ctrl.CreateRegistration(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			var reg domain.Registration
			envelope := decodeEnvelope(t, rr, &reg)
			if tt.wantStatus == http.StatusCreated {
				assert.Equal(t, "reg-1", reg.ID)
				assert.Equal(t, "ev-1", fake.lastEventID)
				assert.Equal(t, "user-123", fake.lastUserID, "registrant comes from the token")
				assert.Equal(t, 2, fake.lastAttendees)
				return
			}
			require.NotNil(t, envelope.Error)
			if tt.wantBodySubstr != "" {
				assert.Contains(t, envelope.Error.Message, tt.wantBodySubstr)
			}
		})
	}
}

func TestRegistrationController_ListMyRegistrations(t *testing.T) {
	fake := &fakeRegistrationService{}
	ctrl := NewRegistrationController(testLogger, fake, &fakeVerificationService{})
	req := withCaller(httptest.NewRequest(http.MethodGet, "/api/registrations", nil), attendee)
	rr := httptest.NewRecorder()

	ctrl.ListMyRegistrations(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "user-123", fake.lastUserID)
	assert.Contains(t, rr.Body.String(), `"data":[]`)
}

func TestRegistrationController_GetRegistration(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "owner", wantStatus: http.StatusOK},
		{name: "someone else", err: domain.ErrForbidden, wantStatus: http.StatusForbidden},
		{name: "missing", err: domain.ErrNotFound, wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRegistrationService{
				withEvent: &domain.RegistrationWithEvent{
					Registration: &domain.Registration{ID: "reg-1"},
					Event:        &domain.Event{ID: "ev-1"},
				},
				err: tt.err,
			}
			ctrl := NewRegistrationController(testLogger, fake, &fakeVerificationService{})
			req := httptest.NewRequest(http.MethodGet, "/api/registrations/reg-1", nil)
			req.SetPathValue("id", "reg-1")
			req = withCaller(req, attendee)
			rr := httptest.NewRecorder()

			ctrl.GetRegistration(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "reg-1", fake.lastID)
			if tt.wantStatus == http.StatusOK {
				var got domain.RegistrationWithEvent
				decodeEnvelope(t, rr, &got)
				require.NotNil(t, got.Event)
				assert.Equal(t, "ev-1", got.Event.ID)
			}
		})
	}
}

func TestRegistrationController_CancelRegistration(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantStatus     int
		wantBodySubstr string
	}{
		{name: "cancelled", wantStatus: http.StatusOK},
		{
			name:           "payment in flight",
			err:            fmt.Errorf("%w: a payment is in progress", domain.ErrInvalidTransition),
			wantStatus:     http.StatusConflict,
			wantBodySubstr: "a payment is in progress",
		},
		{name: "not owner", err: domain.ErrForbidden, wantStatus: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRegistrationService{
				registration: &domain.Registration{ID: "reg-1", Status: domain.RegistrationCancelled},
				err:          tt.err,
			}
			ctrl := NewRegistrationController(testLogger, fake, &fakeVerificationService{})
			req := httptest.NewRequest(http.MethodPost, "/api/registrations/reg-1/cancel", nil)
			req.SetPathValue("id", "reg-1")
			req = withCaller(req, attendee)
			rr := httptest.NewRecorder()

			ctrl.CancelRegistration(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			var reg domain.Registration
			envelope := decodeEnvelope(t, rr, &reg)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, domain.RegistrationCancelled, reg.Status)
				return
			}
			if tt.wantBodySubstr != "" {
				assert.Equal(t, tt.wantBodySubstr, envelope.Error.Message)
			}
		})
	}
}

func TestRegistrationController_GenerateCode(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "sent", body: `{"registrationId":"reg-1"}`, wantStatus: http.StatusOK},
		{name: "missing registration", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "rate limited", body: `{"registrationId":"reg-1"}`, err: domain.ErrRateLimited, wantStatus: http.StatusTooManyRequests},
		{name: "not owner", body: `{"registrationId":"reg-1"}`, err: domain.ErrForbidden, wantStatus: http.StatusForbidden},
		{name: "no phone number", body: `{"registrationId":"reg-1"}`, err: fmt.Errorf("%w: add a phone number to your profile first", domain.ErrInvalidInput), wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verification := &fakeVerificationService{codeID: "code-1", err: tt.err}
			ctrl := NewRegistrationController(testLogger, &fakeRegistrationService{}, verification)
			req := withCaller(httptest.NewRequest(http.MethodPost, "/api/registrations/code-generator", bytes.NewBufferString(tt.body)), attendee)
			rr := httptest.NewRecorder()

			ctrl.GenerateCode(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				var data GenerateCodeResponse
				decodeEnvelope(t, rr, &data)
				assert.Equal(t, GenerateCodeResponse{Success: true, CodeID: "code-1"}, data)
				assert.Equal(t, "reg-1", verification.lastRegID)
				assert.Equal(t, "user-123", verification.lastCaller.UserID)
			}
		})
	}
}

func TestRegistrationController_VerifyCode(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCalls  int
	}{
		{name: "valid", body: `{"registrationId":"reg-1","code":" 123456 "}`, wantStatus: http.StatusOK, wantCalls: 1},
		{name: "wrong or expired", body: `{"registrationId":"reg-1","code":"000000"}`, err: domain.ErrInvalidCode, wantStatus: http.StatusBadRequest, wantCalls: 1},
		{name: "missing code", body: `{"registrationId":"reg-1"}`, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verification := &fakeVerificationService{err: tt.err}
			ctrl := NewRegistrationController(testLogger, &fakeRegistrationService{}, verification)
			req := withCaller(httptest.NewRequest(http.MethodPost, "/api/registrations/verify-code", bytes.NewBufferString(tt.body)), attendee)
			rr := httptest.NewRecorder()

			ctrl.VerifyCode(rr, req)

			require.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCalls, verification.verifyCalls)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "123456", verification.lastCode)
			}
		})
	}
}
