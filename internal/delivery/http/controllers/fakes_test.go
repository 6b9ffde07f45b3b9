package controllers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"eventportal/internal/delivery/http/helpers"
	"eventportal/internal/delivery/http/middleware"
	"eventportal/internal/domain"

	"github.com/stretchr/testify/require"
)

// testLogger is a no-op logger for controller tests so we don't assert on log output.
var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

var (
	attendee = domain.Principal{UserID: "user-123", Email: "ama@example.cm", Roles: []string{domain.RoleAttendee}}
	admin    = domain.Principal{UserID: "admin-1", Email: "root@example.cm", Roles: []string{domain.RoleAttendee, domain.RoleAdmin}}
)

func withCaller(r *http.Request, p domain.Principal) *http.Request {
	return r.WithContext(middleware.SetPrincipal(r.Context(), p))
}

// decodeEnvelope decodes the response envelope and re-decodes Data into dest when dest is not nil.
func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, dest any) helpers.APIResponse {
	t.Helper()
	var envelope helpers.APIResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&envelope), "response must be valid JSON envelope")
	if dest != nil && envelope.Data != nil {
		raw, err := json.Marshal(envelope.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, dest))
	}
	return envelope
}

type fakeEventService struct {
	events        []*domain.Event
	total         int
	event         *domain.Event
	categories    []*domain.EventCategory
	retired       bool
	err           error
	lastFilter    domain.EventFilter
	lastParams    domain.PaginationParams
	lastCreated   *domain.Event
	lastUpdate    domain.EventUpdate
	lastCaller    domain.Principal
	lastID        string
	createdWithID string
}

func (f *fakeEventService) ListEvents(_ context.Context, filter domain.EventFilter, params domain.PaginationParams) ([]*domain.Event, int, error) {
	f.lastFilter, f.lastParams = filter, params
	return f.events, f.total, f.err
}

func (f *fakeEventService) GetEvent(_ context.Context, id string) (*domain.Event, error) {
	f.lastID = id
	return f.event, f.err
}

func (f *fakeEventService) CreateEvent(_ context.Context, event *domain.Event) error {
	f.lastCreated = event
	if f.err != nil {
		return f.err
	}
	event.ID = f.createdWithID
	return nil
}

func (f *fakeEventService) UpdateEvent(_ context.Context, id string, caller domain.Principal, update domain.EventUpdate) (*domain.Event, error) {
	f.lastID, f.lastCaller, f.lastUpdate = id, caller, update
	return f.event, f.err
}

func (f *fakeEventService) DeleteEvent(_ context.Context, id string, caller domain.Principal) (bool, error) {
	f.lastID, f.lastCaller = id, caller
	return f.retired, f.err
}

func (f *fakeEventService) ListCategories(context.Context) ([]*domain.EventCategory, error) {
	return f.categories, f.err
}

type fakeRegistrationService struct {
	registration  *domain.Registration
	withEvent     *domain.RegistrationWithEvent
	mine          []*domain.RegistrationWithEvent
	forEvent      []*domain.Registration
	err           error
	lastEventID   string
	lastUserID    string
	lastAttendees int
	lastID        string
	lastCaller    domain.Principal
}

func (f *fakeRegistrationService) CreateRegistration(_ context.Context, eventID, userID string, attendees int) (*domain.Registration, error) {
	f.lastEventID, f.lastUserID, f.lastAttendees = eventID, userID, attendees
	return f.registration, f.err
}

func (f *fakeRegistrationService) GetRegistration(_ context.Context, id string, caller domain.Principal) (*domain.RegistrationWithEvent, error) {
	f.lastID, f.lastCaller = id, caller
	return f.withEvent, f.err
}

func (f *fakeRegistrationService) ListMyRegistrations(_ context.Context, userID string) ([]*domain.RegistrationWithEvent, error) {
	f.lastUserID = userID
	return f.mine, f.err
}

func (f *fakeRegistrationService) ListEventRegistrations(_ context.Context, eventID string, caller domain.Principal) ([]*domain.Registration, error) {
	f.lastEventID, f.lastCaller = eventID, caller
	return f.forEvent, f.err
}

func (f *fakeRegistrationService) CancelRegistration(_ context.Context, id string, caller domain.Principal) (*domain.Registration, error) {
	f.lastID, f.lastCaller = id, caller
	return f.registration, f.err
}

func (f *fakeRegistrationService) ExpireStalePending(context.Context) (int, error) {
	return 0, nil
}

type fakeVerificationService struct {
	codeID      string
	err         error
	lastRegID   string
	lastCode    string
	lastCaller  domain.Principal
	verifyCalls int
}

func (f *fakeVerificationService) GenerateCode(_ context.Context, registrationID string, caller domain.Principal) (string, error) {
	f.lastRegID, f.lastCaller = registrationID, caller
	return f.codeID, f.err
}

func (f *fakeVerificationService) VerifyCode(_ context.Context, registrationID, code string, caller domain.Principal) error {
	f.verifyCalls++
	f.lastRegID, f.lastCode, f.lastCaller = registrationID, code, caller
	return f.err
}

type fakePaymentService struct {
	payment       *domain.Payment
	status        domain.PaymentStatusResult
	err           error
	lastInput     domain.InitiatePaymentInput
	lastCaller    domain.Principal
	lastTxID      string
	lastProvider  domain.PaymentProvider
	lastBody      []byte
	lastSignature string
	calls         int
}

func (f *fakePaymentService) InitiatePayment(_ context.Context, in domain.InitiatePaymentInput, caller domain.Principal) (*domain.Payment, error) {
	f.calls++
	f.lastInput, f.lastCaller = in, caller
	return f.payment, f.err
}

func (f *fakePaymentService) CheckStatus(_ context.Context, txID string, provider domain.PaymentProvider, caller domain.Principal) (domain.PaymentStatusResult, error) {
	f.calls++
	f.lastTxID, f.lastProvider, f.lastCaller = txID, provider, caller
	return f.status, f.err
}

func (f *fakePaymentService) AwaitCompletion(context.Context, string) (*domain.Payment, error) {
	return f.payment, f.err
}

func (f *fakePaymentService) HandleWebhook(_ context.Context, body []byte, signature string) error {
	f.calls++
	f.lastBody, f.lastSignature = body, signature
	return f.err
}

func (f *fakePaymentService) ListPending(context.Context) ([]*domain.Payment, error) {
	return nil, nil
}

type fakeUserService struct {
	user          *domain.User
	token         string
	requestErr    error
	verifyErr     error
	getErr        error
	updateErr     error
	lastEmail     string
	lastCode      string
	lastUpdated   *domain.User
	requestCalled bool
}

func (f *fakeUserService) RequestLoginCode(_ context.Context, email string) error {
	f.requestCalled = true
	f.lastEmail = email
	return f.requestErr
}

func (f *fakeUserService) VerifyLoginCode(_ context.Context, email, code string) (string, *domain.User, error) {
	f.lastEmail, f.lastCode = email, code
	if f.verifyErr != nil {
		return "", nil, f.verifyErr
	}
	return f.token, f.user, nil
}

func (f *fakeUserService) GetByID(_ context.Context, id string) (*domain.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u := *f.user
	return &u, nil
}

func (f *fakeUserService) Update(_ context.Context, user *domain.User) error {
	f.lastUpdated = user
	return f.updateErr
}

type fakeAdminService struct {
	users      []*domain.User
	total      int
	err        error
	lastParams domain.PaginationParams
	lastUserID string
	lastRole   string
	granted    bool
	revoked    bool
}

func (f *fakeAdminService) ListUsers(_ context.Context, params domain.PaginationParams) ([]*domain.User, int, error) {
	f.lastParams = params
	return f.users, f.total, f.err
}

func (f *fakeAdminService) GrantRole(_ context.Context, userID, role string) error {
	f.granted = true
	f.lastUserID, f.lastRole = userID, role
	return f.err
}

func (f *fakeAdminService) RevokeRole(_ context.Context, userID, role string) error {
	f.revoked = true
	f.lastUserID, f.lastRole = userID, role
	return f.err
}
