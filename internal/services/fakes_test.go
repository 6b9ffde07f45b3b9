package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"eventportal/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// memStore backs the event, registration and payment fakes so that seat accounting and
// settlement behave like the SQL repositories, one lock standing in for a transaction.
type memStore struct {
	mu       sync.Mutex
	seq      int
	events   map[string]*domain.Event
	regs     map[string]*domain.Registration
	payments map[string]*domain.Payment
}

func newMemStore() *memStore {
	return &memStore{
		events:   make(map[string]*domain.Event),
		regs:     make(map[string]*domain.Registration),
		payments: make(map[string]*domain.Payment),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memStore) addEvent(e *domain.Event) *domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = s.nextID("ev")
	}
	if e.Status == "" {
		e.Status = domain.EventStatusActive
	}
	s.events[e.ID] = e
	return e
}

func (s *memStore) addRegistration(r *domain.Registration) *domain.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = s.nextID("reg")
	}
	s.regs[r.ID] = r
	return r
}

func (s *memStore) addPayment(p *domain.Payment) *domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = s.nextID("pay")
	}
	s.payments[p.ID] = p
	return p
}

func (s *memStore) event(id string) domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.events[id]
}

func (s *memStore) registration(id string) domain.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.regs[id]
}

func (s *memStore) payment(txID string) domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.paymentByTx(txID)
}

// paymentByTx and paymentByRef must be called with mu held.
func (s *memStore) paymentByTx(txID string) *domain.Payment {
	for _, p := range s.payments {
		if txID != "" && p.TransactionID == txID {
			return p
		}
	}
	return nil
}

func (s *memStore) paymentByRef(ref string) *domain.Payment {
	for _, p := range s.payments {
		if p.Reference == ref {
			return p
		}
	}
	return nil
}

// reserve and release must be called with mu held.
func (s *memStore) reserve(eventID string, n int) error {
	e, ok := s.events[eventID]
	if !ok {
		return domain.ErrNotFound
	}
	if e.Status != domain.EventStatusActive {
		return domain.ErrEventUnavailable
	}
	if e.RegisteredAttendees+n > e.Capacity {
		return domain.ErrInsufficientCapacity
	}
	e.RegisteredAttendees += n
	return nil
}

func (s *memStore) release(eventID string, n int) {
	if e, ok := s.events[eventID]; ok {
		e.RegisteredAttendees = max(e.RegisteredAttendees-n, 0)
	}
}

func (s *memStore) hasPendingPayment(regID string, since time.Time) bool {
	for _, p := range s.payments {
		if p.RegistrationID == regID && p.Status == domain.PaymentPending && !p.CreatedAt.Before(since) {
			return true
		}
	}
	return false
}

type fakeEventRepo struct {
	*memStore
	listErr error
}

func (f *fakeEventRepo) Create(ctx context.Context, e *domain.Event) error {
	f.addEvent(e)
	return nil
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEventRepo) List(ctx context.Context, filter domain.EventFilter, params domain.PaginationParams) ([]*domain.Event, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Event
	for _, e := range f.events {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(e.Title+" "+e.Location), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.AvailableOnly && e.AvailableSpots() == 0 {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	total := len(out)
	start := min(params.Offset(), total)
	end := min(start+params.Limit(), total)
	return out[start:end], total, nil
}

func (f *fakeEventRepo) Update(ctx context.Context, id string, u domain.EventUpdate) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if u.Capacity != nil && *u.Capacity < e.RegisteredAttendees {
		return nil, domain.ErrInsufficientCapacity
	}
	if u.Title != nil {
		e.Title = *u.Title
	}
	if u.Location != nil {
		e.Location = *u.Location
	}
	if u.Price != nil {
		e.Price = *u.Price
	}
	if u.Capacity != nil {
		e.Capacity = *u.Capacity
	}
	if u.Status != nil {
		e.Status = *u.Status
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEventRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[id]; !ok {
		return domain.ErrNotFound
	}
	for _, r := range f.regs {
		if r.EventID == id {
			return domain.ErrInvalidTransition
		}
	}
	delete(f.events, id)
	return nil
}

type fakeCategoryRepo struct {
	categories []*domain.EventCategory
	err        error
}

func (f *fakeCategoryRepo) List(ctx context.Context) ([]*domain.EventCategory, error) {
	return f.categories, f.err
}

type fakeRegistrationRepo struct {
	*memStore
}

func (f *fakeRegistrationRepo) CreateWithSeats(ctx context.Context, reg *domain.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reserve(reg.EventID, reg.Attendees); err != nil {
		return err
	}
	reg.ID = f.nextID("reg")
	cp := *reg
	f.regs[reg.ID] = &cp
	return nil
}

func (f *fakeRegistrationRepo) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRegistrationRepo) list(match func(*domain.Registration) bool) []*domain.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Registration
	for _, r := range f.regs {
		if match(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeRegistrationRepo) ListByUserID(ctx context.Context, userID string) ([]*domain.Registration, error) {
	return f.list(func(r *domain.Registration) bool { return r.UserID == userID }), nil
}

func (f *fakeRegistrationRepo) ListByEventID(ctx context.Context, eventID string) ([]*domain.Registration, error) {
	return f.list(func(r *domain.Registration) bool { return r.EventID == eventID }), nil
}

func (f *fakeRegistrationRepo) CountByEventID(ctx context.Context, eventID string) (int, error) {
	return len(f.list(func(r *domain.Registration) bool { return r.EventID == eventID })), nil
}

func (f *fakeRegistrationRepo) Cancel(ctx context.Context, id string) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if r.Status != domain.RegistrationPending || f.hasPendingPayment(id, time.Time{}) {
		return nil, domain.ErrInvalidTransition
	}
	if r.HoldsSeats() {
		f.release(r.EventID, r.Attendees)
	}
	r.Status = domain.RegistrationCancelled
	cp := *r
	return &cp, nil
}

func (f *fakeRegistrationRepo) ReopenPayment(ctx context.Context, id string) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if r.Status != domain.RegistrationPending || r.PaymentStatus != domain.PaymentStateFailed {
		return nil, domain.ErrInvalidTransition
	}
	if err := f.reserve(r.EventID, r.Attendees); err != nil {
		return nil, err
	}
	r.PaymentStatus = domain.PaymentStatePending
	cp := *r
	return &cp, nil
}

func (f *fakeRegistrationRepo) ExpirePending(ctx context.Context, olderThan time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.regs {
		if r.Status != domain.RegistrationPending || !r.CreatedAt.Before(olderThan) || f.hasPendingPayment(r.ID, olderThan) {
			continue
		}
		if r.HoldsSeats() {
			f.release(r.EventID, r.Attendees)
		}
		r.Status = domain.RegistrationCancelled
		for _, p := range f.payments {
			if p.RegistrationID == r.ID && p.Status == domain.PaymentPending {
				p.Status = domain.PaymentFailed
				p.Message = "expired before confirmation"
			}
		}
		n++
	}
	return n, nil
}

type fakePaymentRepo struct {
	*memStore
	createErr error
}

func (f *fakePaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hasPendingPayment(p.RegistrationID, time.Time{}) {
		return domain.ErrInvalidTransition
	}
	p.ID = f.nextID("pay")
	cp := *p
	f.payments[p.ID] = &cp
	return nil
}

func (f *fakePaymentRepo) reserved(ref string) (*domain.Payment, error) {
	p := f.paymentByRef(ref)
	if p == nil || p.TransactionID != "" || p.Status != domain.PaymentPending {
		return nil, domain.ErrInvalidTransition
	}
	return p, nil
}

func (f *fakePaymentRepo) AttachTransaction(ctx context.Context, ref, txID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.reserved(ref)
	if err != nil {
		return err
	}
	p.TransactionID = txID
	return nil
}

func (f *fakePaymentRepo) Abandon(ctx context.Context, ref, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.reserved(ref)
	if err != nil {
		return err
	}
	p.Status = domain.PaymentFailed
	p.Message = message
	return nil
}

func (f *fakePaymentRepo) GetByTransactionID(ctx context.Context, txID string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.paymentByTx(txID)
	if p == nil {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePaymentRepo) GetPendingByRegistrationID(ctx context.Context, regID string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.RegistrationID == regID && p.Status == domain.PaymentPending {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakePaymentRepo) ListPending(ctx context.Context) ([]*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Payment
	for _, p := range f.payments {
		if p.Status == domain.PaymentPending && p.TransactionID != "" {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) Settle(ctx context.Context, txID string, status domain.PaymentStatus, message string) (*domain.SettleResult, error) {
	if !status.Terminal() {
		return nil, domain.ErrInvalidInput
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.paymentByTx(txID)
	if p == nil {
		return nil, domain.ErrNotFound
	}
	if p.Status != domain.PaymentPending {
		cp := *p
		return &domain.SettleResult{Payment: &cp}, nil
	}
	p.Status = status
	p.Message = message
	res := &domain.SettleResult{Changed: true}
	if r, ok := f.regs[p.RegistrationID]; ok && r.Status == domain.RegistrationPending && r.PaymentStatus == domain.PaymentStatePending {
		if status == domain.PaymentSuccessful {
			r.Status = domain.RegistrationConfirmed
			r.PaymentStatus = domain.PaymentStateCompleted
		} else {
			r.PaymentStatus = domain.PaymentStateFailed
			f.release(r.EventID, r.Attendees)
		}
		cp := *r
		res.Registration = &cp
	}
	cp := *p
	res.Payment = &cp
	return res, nil
}

type fakeRoleRepo struct {
	byCode    map[string]*domain.Role
	listByUID map[string][]*domain.Role
	getErr    error
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{
		byCode: map[string]*domain.Role{
			domain.RoleAttendee: domain.NewRole("role-attendee", domain.RoleAttendee),
			domain.RoleAdmin:    domain.NewRole("role-admin", domain.RoleAdmin),
		},
		listByUID: make(map[string][]*domain.Role),
	}
}

func (f *fakeRoleRepo) GetByCode(ctx context.Context, code string) (*domain.Role, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if r, ok := f.byCode[code]; ok {
		return r, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRoleRepo) ListByUserID(ctx context.Context, userID string) ([]*domain.Role, error) {
	return f.listByUID[userID], nil
}

// fakeUserRepo implements domain.UserRepository for tests. Role assignments are mirrored
// into roles so that role listing sees them.
type fakeUserRepo struct {
	byID      map[string]*domain.User
	byEmail   map[string]*domain.User
	roles     *fakeRoleRepo
	nextID    int
	getErr    error
	updateErr error
	removed   []string
}

func newFakeUserRepo(roles *fakeRoleRepo) *fakeUserRepo {
	return &fakeUserRepo{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]*domain.User),
		roles:   roles,
	}
}

func (f *fakeUserRepo) add(u *domain.User) *domain.User {
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u
	return u
}

func (f *fakeUserRepo) Create(ctx context.Context, u *domain.User) error {
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	f.add(u)
	return nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if u, ok := f.byEmail[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if u, ok := f.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserRepo) List(ctx context.Context, params domain.PaginationParams) ([]*domain.User, int, error) {
	out := make([]*domain.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeUserRepo) Update(ctx context.Context, u *domain.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.byID[u.ID]; !ok {
		return domain.ErrUserNotFound
	}
	if existing, ok := f.byEmail[u.Email]; ok && existing.ID != u.ID {
		return domain.ErrDuplicateEmail
	}
	f.add(u)
	return nil
}

func (f *fakeUserRepo) AssignRole(ctx context.Context, userID, roleID string) error {
	if _, ok := f.byID[userID]; !ok {
		return domain.ErrUserNotFound
	}
	for _, r := range f.roles.byCode {
		if r.ID == roleID {
			f.roles.listByUID[userID] = append(f.roles.listByUID[userID], r)
		}
	}
	return nil
}

func (f *fakeUserRepo) RemoveRole(ctx context.Context, userID, roleID string) error {
	f.removed = append(f.removed, userID+":"+roleID)
	return nil
}

type fakeLoginCodeRepo struct {
	codes map[string]string
}

func (f *fakeLoginCodeRepo) Create(ctx context.Context, email, codeHash string, expiresAt time.Time) error {
	if f.codes == nil {
		f.codes = make(map[string]string)
	}
	f.codes[email] = codeHash
	return nil
}

func (f *fakeLoginCodeRepo) Consume(ctx context.Context, email, codeHash string) (bool, error) {
	if f.codes[email] != codeHash {
		return false, nil
	}
	delete(f.codes, email)
	return true, nil
}

type fakeTokenIssuer struct {
	err       error
	lastRoles []string
}

func (f *fakeTokenIssuer) Issue(userID, email string, roles []string, expiry time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.lastRoles = roles
	return "token-" + userID, nil
}

type fakeEmailService struct {
	mu        sync.Mutex
	loginCode *domain.LoginCodeEmailData
	confirmed []*domain.RegistrationConfirmedEmailData
	err       error
}

func (f *fakeEmailService) SendLoginCode(ctx context.Context, data *domain.LoginCodeEmailData) error {
	f.loginCode = data
	return f.err
}

func (f *fakeEmailService) SendRegistrationConfirmed(ctx context.Context, data *domain.RegistrationConfirmedEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, data)
	return f.err
}

// fakeGateway answers Status calls from a scripted sequence, repeating the last answer.
type fakeGateway struct {
	// hold, when set, blocks Initiate until it is closed.
	hold        chan struct{}
	mu          sync.Mutex
	txID        string
	initiateErr error
	statuses    []domain.PaymentStatusResult
	statusErr   error
	requests    []domain.PaymentRequest
	statusCalls int
}

func (f *fakeGateway) Initiate(ctx context.Context, req domain.PaymentRequest) (string, error) {
	if f.hold != nil {
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()
		<-f.hold
		return "tx-" + req.Reference, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.initiateErr != nil {
		return "", f.initiateErr
	}
	if f.txID != "" {
		return f.txID, nil
	}
	return "tx-" + req.Reference, nil
}

func (f *fakeGateway) Status(ctx context.Context, txID string, provider domain.PaymentProvider) (domain.PaymentStatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return domain.PaymentStatusResult{}, f.statusErr
	}
	if len(f.statuses) == 0 {
		return domain.PaymentStatusResult{Status: domain.PaymentPending}, nil
	}
	res := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return res, nil
}

func (f *fakeGateway) initiated() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeGateway) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []domain.RegistrationConfirmedMessage
	err  error
}

func (f *fakePublisher) PublishRegistrationConfirmed(ctx context.Context, msg domain.RegistrationConfirmedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

type fakeWatcher struct {
	watched []string
}

func (f *fakeWatcher) Watch(txID string) { f.watched = append(f.watched, txID) }

type fakeCodeRepo struct {
	codes []*domain.VerificationCode
}

func (f *fakeCodeRepo) Create(ctx context.Context, c *domain.VerificationCode) error {
	c.ID = fmt.Sprintf("code-%d", len(f.codes)+1)
	cp := *c
	f.codes = append(f.codes, &cp)
	return nil
}

func (f *fakeCodeRepo) GetLatest(ctx context.Context, regID string) (*domain.VerificationCode, error) {
	for i := len(f.codes) - 1; i >= 0; i-- {
		if f.codes[i].RegistrationID == regID {
			cp := *f.codes[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCodeRepo) MarkConsumed(ctx context.Context, id string, at time.Time) (bool, error) {
	for _, c := range f.codes {
		if c.ID == id {
			if c.ConsumedAt != nil {
				return false, nil
			}
			c.ConsumedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCodeRepo) Delete(ctx context.Context, id string) error {
	for i, c := range f.codes {
		if c.ID == id {
			f.codes = append(f.codes[:i], f.codes[i+1:]...)
			return nil
		}
	}
	return nil
}

// plainHasher stores codes with a visible prefix so tests can recover them.
type plainHasher struct{}

func (plainHasher) Hash(code string) (string, error) { return "h:" + code, nil }

func (plainHasher) Compare(hash, code string) error {
	if hash != "h:"+code {
		return errors.New("mismatch")
	}
	return nil
}

type fakeSMS struct {
	to, message string
	err         error
}

func (f *fakeSMS) Send(ctx context.Context, to, message string) error {
	f.to, f.message = to, message
	return f.err
}

type fakeLimiter struct {
	counts map[string]int
	err    error
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[key]++
	return f.counts[key] <= limit, nil
}
