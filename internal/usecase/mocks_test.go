package usecase

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"tractor-rental/internal/data/entity"
	"tractor-rental/internal/data/repository"
	"tractor-rental/internal/payment/provider"

	"github.com/google/uuid"
)

// In-memory fakes for the repository and coordination interfaces. Each mock
// guards its map with a mutex and supports error injection for the failure
// paths.

type mockBookingRepo struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]*entity.Booking

	CreateError     error
	TransitionError error
}

func newMockBookingRepo() *mockBookingRepo {
	return &mockBookingRepo{bookings: make(map[uuid.UUID]*entity.Booking)}
}

func (m *mockBookingRepo) Add(b *entity.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
}

func (m *mockBookingRepo) Create(ctx context.Context, booking *entity.Booking) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *booking
	m.bookings[booking.ID] = &cp
	return nil
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *mockBookingRepo) FindByReference(ctx context.Context, reference string) (*entity.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bookings {
		if b.Reference == reference {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockBookingRepo) FindByClientID(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	return m.filter(func(b *entity.Booking) bool { return b.ClientID == clientID }, limit, offset), nil
}

func (m *mockBookingRepo) CountByClientID(ctx context.Context, clientID uuid.UUID) (int64, error) {
	return int64(len(m.filter(func(b *entity.Booking) bool { return b.ClientID == clientID }, 0, 0))), nil
}

func (m *mockBookingRepo) FindByOwnerID(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	return m.filter(func(b *entity.Booking) bool { return b.OwnerID == ownerID }, limit, offset), nil
}

func (m *mockBookingRepo) CountByOwnerID(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	return int64(len(m.filter(func(b *entity.Booking) bool { return b.OwnerID == ownerID }, 0, 0))), nil
}

func (m *mockBookingRepo) filter(keep func(*entity.Booking) bool, limit, offset int) []*entity.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*entity.Booking
	for _, b := range m.bookings {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset > 0 {
		if offset >= len(out) {
			return nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *mockBookingRepo) TransitionStatus(ctx context.Context, bookingID uuid.UUID, expected, next entity.BookingStatus, change entity.StatusChange, cancellation *entity.Cancellation) (bool, error) {
	if m.TransitionError != nil {
		return false, m.TransitionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok || b.Status != expected {
		return false, nil
	}
	b.Status = next
	b.StatusHistory = append(b.StatusHistory, change)
	if cancellation != nil {
		b.Cancellation = cancellation
	}
	b.UpdatedAt = change.ChangedAt
	return true, nil
}

func (m *mockBookingRepo) UpdatePaymentMirror(ctx context.Context, bookingID uuid.UUID, method entity.PaymentMethod, status entity.PaymentStatus, paymentRef *string, paidAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil
	}
	b.PaymentMethod = method
	b.PaymentStatus = status
	b.PaymentRef = paymentRef
	b.PaidAt = paidAt
	return nil
}

func (m *mockBookingRepo) CountByStatus(ctx context.Context) (map[entity.BookingStatus]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[entity.BookingStatus]int64)
	for _, b := range m.bookings {
		out[b.Status]++
	}
	return out, nil
}

func (m *mockBookingRepo) SumCompletedAmounts(ctx context.Context) (int64, int64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total, commission, earnings int64
	for _, b := range m.bookings {
		if b.Status == entity.BookingStatusCompleted {
			total += b.TotalPrice
			commission += b.Commission
			earnings += b.OwnerEarnings
		}
	}
	return total, commission, earnings, nil
}

type mockPaymentRepo struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*entity.Payment

	CreateError error
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[uuid.UUID]*entity.Payment)}
}

func (m *mockPaymentRepo) Add(p *entity.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p
}

func (m *mockPaymentRepo) CreateExclusive(ctx context.Context, payment *entity.Payment) (bool, error) {
	if m.CreateError != nil {
		return false, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.BookingID == payment.BookingID && p.Status.IsActive() {
			return false, nil
		}
	}
	cp := *payment
	m.payments[payment.ID] = &cp
	return true, nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockPaymentRepo) FindByReference(ctx context.Context, reference string) (*entity.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.Reference == reference {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockPaymentRepo) FindActiveByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.BookingID == bookingID && p.Status.IsActive() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockPaymentRepo) FindByProviderRef(ctx context.Context, providerRef string) (*entity.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.ProviderData.ProviderRef == providerRef || p.ProviderData.TransactionID == providerRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockPaymentRepo) MarkCompleted(ctx context.Context, paymentID uuid.UUID, paidAt time.Time, data entity.ProviderData, change entity.StatusChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok || (p.Status != entity.PaymentStatusPending && p.Status != entity.PaymentStatusProcessing) {
		return false, nil
	}
	p.Status = entity.PaymentStatusCompleted
	p.PaidAt = &paidAt
	p.ProviderData = data
	p.StatusHistory = append(p.StatusHistory, change)
	return true, nil
}

func (m *mockPaymentRepo) MarkFailed(ctx context.Context, paymentID uuid.UUID, data entity.ProviderData, change entity.StatusChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok || (p.Status != entity.PaymentStatusPending && p.Status != entity.PaymentStatusProcessing) {
		return false, nil
	}
	p.Status = entity.PaymentStatusFailed
	p.ProviderData = data
	p.StatusHistory = append(p.StatusHistory, change)
	return true, nil
}

func (m *mockPaymentRepo) MarkRefunded(ctx context.Context, paymentID uuid.UUID, refund entity.Refund, change entity.StatusChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok || p.Status != entity.PaymentStatusCompleted {
		return false, nil
	}
	p.Status = entity.PaymentStatusRefunded
	p.Refund = &refund
	p.StatusHistory = append(p.StatusHistory, change)
	return true, nil
}

func (m *mockPaymentRepo) FindStalePending(ctx context.Context, before time.Time) ([]*entity.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*entity.Payment
	for _, p := range m.payments {
		if p.Status == entity.PaymentStatusPending && p.CreatedAt.Before(before) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockTractorRepo struct {
	mu       sync.RWMutex
	tractors map[uuid.UUID]*entity.Tractor

	AddRangeError error

	// AddRangeHook runs before a range is appended, so tests can inject
	// an operation into the middle of an acceptance.
	AddRangeHook func()
}

func newMockTractorRepo() *mockTractorRepo {
	return &mockTractorRepo{tractors: make(map[uuid.UUID]*entity.Tractor)}
}

func (m *mockTractorRepo) Add(t *entity.Tractor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tractors[t.ID] = t
}

func (m *mockTractorRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Tractor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tractors[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	cp.BlockedRanges = append([]entity.DateRange(nil), t.BlockedRanges...)
	return &cp, nil
}

func (m *mockTractorRepo) AddBlockedRange(ctx context.Context, tractorID uuid.UUID, r entity.DateRange) error {
	if m.AddRangeError != nil {
		return m.AddRangeError
	}
	if m.AddRangeHook != nil {
		m.AddRangeHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tractors[tractorID]
	if !ok {
		return nil
	}
	t.BlockedRanges = append(t.BlockedRanges, r)
	return nil
}

func (m *mockTractorRepo) RemoveBlockedRange(ctx context.Context, tractorID, bookingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tractors[tractorID]
	if !ok {
		return nil
	}
	kept := t.BlockedRanges[:0]
	for _, r := range t.BlockedRanges {
		if r.BookingID != bookingID {
			kept = append(kept, r)
		}
	}
	t.BlockedRanges = kept
	return nil
}

func (m *mockTractorRepo) IncrementStats(ctx context.Context, tractorID uuid.UUID, earnings int64, hectares float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tractors[tractorID]
	if !ok {
		return nil
	}
	t.TotalBookings++
	t.TotalEarnings += earnings
	t.TotalHectares += hectares
	return nil
}

type mockUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*entity.User

	FindError error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*entity.User)}
}

func (m *mockUserRepo) Add(u *entity.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *mockUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	if m.FindError != nil {
		return nil, m.FindError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

type mockNotificationRepo struct {
	mu            sync.RWMutex
	notifications []*entity.Notification
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

func (m *mockNotificationRepo) Create(ctx context.Context, notification *entity.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, notification)
	return nil
}

func (m *mockNotificationRepo) FindByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*entity.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id uuid.UUID) error {
	return nil
}

// recordingNotifier captures notification calls synchronously so tests can
// assert on them without racing a worker goroutine.
type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedNotification
}

type recordedNotification struct {
	UserID uuid.UUID
	Type   entity.NotificationType
}

func (n *recordingNotifier) Notify(userID uuid.UUID, ntype entity.NotificationType, title, message string, refs entity.NotificationRefs) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedNotification{UserID: userID, Type: ntype})
}

func (n *recordingNotifier) count(ntype entity.NotificationType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Type == ntype {
			c++
		}
	}
	return c
}

// mockLocker mimics a SetNX lease: a second acquire on a held key is denied.
type mockLocker struct {
	Denied       bool
	AcquireError error

	mu       sync.Mutex
	held     map[string]bool
	acquired int
	released int
}

func (l *mockLocker) AcquireTractorLock(ctx context.Context, tractorID string, ttl time.Duration) (bool, error) {
	if l.AcquireError != nil {
		return false, l.AcquireError
	}
	if l.Denied {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.held[tractorID] {
		return false, nil
	}
	l.held[tractorID] = true
	l.acquired++
	return true, nil
}

func (l *mockLocker) ReleaseTractorLock(ctx context.Context, tractorID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, tractorID)
	l.released++
	return nil
}

type mockDeduper struct {
	mu   sync.Mutex
	seen map[string]bool

	MarkError error
}

func newMockDeduper() *mockDeduper {
	return &mockDeduper{seen: make(map[string]bool)}
}

func (d *mockDeduper) MarkEvent(ctx context.Context, providerName, eventID string, ttl time.Duration) (bool, error) {
	if d.MarkError != nil {
		return false, d.MarkError
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key := providerName + ":" + eventID
	if d.seen[key] {
		return true, nil
	}
	d.seen[key] = true
	return false, nil
}

// mockAdapter is a scriptable payment gateway.
type mockAdapter struct {
	method entity.PaymentMethod

	InitiateResult *provider.InitiateResult
	InitiateError  error
	StatusResult   *provider.StatusResult
	StatusError    error

	// InitiateHook runs inside the gateway call, before it returns.
	InitiateHook func()

	mu            sync.Mutex
	initiateCalls int
	statusCalls   int
}

func (a *mockAdapter) Method() entity.PaymentMethod { return a.method }

func (a *mockAdapter) Initiate(ctx context.Context, req provider.InitiateRequest) (*provider.InitiateResult, error) {
	a.mu.Lock()
	a.initiateCalls++
	a.mu.Unlock()
	if a.InitiateHook != nil {
		a.InitiateHook()
	}
	if a.InitiateError != nil {
		return nil, a.InitiateError
	}
	if a.InitiateResult != nil {
		return a.InitiateResult, nil
	}
	return &provider.InitiateResult{TransactionID: "TXN-" + req.Reference, ProviderRef: "REF-" + req.Reference}, nil
}

func (a *mockAdapter) CheckStatus(ctx context.Context, providerRef string) (*provider.StatusResult, error) {
	a.mu.Lock()
	a.statusCalls++
	a.mu.Unlock()
	if a.StatusError != nil {
		return nil, a.StatusError
	}
	if a.StatusResult != nil {
		return a.StatusResult, nil
	}
	return &provider.StatusResult{Status: provider.StatusPending}, nil
}

// okVerifier accepts every payload.
type okVerifier struct{}

func (okVerifier) Verify(header http.Header, body []byte) error { return nil }

func newTestRepository(b *mockBookingRepo, p *mockPaymentRepo, t *mockTractorRepo, u *mockUserRepo, n *mockNotificationRepo) *repository.Repository {
	return &repository.Repository{
		User:         u,
		Tractor:      t,
		Booking:      b,
		Payment:      p,
		Notification: n,
	}
}
