package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"ridedispatch/internal/domain"
	"ridedispatch/internal/redis"
	"ridedispatch/internal/repository"
	"ridedispatch/internal/service"
)

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is an in-memory BookingRepository. Every conditional
// write runs under one mutex, which gives it the same atomicity the real
// stores get from a single conditional statement.
type MockBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking

	// Counters for verification
	TryAssignCallCount    int32
	UpdateStatusCallCount int32

	// Error injection
	CreateError       error
	GetError          error
	UpdateStatusError error

	// BeforeUpdateStatus runs ahead of every conditional status write, with
	// the lock released, so tests can slip a competing write in.
	BeforeUpdateStatus func(id string)
}

// NewMockBookingRepository creates a new mock booking repository.
func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{
		bookings: make(map[string]*domain.Booking),
	}
}

func cloneBooking(b *domain.Booking) *domain.Booking {
	c := *b
	c.DeclinedDrivers = append([]string{}, b.DeclinedDrivers...)
	return &c
}

// stamp never moves updatedAt backwards, like the real stores.
func stamp(b *domain.Booking, at time.Time) {
	if at.After(b.UpdatedAt) {
		b.UpdatedAt = at
	}
}

// AddBooking seeds a booking.
func (m *MockBookingRepository) AddBooking(b *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = cloneBooking(b)
}

// GetBooking returns the stored booking for test assertions.
func (m *MockBookingRepository) GetBooking(id string) *domain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil
	}
	return cloneBooking(b)
}

func (m *MockBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (m *MockBookingRepository) list(match func(*domain.Booking) bool) []*domain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Booking
	for _, b := range m.bookings {
		if match(b) {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MockBookingRepository) ListByRequester(ctx context.Context, requesterID string) ([]*domain.Booking, error) {
	return m.list(func(b *domain.Booking) bool { return b.RequesterID == requesterID }), nil
}

func (m *MockBookingRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Booking, error) {
	return m.list(func(b *domain.Booking) bool { return b.AssignedDriverID == driverID }), nil
}

func (m *MockBookingRepository) ListAll(ctx context.Context) ([]*domain.Booking, error) {
	return m.list(func(*domain.Booking) bool { return true }), nil
}

func (m *MockBookingRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Booking, error) {
	out := m.list(func(b *domain.Booking) bool {
		return b.Status == domain.BookingStatusPending && b.CreatedAt.Before(cutoff)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockBookingRepository) TryAssignDriver(ctx context.Context, id, driverID string, at time.Time) (*domain.Booking, error) {
	atomic.AddInt32(&m.TryAssignCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != domain.BookingStatusPending || b.RequesterID == driverID || b.HasDeclined(driverID) {
		return nil, repository.ErrConflict
	}
	b.Status = domain.BookingStatusConfirmed
	b.AssignedDriverID = driverID
	stamp(b, at)
	return cloneBooking(b), nil
}

func (m *MockBookingRepository) AddDeclined(ctx context.Context, id, driverID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if b.Status != domain.BookingStatusPending || b.HasDeclined(driverID) {
		return false, nil
	}
	b.DeclinedDrivers = append(b.DeclinedDrivers, driverID)
	stamp(b, at)
	return true, nil
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, id string, from, to domain.BookingStatus, at time.Time) (*domain.Booking, error) {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return nil, m.UpdateStatusError
	}
	if m.BeforeUpdateStatus != nil {
		m.BeforeUpdateStatus(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != from {
		return nil, repository.ErrConflict
	}
	b.Status = to
	stamp(b, at)
	return cloneBooking(b), nil
}

// ForceStatus overwrites the status without any checks.
func (m *MockBookingRepository) ForceStatus(id string, status domain.BookingStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		b.Status = status
	}
}

func (m *MockBookingRepository) CountByStatus(ctx context.Context, filter repository.BookingFilter) (map[domain.BookingStatus]int, error) {
	counts := make(map[domain.BookingStatus]int)
	for _, b := range m.list(func(b *domain.Booking) bool {
		return (filter.RequesterID == "" || b.RequesterID == filter.RequesterID) &&
			(filter.DriverID == "" || b.AssignedDriverID == filter.DriverID)
	}) {
		counts[b.Status]++
	}
	return counts, nil
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	GetByIDCallCount int32

	// Error injection
	ListAvailableError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *driver
	m.drivers[driver.ID] = &copy
}

func (m *MockDriverRepository) Upsert(ctx context.Context, driver *domain.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *driver
	if existing, ok := m.drivers[driver.ID]; ok {
		copy.Available = existing.Available
	}
	m.drivers[driver.ID] = &copy
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	atomic.AddInt32(&m.GetByIDCallCount, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) ListAvailable(ctx context.Context) ([]*domain.Driver, error) {
	if m.ListAvailableError != nil {
		return nil, m.ListAvailableError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Driver
	for _, d := range m.drivers {
		if d.Available {
			copy := *d
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockDriverRepository) SetAvailability(ctx context.Context, id string, available bool) (*domain.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	driver.Available = available
	driver.UpdatedAt = time.Now().UTC()
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) ToggleAvailability(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	driver.Available = !driver.Available
	driver.UpdatedAt = time.Now().UTC()
	copy := *driver
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK CHAT REPOSITORY
// ──────────────────────────────────────────────

// MockChatRepository is a mock implementation of ChatRepository.
type MockChatRepository struct {
	mu       sync.Mutex
	messages []*domain.ChatMessage

	CreateError error
}

// NewMockChatRepository creates a new mock chat repository.
func NewMockChatRepository() *MockChatRepository {
	return &MockChatRepository{}
}

func (m *MockChatRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *msg
	m.messages = append(m.messages, &copy)
	return nil
}

func (m *MockChatRepository) ListByBooking(ctx context.Context, bookingID string) ([]*domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ChatMessage
	for _, msg := range m.messages {
		if msg.BookingID == bookingID {
			copy := *msg
			out = append(out, &copy)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MockChatRepository) MarkRead(ctx context.Context, bookingID, recipientID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.BookingID == bookingID && msg.RecipientID == recipientID && msg.ReadAt == nil {
			stamp := at
			msg.ReadAt = &stamp
			n++
		}
	}
	return n, nil
}

func (m *MockChatRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.RecipientID == recipientID && msg.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

// Count returns the number of stored messages.
func (m *MockChatRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// ──────────────────────────────────────────────
// MOCK DRIVER CACHE
// ──────────────────────────────────────────────

// MockDriverCache is an in-memory redis.DriverCache.
type MockDriverCache struct {
	mu      sync.Mutex
	drivers map[string]*redis.CachedDriver

	Hits          int32
	Invalidations int32
	GetError      error
}

// NewMockDriverCache creates a new mock cache.
func NewMockDriverCache() *MockDriverCache {
	return &MockDriverCache{drivers: make(map[string]*redis.CachedDriver)}
}

func (m *MockDriverCache) GetDriver(ctx context.Context, driverID string) (*redis.CachedDriver, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return nil, nil
	}
	atomic.AddInt32(&m.Hits, 1)
	copy := *d
	return &copy, nil
}

func (m *MockDriverCache) SetDriver(ctx context.Context, driver *redis.CachedDriver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *driver
	m.drivers[driver.ID] = &copy
	return nil
}

func (m *MockDriverCache) InvalidateDriver(ctx context.Context, driverID string) error {
	atomic.AddInt32(&m.Invalidations, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, driverID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-memory redis.Locker.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]string
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]string)}
}

func (m *MockLockStore) Acquire(ctx context.Context, name string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[name]; held {
		return "", nil
	}
	token := uuid.NewString()
	m.locks[name] = token
	return token, nil
}

func (m *MockLockStore) Release(ctx context.Context, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[name] == token {
		delete(m.locks, name)
	}
	return nil
}

// Hold takes the named lock on behalf of another instance.
func (m *MockLockStore) Hold(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[name] = "other-instance"
}

// IsLocked reports whether name is held.
func (m *MockLockStore) IsLocked(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locks[name]
	return ok
}

// ──────────────────────────────────────────────
// RECORDING PUBLISHER
// ──────────────────────────────────────────────

// Emission is one call on the realtime publisher. Room is empty for
// broadcasts.
type Emission struct {
	Broadcast bool
	Room      string
	Event     string
	Payload   any
}

// RecordingPublisher records every realtime emission.
type RecordingPublisher struct {
	mu        sync.Mutex
	emissions []Emission

	PublishError   error
	BroadcastError error
}

// NewRecordingPublisher creates a new recording publisher.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) Publish(ctx context.Context, room, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emissions = append(p.emissions, Emission{Room: room, Event: event, Payload: payload})
	return p.PublishError
}

func (p *RecordingPublisher) Broadcast(ctx context.Context, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emissions = append(p.emissions, Emission{Broadcast: true, Event: event, Payload: payload})
	return p.BroadcastError
}

// Emissions returns a copy of everything recorded so far.
func (p *RecordingPublisher) Emissions() []Emission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Emission(nil), p.emissions...)
}

// ByEvent returns the emissions of one event name.
func (p *RecordingPublisher) ByEvent(event string) []Emission {
	var out []Emission
	for _, e := range p.Emissions() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets recorded emissions.
func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emissions = nil
}

// ──────────────────────────────────────────────
// RECORDING NOTIFIER
// ──────────────────────────────────────────────

// RecordingNotifier records notifications and can be told to fail.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []service.Notification

	Err error
}

// NewRecordingNotifier creates a new recording notifier.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) Notify(ctx context.Context, msg service.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.Err
}

// Sent returns a copy of every notification received.
func (n *RecordingNotifier) Sent() []service.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]service.Notification(nil), n.sent...)
}

// For returns the notifications addressed to recipient.
func (n *RecordingNotifier) For(recipient string) []service.Notification {
	var out []service.Notification
	for _, msg := range n.Sent() {
		if msg.RecipientID == recipient {
			out = append(out, msg)
		}
	}
	return out
}

// ──────────────────────────────────────────────
// MOCK RESPONSE CACHE
// ──────────────────────────────────────────────

// MockResponseCache is an in-memory middleware.ResponseCache.
type MockResponseCache struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMockResponseCache creates a new mock response cache.
func NewMockResponseCache() *MockResponseCache {
	return &MockResponseCache{values: make(map[string]string)}
}

func (m *MockResponseCache) Get(ctx context.Context, key string) *goredis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (m *MockResponseCache) Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	case string:
		m.values[key] = v
	}
	return goredis.NewStatusResult("OK", nil)
}

// Len returns the number of cached responses.
func (m *MockResponseCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
