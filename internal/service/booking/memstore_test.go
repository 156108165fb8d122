package booking

import (
	"cmp"
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/store"
)

type dayKey struct {
	provider uuid.UUID
	date     domain.Date
}

// memStore is an in-memory stand-in for the postgres repositories. It
// enforces the same slot-holder uniqueness as sessions_slot_holder_key and
// rolls transactions back on error.
type memStore struct {
	mu            sync.Mutex
	days          map[dayKey]domain.SlotSet
	bookings      map[uuid.UUID]domain.Booking
	requests      map[uuid.UUID]domain.RescheduleRequest
	packages      map[uuid.UUID]domain.ClientPackage
	notifications []domain.Notification
	providers     map[uuid.UUID]domain.Provider
	clients       map[uuid.UUID]domain.Client

	removeSlotErr error
	// txErr fails every transaction before it starts.
	txErr      error
	slotWrites int
	// holderHook runs outside the lock before each FindSlotHolder.
	holderHook func()
}

func newMemStore() *memStore {
	return &memStore{
		days:      map[dayKey]domain.SlotSet{},
		bookings:  map[uuid.UUID]domain.Booking{},
		requests:  map[uuid.UUID]domain.RescheduleRequest{},
		packages:  map[uuid.UUID]domain.ClientPackage{},
		providers: map[uuid.UUID]domain.Provider{},
		clients:   map[uuid.UUID]domain.Client{},
	}
}

func (m *memStore) addProvider(name string) domain.Provider {
	p := domain.Provider{ID: uuid.New(), FirstName: name, Email: name + "@clinic.test"}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.ID] = p
	return p
}

func (m *memStore) addClient(name string) domain.Client {
	c := domain.Client{ID: uuid.New(), FirstName: name, Email: name + "@mail.test"}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = c
	return c
}

func (m *memStore) publish(provider uuid.UUID, date domain.Date, slots ...string) {
	set := make([]domain.TimeOfDay, 0, len(slots))
	for _, s := range slots {
		set = append(set, domain.MustParseTimeOfDay(s))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days[dayKey{provider, date}] = domain.NewSlotSet(set...)
}

func (m *memStore) openSlots(provider uuid.UUID, date domain.Date) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.days[dayKey{provider, date}].Format(domain.Style24h)
}

func (m *memStore) holders(key domain.SlotKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bookings {
		if b.Key() == key && b.Status.HoldsSlot() {
			n++
		}
	}
	return n
}

func (m *memStore) bookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

// AvailabilityStore reads and slot mutations.

func (m *memStore) GetDay(ctx context.Context, providerID uuid.UUID, date domain.Date) (domain.AvailabilityDay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slots, ok := m.days[dayKey{providerID, date}]
	if !ok {
		return domain.AvailabilityDay{ProviderID: providerID, Date: date}, nil
	}
	return domain.NewAvailabilityDay(providerID, date, slots), nil
}

func (m *memStore) RemoveSlot(ctx context.Context, key domain.SlotKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slotWrites++
	if m.removeSlotErr != nil {
		return false, m.removeSlotErr
	}
	k := dayKey{key.ProviderID, key.Date}
	slots, ok := m.days[k]
	if !ok || !slots.Contains(key.Slot) {
		return false, nil
	}
	m.days[k] = slots.Without(domain.NewSlotSet(key.Slot))
	return true, nil
}

func (m *memStore) RestoreSlot(ctx context.Context, key domain.SlotKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slotWrites++
	k := dayKey{key.ProviderID, key.Date}
	m.days[k] = domain.NewSlotSet(append(append([]domain.TimeOfDay{}, m.days[k]...), key.Slot)...)
	return nil
}

// BookingRepository.

func (m *memStore) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (m *memStore) FindSlotHolder(ctx context.Context, key domain.SlotKey) (domain.Booking, error) {
	if m.holderHook != nil {
		m.holderHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.holderLocked(key, uuid.Nil); ok {
		return b, nil
	}
	return domain.Booking{}, store.ErrNotFound
}

func (m *memStore) ListHeld(ctx context.Context, providerID uuid.UUID, from, to domain.Date) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Booking
	for _, b := range m.bookings {
		if b.ProviderID == providerID && b.Status.HoldsSlot() && !b.ScheduledDate.Before(from) && !b.ScheduledDate.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memStore) ListBookings(ctx context.Context, f store.BookingFilter) ([]domain.Booking, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []domain.Booking
	for _, b := range m.bookings {
		if f.ClientID != uuid.Nil && b.ClientID != f.ClientID {
			continue
		}
		if f.ProviderID != uuid.Nil && b.ProviderID != f.ProviderID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		all = append(all, b)
	}
	slices.SortFunc(all, func(a, b domain.Booking) int {
		switch {
		case a.ScheduledDate.After(b.ScheduledDate):
			return -1
		case a.ScheduledDate.Before(b.ScheduledDate):
			return 1
		}
		return cmp.Compare(b.ScheduledMinute, a.ScheduledMinute)
	})
	total := len(all)
	start := min(f.Offset, total)
	end := min(start+f.Limit, total)
	return all[start:end], total, nil
}

func (m *memStore) GetClientPackage(ctx context.Context, id uuid.UUID) (domain.ClientPackage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packages[id]
	if !ok {
		return domain.ClientPackage{}, store.ErrNotFound
	}
	return p, nil
}

func (m *memStore) GetRescheduleRequest(ctx context.Context, id uuid.UUID) (domain.RescheduleRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return domain.RescheduleRequest{}, store.ErrNotFound
	}
	return r, nil
}

func (m *memStore) SetMeeting(ctx context.Context, bookingID uuid.UUID, meeting domain.Meeting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return store.ErrNotFound
	}
	b.MeetingURL = &meeting.URL
	b.ExternalEventID = &meeting.ExternalEventID
	m.bookings[bookingID] = b
	return nil
}

func (m *memStore) InBookingTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txErr != nil {
		return m.txErr
	}

	bookings := maps.Clone(m.bookings)
	requests := maps.Clone(m.requests)
	packages := maps.Clone(m.packages)
	notifications := len(m.notifications)

	if err := fn(ctx, memTx{m}); err != nil {
		m.bookings = bookings
		m.requests = requests
		m.packages = packages
		m.notifications = m.notifications[:notifications]
		return err
	}
	return nil
}

func (m *memStore) holderLocked(key domain.SlotKey, exclude uuid.UUID) (domain.Booking, bool) {
	for _, b := range m.bookings {
		if b.ID != exclude && b.Key() == key && b.Status.HoldsSlot() {
			return b, true
		}
	}
	return domain.Booking{}, false
}

// Directory.

func (m *memStore) GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return domain.Provider{}, store.ErrNotFound
	}
	return p, nil
}

func (m *memStore) GetClient(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return domain.Client{}, store.ErrNotFound
	}
	return c, nil
}

// memTx runs with memStore.mu held.
type memTx struct {
	m *memStore
}

func (t memTx) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, bool, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if existing, ok := t.m.bookings[b.ID]; ok {
		if !existing.SameRequest(b) {
			return domain.Booking{}, false, store.ErrIdempotencyConflict
		}
		return existing, false, nil
	}
	if _, ok := t.m.providers[b.ProviderID]; !ok {
		return domain.Booking{}, false, store.ErrNotFound
	}
	if b.Status.HoldsSlot() {
		if _, taken := t.m.holderLocked(b.Key(), uuid.Nil); taken {
			return domain.Booking{}, false, store.ErrConflict
		}
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	t.m.bookings[b.ID] = b
	return b, true, nil
}

func (t memTx) LockBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	b, ok := t.m.bookings[id]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (t memTx) UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if _, ok := t.m.bookings[b.ID]; !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	if b.Status.HoldsSlot() {
		if _, taken := t.m.holderLocked(b.Key(), b.ID); taken {
			return domain.Booking{}, store.ErrConflict
		}
	}
	b.UpdatedAt = time.Now().UTC()
	t.m.bookings[b.ID] = b
	return b, nil
}

func (t memTx) ConsumePackageSession(ctx context.Context, packageID, clientID, providerID uuid.UUID) error {
	p, ok := t.m.packages[packageID]
	if !ok || p.ClientID != clientID || p.ProviderID != providerID {
		return store.ErrNotFound
	}
	if p.RemainingSessions <= 0 {
		return store.ErrPackageExhausted
	}
	p.RemainingSessions--
	t.m.packages[packageID] = p
	return nil
}

func (t memTx) ReleasePackageSession(ctx context.Context, packageID uuid.UUID) error {
	p, ok := t.m.packages[packageID]
	if !ok {
		return nil
	}
	p.RemainingSessions = min(p.RemainingSessions+1, p.TotalSessions)
	t.m.packages[packageID] = p
	return nil
}

func (t memTx) InsertRescheduleRequest(ctx context.Context, r domain.RescheduleRequest) (domain.RescheduleRequest, error) {
	for _, existing := range t.m.requests {
		if existing.BookingID == r.BookingID && existing.Status == domain.ReschedulePending {
			return domain.RescheduleRequest{}, store.ErrConflict
		}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	t.m.requests[r.ID] = r
	return r, nil
}

func (t memTx) LockRescheduleRequest(ctx context.Context, id uuid.UUID) (domain.RescheduleRequest, error) {
	r, ok := t.m.requests[id]
	if !ok {
		return domain.RescheduleRequest{}, store.ErrNotFound
	}
	return r, nil
}

func (t memTx) UpdateRescheduleRequest(ctx context.Context, r domain.RescheduleRequest) (domain.RescheduleRequest, error) {
	if _, ok := t.m.requests[r.ID]; !ok {
		return domain.RescheduleRequest{}, store.ErrNotFound
	}
	t.m.requests[r.ID] = r
	return r, nil
}

func (t memTx) InsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	t.m.notifications = append(t.m.notifications, n)
	return n, nil
}

// recorder implements every collaborator and records what it was told.
type recorder struct {
	mu sync.Mutex

	meetingErr error
	emailErr   error
	emailBlock bool

	meetings    []domain.MeetingRequest
	emails      []string
	emailedURLs []string
	receipts    []uuid.UUID
	events      []domain.BookingEvent
	invalidated []uuid.UUID
}

func (r *recorder) collaborators() Collaborators {
	return Collaborators{Meetings: r, Notifier: r, Receipts: r, Events: r, Views: r}
}

func (r *recorder) CreateMeeting(ctx context.Context, req domain.MeetingRequest) (domain.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetings = append(r.meetings, req)
	if r.meetingErr != nil {
		return domain.Meeting{}, r.meetingErr
	}
	return domain.Meeting{URL: "https://meet.test/" + req.RequestID, ExternalEventID: "evt-" + req.RequestID}, nil
}

func (r *recorder) email(ctx context.Context, kind string, b domain.Booking) error {
	if r.emailBlock {
		<-ctx.Done()
		return ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, kind)
	if b.MeetingURL != nil {
		r.emailedURLs = append(r.emailedURLs, *b.MeetingURL)
	}
	return r.emailErr
}

func (r *recorder) BookingConfirmed(ctx context.Context, b domain.Booking, p domain.Parties) error {
	return r.email(ctx, "confirmed", b)
}

func (r *recorder) BookingCanceled(ctx context.Context, b domain.Booking, p domain.Parties) error {
	return r.email(ctx, "canceled", b)
}

func (r *recorder) BookingRescheduled(ctx context.Context, b domain.Booking, from domain.SlotKey, p domain.Parties) error {
	return r.email(ctx, "rescheduled", b)
}

func (r *recorder) RescheduleRequested(ctx context.Context, b domain.Booking, req domain.RescheduleRequest, p domain.Parties) error {
	return r.email(ctx, "reschedule_requested", b)
}

func (r *recorder) RescheduleRejected(ctx context.Context, b domain.Booking, req domain.RescheduleRequest, p domain.Parties) error {
	return r.email(ctx, "reschedule_rejected", b)
}

func (r *recorder) Issue(ctx context.Context, b domain.Booking, p domain.Parties) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts = append(r.receipts, b.ID)
	return "receipts/" + b.ID.String() + ".pdf", nil
}

func (r *recorder) Publish(ctx context.Context, ev domain.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Invalidate(ctx context.Context, providerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, providerID)
	return nil
}

func (r *recorder) emailKinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.emails...)
}

// calls counts every collaborator call seen so far.
func (r *recorder) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.meetings) + len(r.emails) + len(r.receipts) + len(r.events) + len(r.invalidated)
}

var errDown = errors.New("service down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
