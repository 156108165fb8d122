package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/service/availability"
	"sessionbook/backend/internal/store"
)

var clinicZone = time.FixedZone("IST", 5*60*60+30*60)

// 2099-01-05 10:00 in the clinic zone.
func clinicNow() time.Time {
	return time.Date(2099, 1, 5, 4, 30, 0, 0, time.UTC)
}

type fixture struct {
	mem      *memStore
	rec      *recorder
	svc      *Service
	provider domain.Provider
	client   domain.Client
	date     domain.Date
}

func newFixture(t *testing.T, timeout time.Duration) fixture {
	t.Helper()
	mem := newMemStore()
	rec := &recorder{}
	f := fixture{
		mem:      mem,
		rec:      rec,
		provider: mem.addProvider("asha"),
		client:   mem.addClient("ravi"),
		date:     domain.NewDate(2099, 1, 10),
	}
	if timeout == 0 {
		timeout = time.Second
	}
	f.svc = NewService(mem, mem, availability.NewChecker(mem, mem), mem, rec.collaborators(), Options{
		Location:            clinicZone,
		Now:                 clinicNow,
		Logger:              discardLogger(),
		CollaboratorTimeout: timeout,
	})
	return f
}

func (f fixture) book(clientID uuid.UUID, slot string) (BookResult, error) {
	return f.svc.Book(context.Background(), BookInput{
		ClientID:   clientID,
		ProviderID: f.provider.ID,
		Date:       f.date,
		Slot:       slot,
		Price:      decimal.RequireFromString("1500"),
	})
}

func (f fixture) clientActor() domain.Actor {
	return domain.Actor{ID: f.client.ID, Role: domain.RoleClient}
}

func (f fixture) providerActor() domain.Actor {
	return domain.Actor{ID: f.provider.ID, Role: domain.RolePsychologist}
}

func TestBook_Scenario(t *testing.T) {
	f := newFixture(t, 0)
	f.mem.publish(f.provider.ID, f.date, "09:00", "10:00")
	other := f.mem.addClient("meera")

	res, err := f.book(f.client.ID, "09:00")
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if res.Booking.Status != domain.StatusBooked {
		t.Fatalf("status = %q, want %q", res.Booking.Status, domain.StatusBooked)
	}
	if got := strings.Join(f.mem.openSlots(f.provider.ID, f.date), ","); got != "10:00" {
		t.Fatalf("open slots = %q, want 10:00", got)
	}

	if _, err := f.book(other.ID, "09:00"); !errors.Is(err, domain.ErrSlotUnavailable) {
		t.Fatalf("second Book error = %v, want ErrSlotUnavailable", err)
	}

	out, err := f.svc.Cancel(context.Background(), CancelInput{BookingID: res.Booking.ID, Actor: f.clientActor()})
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if out.Booking.Status != domain.StatusCanceled {
		t.Fatalf("status = %q, want %q", out.Booking.Status, domain.StatusCanceled)
	}
	if got := strings.Join(f.mem.openSlots(f.provider.ID, f.date), ","); got != "09:00,10:00" {
		t.Fatalf("open slots = %q, want 09:00,10:00", got)
	}

	// Cancel then rebook on the same slot.
	again, err := f.book(other.ID, "9:00 AM")
	if err != nil {
		t.Fatalf("rebook error: %v", err)
	}
	if again.Booking.ScheduledMinute != res.Booking.ScheduledMinute {
		t.Fatalf("rebooked slot = %s, want %s", again.Booking.ScheduledMinute, res.Booking.ScheduledMinute)
	}
}

func TestBook_RunsCollaboratorsAfterCommit(t *testing.T) {
	f := newFixture(t, 0)
	f.mem.publish(f.provider.ID, f.date, "14:00")

	res, err := f.book(f.client.ID, "2:00 PM")
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if len(res.Warnings) != 0 || res.Degraded {
		t.Fatalf("warnings = %v degraded = %v", res.Warnings, res.Degraded)
	}
	if res.Booking.MeetingURL == nil || !strings.HasPrefix(*res.Booking.MeetingURL, "https://meet.test/") {
		t.Fatalf("meeting url = %v", res.Booking.MeetingURL)
	}

	stored, err := f.mem.GetBooking(context.Background(), res.Booking.ID)
	if err != nil {
		t.Fatalf("GetBooking error: %v", err)
	}
	if stored.MeetingURL == nil || *stored.MeetingURL != *res.Booking.MeetingURL {
		t.Fatalf("stored meeting url = %v", stored.MeetingURL)
	}

	if len(f.rec.meetings) != 1 {
		t.Fatalf("meetings = %d, want 1", len(f.rec.meetings))
	}
	m := f.rec.meetings[0]
	wantStart := time.Date(2099, 1, 10, 14, 0, 0, 0, clinicZone)
	if !m.Start.Equal(wantStart) || m.End.Sub(m.Start) != domain.SessionDuration {
		t.Fatalf("meeting window = %s..%s, want start %s", m.Start, m.End, wantStart)
	}
	if got := f.rec.emailKinds(); len(got) != 1 || got[0] != "confirmed" {
		t.Fatalf("emails = %v, want [confirmed]", got)
	}
	if len(f.rec.emailedURLs) != 1 {
		t.Fatalf("confirmation email did not carry the meeting link")
	}
	if len(f.rec.receipts) != 1 || len(f.rec.invalidated) != 1 {
		t.Fatalf("receipts = %d invalidated = %d", len(f.rec.receipts), len(f.rec.invalidated))
	}
	if len(f.rec.events) != 1 || f.rec.events[0].Type != domain.EventBookingCreated {
		t.Fatalf("events = %+v", f.rec.events)
	}
}

func TestBook_ConcurrentClaimsOneWinner(t *testing.T) {
	f := newFixture(t, 0)
	f.mem.publish(f.provider.ID, f.date, "11:00")

	const callers = 8
	clients := make([]domain.Client, callers)
	for i := range clients {
		clients[i] = f.mem.addClient("client")
	}

	// Every caller passes the availability check before any of them writes.
	var checked sync.WaitGroup
	checked.Add(callers)
	f.mem.holderHook = func() {
		checked.Done()
		checked.Wait()
	}

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.book(clients[i].ID, "11:00")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrSlotUnavailable):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want 1", successes)
	}
	key := domain.SlotKey{ProviderID: f.provider.ID, Date: f.date, Slot: domain.MustParseTimeOfDay("11:00")}
	if n := f.mem.holders(key); n != 1 {
		t.Fatalf("holders = %d, want 1", n)
	}
}

func TestBook_RejectsWithoutWriting(t *testing.T) {
	f := newFixture(t, 0)
	f.mem.publish(f.provider.ID, f.date, "09:00")
	f.mem.publish(f.provider.ID, domain.NewDate(2099, 1, 5), "09:00")

	tests := []struct {
		name string
		in   BookInput
		want error
	}{
		{
			name: "bad time",
			in:   BookInput{ClientID: f.client.ID, ProviderID: f.provider.ID, Date: f.date, Slot: "9h"},
			want: domain.ErrInvalidTimeFormat,
		},
		{
			name: "today",
			in:   BookInput{ClientID: f.client.ID, ProviderID: f.provider.ID, Date: domain.NewDate(2099, 1, 5), Slot: "09:00"},
			want: domain.ErrPastDate,
		},
		{
			name: "unknown provider",
			in:   BookInput{ClientID: f.client.ID, ProviderID: uuid.New(), Date: f.date, Slot: "09:00"},
			want: domain.ErrNotFound,
		},
		{
			name: "slot not published",
			in:   BookInput{ClientID: f.client.ID, ProviderID: f.provider.ID, Date: f.date, Slot: "15:00"},
			want: domain.ErrSlotUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Book(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Book error = %v, want %v", err, tt.want)
			}
			if n := f.mem.bookingCount(); n != 0 {
				t.Fatalf("bookings = %d, want 0", n)
			}
		})
	}

	_, err := f.svc.Book(context.Background(), BookInput{
		ClientID: f.client.ID, ProviderID: f.provider.ID, Date: f.date, Slot: "09:00",
		Price: decimal.NewFromInt(-1),
	})
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("negative price error = %v, want *ValidationError", err)
	}
}

func TestBook_IdempotencyKey(t *testing.T) {
	f := newFixture(t, 0)
	f.mem.publish(f.provider.ID, f.date, "09:00")

	in := BookInput{
		ClientID:       f.client.ID,
		ProviderID:     f.provider.ID,
		Date:           f.date,
		Slot:           "09:00",
		Price:          decimal.RequireFromString("1500.00"),
		PaymentID:      "pay_123",
		IdempotencyKey: "pay_123",
	}
	first, err := f.svc.Book(context.Background(), in)
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if first.Booking.ID != BookingIDForKey(f.client.ID, "pay_123") {
		t.Fatalf("id = %s, want derived from key", first.Booking.ID)
	}

	in.Slot = "9:00 AM"
	second, err := f.svc.Book(context.Background(), in)
	if err != nil {
		t.Fatalf("replay error: %v", err)
	}
	if !second.Replayed || second.Booking.ID != first.Booking.ID {
		t.Fatalf("replay = %+v", second)
	}
	if got := f.rec.emailKinds(); len(got) != 1 {
		t.Fatalf("emails = %v, want one confirmation", got)
	}

	in.Price = decimal.RequireFromString("900")
	if _, err := f.svc.Book(context.Background(), in); !errors.Is(err, store.ErrIdempotencyConflict) {
		t.Fatalf("mismatched replay error = %v, want ErrIdempotencyConflict", err)
	}
}

func TestBook_IndexFailureIsDegradedNotFatal(t *testing.T) {
	f := newFixture(t, 0)
	f.mem.publish(f.provider.ID, f.date, "09:00")
	f.mem.removeSlotErr = errDown

	res, err := f.book(f.client.ID, "09:00")
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if !res.Degraded {
		t.Fatalf("expected degraded result")
	}

	// The slot is still listed but the booking keeps it from being taken.
	other := f.mem.addClient("meera")
	if _, err := f.book(other.ID, "09:00"); !errors.Is(err, domain.ErrSlotUnavailable) {
		t.Fatalf("second Book error = %v, want ErrSlotUnavailable", err)
	}
}

func TestBook_CollaboratorFailuresAreWarnings(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)
	f.mem.publish(f.provider.ID, f.date, "09:00")
	f.rec.meetingErr = errDown
	f.rec.emailBlock = true

	res, err := f.book(f.client.ID, "09:00")
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("warnings = %v, want meeting and email", res.Warnings)
	}
	if res.Booking.MeetingURL != nil {
		t.Fatalf("meeting url = %v, want nil", *res.Booking.MeetingURL)
	}
	if len(f.rec.receipts) != 1 || len(f.rec.events) != 1 {
		t.Fatalf("other tasks did not run: receipts = %d events = %d", len(f.rec.receipts), len(f.rec.events))
	}
	if _, err := f.mem.GetBooking(context.Background(), res.Booking.ID); err != nil {
		t.Fatalf("booking not kept: %v", err)
	}
}

func TestBook_PackageCredit(t *testing.T) {
	f := newFixture(t, 0)
	f.mem.publish(f.provider.ID, f.date, "09:00", "10:00")
	pkg := domain.ClientPackage{
		ID:                uuid.New(),
		ClientID:          f.client.ID,
		ProviderID:        f.provider.ID,
		TotalSessions:     1,
		RemainingSessions: 1,
		SessionPrice:      decimal.RequireFromString("1200"),
	}
	f.mem.packages[pkg.ID] = pkg

	in := BookInput{
		ClientID:        f.client.ID,
		ProviderID:      f.provider.ID,
		Date:            f.date,
		Slot:            "09:00",
		Price:           decimal.Zero,
		ClientPackageID: &pkg.ID,
	}
	res, err := f.svc.Book(context.Background(), in)
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if !res.Booking.Price.Equal(pkg.SessionPrice) {
		t.Fatalf("price = %s, want %s", res.Booking.Price, pkg.SessionPrice)
	}
	if got := f.mem.packages[pkg.ID].RemainingSessions; got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}

	in.Slot = "10:00"
	_, err = f.svc.Book(context.Background(), in)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("exhausted package error = %v, want *ValidationError", err)
	}
	if n := f.mem.bookingCount(); n != 1 {
		t.Fatalf("bookings = %d, want 1", n)
	}

	if _, err := f.svc.Cancel(context.Background(), CancelInput{BookingID: res.Booking.ID, Actor: f.clientActor()}); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if got := f.mem.packages[pkg.ID].RemainingSessions; got != 1 {
		t.Fatalf("remaining after cancel = %d, want 1", got)
	}
}

func TestBook_PackageMustMatchProvider(t *testing.T) {
	f := newFixture(t, 0)
	f.mem.publish(f.provider.ID, f.date, "09:00")
	other := f.mem.addProvider("kavya")
	pkg := domain.ClientPackage{
		ID:                uuid.New(),
		ClientID:          f.client.ID,
		ProviderID:        other.ID,
		TotalSessions:     3,
		RemainingSessions: 3,
		SessionPrice:      decimal.RequireFromString("900"),
	}
	f.mem.packages[pkg.ID] = pkg

	_, err := f.svc.Book(context.Background(), BookInput{
		ClientID:        f.client.ID,
		ProviderID:      f.provider.ID,
		Date:            f.date,
		Slot:            "09:00",
		ClientPackageID: &pkg.ID,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Book error = %v, want ErrNotFound", err)
	}
	if n := f.mem.bookingCount(); n != 0 {
		t.Fatalf("bookings = %d, want 0", n)
	}
	if got := f.mem.packages[pkg.ID].RemainingSessions; got != 3 {
		t.Fatalf("remaining = %d, want 3", got)
	}

	// The transaction enforces the same rule on its own.
	err = f.mem.InBookingTransaction(context.Background(), func(ctx context.Context, tx store.BookingTx) error {
		return tx.ConsumePackageSession(ctx, pkg.ID, f.client.ID, f.provider.ID)
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("ConsumePackageSession error = %v, want ErrNotFound", err)
	}
}

func TestStorageFailureAbortsChanges(t *testing.T) {
	f := newFixture(t, 0)
	f.mem.publish(f.provider.ID, f.date, "09:00", "10:00", "11:00")
	res, err := f.book(f.client.ID, "09:00")
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}

	f.mem.txErr = errDown
	f.mem.slotWrites = 0
	calls := f.rec.calls()

	if _, err := f.book(f.client.ID, "10:00"); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("Book error = %v, want ErrStorageUnavailable", err)
	}
	if _, err := f.svc.Cancel(context.Background(), CancelInput{BookingID: res.Booking.ID, Actor: f.clientActor()}); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("Cancel error = %v, want ErrStorageUnavailable", err)
	}
	_, err = f.svc.Reschedule(context.Background(), RescheduleInput{
		BookingID: res.Booking.ID,
		Actor:     f.clientActor(),
		Date:      f.date,
		Slot:      "11:00",
	})
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("Reschedule error = %v, want ErrStorageUnavailable", err)
	}

	if f.mem.slotWrites != 0 {
		t.Fatalf("slot writes = %d, want 0", f.mem.slotWrites)
	}
	if got := f.rec.calls(); got != calls {
		t.Fatalf("collaborator calls = %d, want %d", got, calls)
	}
	b, _ := f.mem.GetBooking(context.Background(), res.Booking.ID)
	if b.Status != domain.StatusBooked || b.ScheduledMinute != domain.MustParseTimeOfDay("09:00") {
		t.Fatalf("booking = %+v, want unchanged", b)
	}
	if n := f.mem.bookingCount(); n != 1 {
		t.Fatalf("bookings = %d, want 1", n)
	}
}

func TestCancel_Rules(t *testing.T) {
	f := newFixture(t, 0)
	f.mem.publish(f.provider.ID, f.date, "09:00")
	res, err := f.book(f.client.ID, "09:00")
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}

	stranger := domain.Actor{ID: uuid.New(), Role: domain.RoleClient}
	if _, err := f.svc.Cancel(context.Background(), CancelInput{BookingID: res.Booking.ID, Actor: stranger}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("stranger Cancel error = %v, want ErrNotFound", err)
	}

	if _, err := f.svc.Cancel(context.Background(), CancelInput{BookingID: res.Booking.ID, Actor: f.providerActor()}); err != nil {
		t.Fatalf("provider Cancel error: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), CancelInput{BookingID: res.Booking.ID, Actor: f.clientActor()}); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("second Cancel error = %v, want ErrInvalidStateTransition", err)
	}
}

func TestCancel_OnTheDayIsRejected(t *testing.T) {
	f := newFixture(t, 0)
	f.mem.publish(f.provider.ID, f.date, "09:00")
	res, err := f.book(f.client.ID, "09:00")
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}

	f.svc.now = func() time.Time { return time.Date(2099, 1, 10, 2, 0, 0, 0, time.UTC) }
	if _, err := f.svc.Cancel(context.Background(), CancelInput{BookingID: res.Booking.ID, Actor: f.clientActor()}); !errors.Is(err, domain.ErrPastDate) {
		t.Fatalf("Cancel error = %v, want ErrPastDate", err)
	}
	b, _ := f.mem.GetBooking(context.Background(), res.Booking.ID)
	if b.Status != domain.StatusBooked {
		t.Fatalf("status = %q, want booked", b.Status)
	}
}

func TestReschedule_Direct(t *testing.T) {
	f := newFixture(t, 0)
	f.mem.publish(f.provider.ID, f.date, "09:00", "10:00")
	res, err := f.book(f.client.ID, "09:00")
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}

	out, err := f.svc.Reschedule(context.Background(), RescheduleInput{
		BookingID: res.Booking.ID,
		Actor:     f.clientActor(),
		Date:      f.date,
		Slot:      "10:00 AM",
	})
	if err != nil {
		t.Fatalf("Reschedule error: %v", err)
	}
	if out.Booking.Status != domain.StatusRescheduled || out.Booking.ScheduledMinute != domain.MustParseTimeOfDay("10:00") {
		t.Fatalf("booking = %+v", out.Booking)
	}
	if got := strings.Join(f.mem.openSlots(f.provider.ID, f.date), ","); got != "09:00" {
		t.Fatalf("open slots = %q, want 09:00", got)
	}
	last := f.rec.events[len(f.rec.events)-1]
	if last.Type != domain.EventBookingRescheduled || last.Data.PreviousTime != "09:00" {
		t.Fatalf("event = %+v", last)
	}

	// A rescheduled booking cannot be moved again directly.
	_, err = f.svc.Reschedule(context.Background(), RescheduleInput{BookingID: res.Booking.ID, Actor: f.clientActor(), Date: f.date, Slot: "09:00"})
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("second Reschedule error = %v, want ErrInvalidStateTransition", err)
	}
}

func TestRescheduleRequest_ApproveRevalidates(t *testing.T) {
	f := newFixture(t, 0)
	d2 := domain.NewDate(2099, 1, 12)
	f.mem.publish(f.provider.ID, f.date, "09:00")
	f.mem.publish(f.provider.ID, d2, "15:00")

	a, err := f.book(f.client.ID, "09:00")
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}

	req, err := f.svc.RequestReschedule(context.Background(), RequestRescheduleInput{
		BookingID: a.Booking.ID,
		Actor:     f.clientActor(),
		Date:      d2,
		Slot:      "3:00 PM",
		Reason:    "travel",
	})
	if err != nil {
		t.Fatalf("RequestReschedule error: %v", err)
	}
	if req.Booking.Status != domain.StatusRescheduleRequested || req.Request.Status != domain.ReschedulePending {
		t.Fatalf("after request: booking %q request %q", req.Booking.Status, req.Request.Status)
	}
	if len(f.mem.notifications) != 1 || f.mem.notifications[0].ProviderID != f.provider.ID {
		t.Fatalf("notifications = %+v", f.mem.notifications)
	}

	// Another client takes the proposed slot before the provider decides.
	other := f.mem.addClient("meera")
	if _, err := f.svc.Book(context.Background(), BookInput{
		ClientID: other.ID, ProviderID: f.provider.ID, Date: d2, Slot: "15:00",
	}); err != nil {
		t.Fatalf("competing Book error: %v", err)
	}

	_, err = f.svc.ApproveReschedule(context.Background(), DecideRescheduleInput{RequestID: req.Request.ID, Actor: f.providerActor()})
	if !errors.Is(err, domain.ErrSlotUnavailable) {
		t.Fatalf("Approve error = %v, want ErrSlotUnavailable", err)
	}

	b, _ := f.mem.GetBooking(context.Background(), a.Booking.ID)
	if b.ScheduledDate != f.date || b.ScheduledMinute != domain.MustParseTimeOfDay("09:00") {
		t.Fatalf("booking moved to %s %s", b.ScheduledDate, b.ScheduledMinute)
	}
	r, _ := f.mem.GetRescheduleRequest(context.Background(), req.Request.ID)
	if r.Status != domain.ReschedulePending {
		t.Fatalf("request status = %q, want pending", r.Status)
	}

	// Rejecting returns the booking to booked on its original slot.
	out, err := f.svc.RejectReschedule(context.Background(), DecideRescheduleInput{RequestID: req.Request.ID, Actor: f.providerActor(), Note: "slot gone"})
	if err != nil {
		t.Fatalf("Reject error: %v", err)
	}
	if out.Booking.Status != domain.StatusBooked || out.Request.Status != domain.RescheduleRejected {
		t.Fatalf("after reject: booking %q request %q", out.Booking.Status, out.Request.Status)
	}
	if out.Request.DecisionNote == nil || *out.Request.DecisionNote != "slot gone" {
		t.Fatalf("decision note = %v", out.Request.DecisionNote)
	}
}

func TestRescheduleRequest_Approve(t *testing.T) {
	f := newFixture(t, 0)
	d2 := domain.NewDate(2099, 1, 12)
	f.mem.publish(f.provider.ID, f.date, "09:00")
	f.mem.publish(f.provider.ID, d2, "15:00", "16:00")

	a, err := f.book(f.client.ID, "09:00")
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	req, err := f.svc.RequestReschedule(context.Background(), RequestRescheduleInput{
		BookingID: a.Booking.ID, Actor: f.clientActor(), Date: d2, Slot: "15:00",
	})
	if err != nil {
		t.Fatalf("RequestReschedule error: %v", err)
	}

	// The original slot stays held while the request is pending.
	other := f.mem.addClient("meera")
	if _, err := f.book(other.ID, "09:00"); !errors.Is(err, domain.ErrSlotUnavailable) {
		t.Fatalf("Book of pending slot error = %v, want ErrSlotUnavailable", err)
	}

	// Only the provider decides.
	if _, err := f.svc.ApproveReschedule(context.Background(), DecideRescheduleInput{RequestID: req.Request.ID, Actor: f.clientActor()}); err == nil {
		t.Fatalf("client approve succeeded")
	}

	out, err := f.svc.ApproveReschedule(context.Background(), DecideRescheduleInput{RequestID: req.Request.ID, Actor: f.providerActor()})
	if err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if out.Booking.Status != domain.StatusRescheduled || out.Booking.ScheduledDate != d2 {
		t.Fatalf("booking = %+v", out.Booking)
	}
	if out.Request.Status != domain.RescheduleApproved || out.Request.DecidedBy == nil {
		t.Fatalf("request = %+v", out.Request)
	}
	if got := strings.Join(f.mem.openSlots(f.provider.ID, f.date), ","); got != "09:00" {
		t.Fatalf("old day open = %q, want 09:00", got)
	}
	if got := strings.Join(f.mem.openSlots(f.provider.ID, d2), ","); got != "16:00" {
		t.Fatalf("new day open = %q, want 16:00", got)
	}

	if _, err := f.svc.ApproveReschedule(context.Background(), DecideRescheduleInput{RequestID: req.Request.ID, Actor: f.providerActor()}); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("second Approve error = %v, want ErrInvalidStateTransition", err)
	}
}

func TestComplete(t *testing.T) {
	f := newFixture(t, 0)
	f.mem.publish(f.provider.ID, f.date, "09:00")
	res, err := f.book(f.client.ID, "09:00")
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}

	var vErr *domain.ValidationError
	if _, err := f.svc.Complete(context.Background(), CompleteInput{BookingID: res.Booking.ID, Actor: f.clientActor()}); !errors.As(err, &vErr) {
		t.Fatalf("client Complete error = %v, want *ValidationError", err)
	}
	b, err := f.svc.Complete(context.Background(), CompleteInput{BookingID: res.Booking.ID, Actor: f.providerActor()})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if b.Status != domain.StatusCompleted {
		t.Fatalf("status = %q, want completed", b.Status)
	}
	if _, err := f.svc.Cancel(context.Background(), CancelInput{BookingID: b.ID, Actor: f.clientActor()}); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("Cancel completed error = %v, want ErrInvalidStateTransition", err)
	}
}

func TestGet(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.svc.Get(context.Background(), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	f := newFixture(t, 0)
	f.mem.publish(f.provider.ID, f.date, "09:00", "10:00", "11:00")
	other := f.mem.addClient("meera")

	first, err := f.book(f.client.ID, "09:00")
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if _, err := f.book(f.client.ID, "11:00"); err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if _, err := f.book(other.ID, "10:00"); err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), CancelInput{BookingID: first.Booking.ID, Actor: f.clientActor()}); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}

	page, err := f.svc.List(context.Background(), ListInput{Actor: f.clientActor()})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("client page = %d items of %d, want 2 of 2", len(page.Items), page.Total)
	}
	if page.Items[0].ScheduledMinute != domain.MustParseTimeOfDay("11:00") {
		t.Fatalf("first item at %s, want 11:00", page.Items[0].ScheduledMinute)
	}
	for _, b := range page.Items {
		if b.ClientID != f.client.ID {
			t.Fatalf("listed booking of client %s", b.ClientID)
		}
	}

	page, err = f.svc.List(context.Background(), ListInput{Actor: f.providerActor(), Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 1 || page.Limit != 1 {
		t.Fatalf("provider page = %+v, want 1 item of 3", page)
	}

	page, err = f.svc.List(context.Background(), ListInput{Actor: f.clientActor(), Status: domain.StatusCanceled})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if page.Total != 1 || page.Items[0].ID != first.Booking.ID {
		t.Fatalf("canceled page = %+v, want the canceled booking", page)
	}

	tests := []struct {
		name string
		in   ListInput
	}{
		{name: "admin", in: ListInput{Actor: domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}}},
		{name: "no actor", in: ListInput{Actor: domain.Actor{Role: domain.RoleClient}}},
		{name: "unknown status", in: ListInput{Actor: f.clientActor(), Status: "lost"}},
		{name: "negative offset", in: ListInput{Actor: f.clientActor(), Offset: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var vErr *domain.ValidationError
			if _, err := f.svc.List(context.Background(), tt.in); !errors.As(err, &vErr) {
				t.Fatalf("List error = %v, want *ValidationError", err)
			}
		})
	}
}
