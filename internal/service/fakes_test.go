package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/iliyamo/showtime-seat-booking/internal/model"
	"github.com/iliyamo/showtime-seat-booking/internal/payment"
	"github.com/iliyamo/showtime-seat-booking/internal/ports"
	"github.com/iliyamo/showtime-seat-booking/internal/queue"
)

var errStorage = errors.New("storage unavailable")

// memStore is an in-memory ports.Store.  Transactions are serialized by
// one mutex and rolled back from a snapshot on error, which is enough to
// exercise the conditional-update logic of the services.
type memStore struct {
	mu       sync.Mutex
	seats    map[string][]*model.ShowtimeSeat
	bookings map[string]*model.Booking
	sessions map[string]*model.PaymentSession
	seq      map[string]int
	nextSeq  int
	audit    []model.SeatTransition

	// failTx makes the next n transactions fail before running.
	failTx int
	// lostCommit makes the next n transactions commit and then report an error.
	lostCommit int
	txCount    int
}

var _ ports.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		seats:    map[string][]*model.ShowtimeSeat{},
		bookings: map[string]*model.Booking{},
		sessions: map[string]*model.PaymentSession{},
		seq:      map[string]int{},
	}
}

// seed adds count STANDARD seats A1..A<count> priced at price.
func (s *memStore) seed(showtimeID string, count int, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 1; i <= count; i++ {
		s.seats[showtimeID] = append(s.seats[showtimeID], &model.ShowtimeSeat{
			ShowtimeID: showtimeID,
			SeatNumber: "A" + strconv.Itoa(i),
			Class:      model.SeatClassStandard,
			Status:     model.SeatAvailable,
			Price:      price,
		})
	}
}

type memSnapshot struct {
	seats    map[string][]*model.ShowtimeSeat
	bookings map[string]*model.Booking
	sessions map[string]*model.PaymentSession
	seq      map[string]int
	audit    []model.SeatTransition
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		seats:    map[string][]*model.ShowtimeSeat{},
		bookings: map[string]*model.Booking{},
		sessions: map[string]*model.PaymentSession{},
		seq:      map[string]int{},
		audit:    append([]model.SeatTransition(nil), s.audit...),
	}
	for id, rows := range s.seats {
		cp := make([]*model.ShowtimeSeat, len(rows))
		for i, r := range rows {
			row := *r
			cp[i] = &row
		}
		snap.seats[id] = cp
	}
	for id, b := range s.bookings {
		cp := *b
		snap.bookings[id] = &cp
	}
	for ref, ss := range s.sessions {
		cp := *ss
		snap.sessions[ref] = &cp
	}
	for k, v := range s.seq {
		snap.seq[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.seats, s.bookings, s.sessions, s.seq, s.audit = snap.seats, snap.bookings, snap.sessions, snap.seq, snap.audit
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++
	if s.failTx > 0 {
		s.failTx--
		return errStorage
	}
	snap := s.snapshot()
	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	if s.lostCommit > 0 {
		s.lostCommit--
		return errStorage
	}
	return nil
}

func (s *memStore) ShowtimeSeats(ctx context.Context, showtimeID string) ([]model.ShowtimeSeat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{s: s}).ShowtimeSeats(ctx, showtimeID)
}

func (s *memStore) Booking(ctx context.Context, bookingID string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memTx{s: s}).Booking(ctx, bookingID)
}

func (s *memStore) DueBookings(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*model.Booking
	for _, b := range s.bookings {
		if b.Status == model.BookingPendingPayment && !b.ExpiresAt.After(now) {
			due = append(due, b)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	var ids []string
	for _, b := range due {
		if len(ids) == limit {
			break
		}
		ids = append(ids, b.ID)
	}
	return ids, nil
}

// seat returns a copy of one seat row.
func (s *memStore) seat(showtimeID, number string) model.ShowtimeSeat {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.seats[showtimeID] {
		if r.SeatNumber == number {
			return *r
		}
	}
	return model.ShowtimeSeat{}
}

func (s *memStore) sessionCount(bookingID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ss := range s.sessions {
		if ss.BookingID == bookingID {
			n++
		}
	}
	return n
}

func (s *memStore) auditFor(bookingID string) []model.SeatTransition {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SeatTransition
	for _, t := range s.audit {
		if t.BookingID == bookingID {
			out = append(out, t)
		}
	}
	return out
}

// memTx runs with memStore.mu held.
type memTx struct {
	s *memStore
}

func (t *memTx) ShowtimeSeats(_ context.Context, showtimeID string) ([]model.ShowtimeSeat, error) {
	var out []model.ShowtimeSeat
	for _, r := range t.s.seats[showtimeID] {
		out = append(out, *r)
	}
	return out, nil
}

func (t *memTx) Booking(_ context.Context, bookingID string) (*model.Booking, error) {
	b, ok := t.s.bookings[bookingID]
	if !ok {
		return nil, model.ErrBookingNotFound
	}
	cp := *b
	cp.SeatNumbers = append([]string(nil), b.SeatNumbers...)
	return &cp, nil
}

func (t *memTx) CountSeats(_ context.Context, showtimeID string) (int, error) {
	return len(t.s.seats[showtimeID]), nil
}

func (t *memTx) SeatsByNumber(_ context.Context, showtimeID string, numbers []string) ([]model.ShowtimeSeat, error) {
	var out []model.ShowtimeSeat
	for _, n := range numbers {
		for _, r := range t.s.seats[showtimeID] {
			if r.SeatNumber == n {
				out = append(out, *r)
			}
		}
	}
	return out, nil
}

func (t *memTx) InsertSeats(_ context.Context, seats []model.ShowtimeSeat) error {
	for _, seat := range seats {
		exists := false
		for _, r := range t.s.seats[seat.ShowtimeID] {
			if r.SeatNumber == seat.SeatNumber {
				exists = true
			}
		}
		if !exists {
			row := seat
			t.s.seats[seat.ShowtimeID] = append(t.s.seats[seat.ShowtimeID], &row)
		}
	}
	return nil
}

func (t *memTx) HoldSeats(_ context.Context, showtimeID string, numbers []string, bookingID string, heldUntil, now time.Time) (int64, error) {
	want := map[string]bool{}
	for _, n := range numbers {
		want[n] = true
	}
	var n int64
	for _, r := range t.s.seats[showtimeID] {
		if want[r.SeatNumber] && r.Status == model.SeatAvailable {
			id, until := bookingID, heldUntil
			r.Status, r.HeldByBookingID, r.HeldUntil, r.UpdatedAt = model.SeatHeld, &id, &until, now
			n++
		}
	}
	return n, nil
}

func (t *memTx) moveHeld(bookingID string, to model.SeatStatus, now time.Time) int64 {
	var n int64
	for _, rows := range t.s.seats {
		for _, r := range rows {
			if r.Status == model.SeatHeld && r.HeldByBookingID != nil && *r.HeldByBookingID == bookingID {
				r.Status, r.HeldUntil, r.UpdatedAt = to, nil, now
				if to == model.SeatAvailable {
					r.HeldByBookingID = nil
				}
				n++
			}
		}
	}
	return n
}

func (t *memTx) ConfirmSeats(_ context.Context, bookingID string, now time.Time) (int64, error) {
	return t.moveHeld(bookingID, model.SeatBooked, now), nil
}

func (t *memTx) ReleaseSeats(_ context.Context, bookingID string, now time.Time) (int64, error) {
	return t.moveHeld(bookingID, model.SeatAvailable, now), nil
}

func (t *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	if _, ok := t.s.bookings[b.ID]; ok {
		return fmt.Errorf("duplicate booking %s", b.ID)
	}
	cp := *b
	t.s.bookings[b.ID] = &cp
	return nil
}

func (t *memTx) TransitionBooking(_ context.Context, bookingID string, from, to model.BookingStatus, now time.Time) (bool, error) {
	b, ok := t.s.bookings[bookingID]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	if to.Terminal() {
		at := now
		b.ResolvedAt = &at
	}
	return true, nil
}

func (t *memTx) ExpireBooking(_ context.Context, bookingID string, now time.Time) (bool, error) {
	b, ok := t.s.bookings[bookingID]
	if !ok || b.Status != model.BookingPendingPayment || b.ExpiresAt.After(now) {
		return false, nil
	}
	at := now
	b.Status, b.ResolvedAt = model.BookingExpired, &at
	return true, nil
}

func (t *memTx) SetPaymentRef(_ context.Context, bookingID, ref string) error {
	if b, ok := t.s.bookings[bookingID]; ok {
		r := ref
		b.PaymentRef = &r
	}
	return nil
}

func (t *memTx) InsertSession(_ context.Context, ss *model.PaymentSession) error {
	cp := *ss
	t.s.sessions[ss.Reference] = &cp
	t.s.nextSeq++
	t.s.seq[ss.Reference] = t.s.nextSeq
	return nil
}

func (t *memTx) SetSessionURL(_ context.Context, ref, redirectURL string) error {
	if ss, ok := t.s.sessions[ref]; ok {
		ss.RedirectURL = redirectURL
	}
	return nil
}

func (t *memTx) LatestSession(_ context.Context, bookingID string) (*model.PaymentSession, error) {
	var latest *model.PaymentSession
	for ref, ss := range t.s.sessions {
		if ss.BookingID != bookingID {
			continue
		}
		if latest == nil || t.s.seq[ref] > t.s.seq[latest.Reference] {
			latest = ss
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (t *memTx) SessionByReference(_ context.Context, ref string) (*model.PaymentSession, error) {
	ss, ok := t.s.sessions[ref]
	if !ok {
		return nil, nil
	}
	cp := *ss
	return &cp, nil
}

func (t *memTx) DeleteSessions(_ context.Context, bookingID string) error {
	for ref, ss := range t.s.sessions {
		if ss.BookingID == bookingID {
			delete(t.s.sessions, ref)
			delete(t.s.seq, ref)
		}
	}
	return nil
}

func (t *memTx) RecordTransition(_ context.Context, tr model.SeatTransition) error {
	t.s.audit = append(t.s.audit, tr)
	return nil
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memCache is an in-memory ports.AvailabilityCache.
type memCache struct {
	mu          sync.Mutex
	entries     map[string]*model.Availability
	gens        map[string]int64
	hits        int
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]*model.Availability{}, gens: map[string]int64{}}
}

func (c *memCache) Get(_ context.Context, showtimeID string) (*model.Availability, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[showtimeID]
	if ok {
		c.hits++
	}
	return a, ok
}

func (c *memCache) Generation(_ context.Context, showtimeID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[showtimeID]
}

func (c *memCache) Set(_ context.Context, a *model.Availability, gen int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[a.ShowtimeID] != gen {
		return
	}
	c.entries[a.ShowtimeID] = a
}

func (c *memCache) Invalidate(_ context.Context, showtimeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, showtimeID)
	c.gens[showtimeID]++
	c.invalidated = append(c.invalidated, showtimeID)
}

// memPublisher records published events.
type memPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	err    error
}

func (p *memPublisher) Publish(_ context.Context, ev queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *memPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// unavailableGateway fails every session request.
type unavailableGateway struct {
	*payment.VNPay
}

func (g unavailableGateway) CreateSession(ctx context.Context, req model.PaymentRequest) (string, error) {
	return "", fmt.Errorf("%w: connection refused", model.ErrPaymentProviderUnavailable)
}

// slowGateway blocks until the caller's deadline.
type slowGateway struct {
	*payment.VNPay
}

func (g slowGateway) CreateSession(ctx context.Context, req model.PaymentRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func testGateway() *payment.VNPay {
	return payment.NewVNPay(payment.VNPayConfig{
		TmnCode:    "TESTTMN1",
		HashSecret: "test-secret",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "http://localhost/payments/vnpay/return",
	})
}

// vnpCallback builds IPN parameters signed like the provider would.
func vnpCallback(g *payment.VNPay, ref string, amount int64, code string) url.Values {
	params := url.Values{}
	params.Set("vnp_TmnCode", "TESTTMN1")
	params.Set("vnp_TxnRef", ref)
	params.Set("vnp_Amount", strconv.FormatInt(amount*100, 10))
	params.Set("vnp_ResponseCode", code)
	params.Set("vnp_TransactionStatus", code)
	params.Set("vnp_TransactionNo", "1400"+ref[:4])
	params.Set("vnp_SecureHash", g.Sign(params))
	return params
}
