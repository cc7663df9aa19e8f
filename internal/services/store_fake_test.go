package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/config"
	"github.com/bluelagoon/travel-booking-backend/internal/database"
	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// memStore is an in-memory database.Store. Row and capacity locks are real mutexes
// held until the transaction ends, and writes are undone on rollback, so services can
// be exercised concurrently the way they run against Postgres.
type memStore struct {
	mu           sync.Mutex
	packages     map[uuid.UUID]models.TravelPackage
	bookings     map[uuid.UUID]models.Booking
	travelers    map[uuid.UUID]models.Traveler
	transactions map[uuid.UUID]models.PaymentTransaction

	locks keyedLocks

	// failCommits makes the next n commits fail with a serialization failure
	failCommits int
	// refCollisions makes the next n reference lookups report the reference as taken
	refCollisions int
	commits       int

	onLockCapacity func()
	afterSum       func()
}

func newMemStore() *memStore {
	return &memStore{
		packages:     make(map[uuid.UUID]models.TravelPackage),
		bookings:     make(map[uuid.UUID]models.Booking),
		travelers:    make(map[uuid.UUID]models.Traveler),
		transactions: make(map[uuid.UUID]models.PaymentTransaction),
		locks:        keyedLocks{locks: make(map[string]*sync.Mutex)},
	}
}

var _ database.Store = (*memStore)(nil)
var _ database.Tx = (*memTx)(nil)

type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}

type memTx struct {
	s     *memStore
	held  map[string]*sync.Mutex
	undo  []func()
	order []string
}

func (tx *memTx) lock(key string) {
	if _, ok := tx.held[key]; ok {
		return
	}
	l := tx.s.locks.get(key)
	l.Lock()
	tx.held[key] = l
	tx.order = append(tx.order, key)
}

func (tx *memTx) release() {
	for i := len(tx.order) - 1; i >= 0; i-- {
		tx.held[tx.order[i]].Unlock()
	}
	tx.held = nil
	tx.order = nil
}

func (tx *memTx) rollback() {
	tx.s.mu.Lock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.s.mu.Unlock()
	tx.undo = nil
}

func (s *memStore) WithTx(ctx context.Context, fn func(tx database.Tx) error) error {
	tx := &memTx{s: s, held: make(map[string]*sync.Mutex)}
	defer tx.release()

	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}

	s.mu.Lock()
	fail := s.failCommits > 0
	if fail {
		s.failCommits--
	} else {
		s.commits++
	}
	s.mu.Unlock()
	if fail {
		tx.rollback()
		return models.ErrSerializationFailure
	}
	return nil
}

// ============================================================================
// Store reads
// ============================================================================

func (s *memStore) GetPackage(ctx context.Context, id uuid.UUID) (*models.TravelPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg, ok := s.packages[id]
	if !ok {
		return nil, models.ErrPackageNotFound
	}
	return &pkg, nil
}

func (s *memStore) SumActiveTravelers(ctx context.Context, packageID uuid.UUID, travelDate time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sumActive(packageID, travelDate), nil
}

func (s *memStore) sumActive(packageID uuid.UUID, travelDate time.Time) int {
	day := models.DateOnly(travelDate)
	total := 0
	for _, b := range s.bookings {
		if b.TravelPackageID == packageID && models.DateOnly(b.TravelDate).Equal(day) &&
			b.BookingStatus != models.BookingStatusCancelled {
			total += b.NumberOfTravelers
		}
	}
	return total
}

func (s *memStore) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, models.ErrBookingNotFound
	}
	return &b, nil
}

func (s *memStore) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.BookingReference == reference {
			return &b, nil
		}
	}
	return nil, models.ErrBookingNotFound
}

func (s *memStore) ListBookingsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if b.OwnedBy(userID) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []models.Booking{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) filterBookings(filter models.BookingFilter) []models.Booking {
	out := []models.Booking{}
	for _, b := range s.bookings {
		if filter.BookingStatus != "" && b.BookingStatus != filter.BookingStatus {
			continue
		}
		if filter.PaymentStatus != "" && b.PaymentStatus != filter.PaymentStatus {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (s *memStore) ListBookings(ctx context.Context, filter models.BookingFilter, limit, offset int) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filterBookings(filter)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []models.Booking{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CountBookings(ctx context.Context, filter models.BookingFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filterBookings(filter)), nil
}

func (s *memStore) ListTravelers(ctx context.Context, bookingID uuid.UUID) ([]models.Traveler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Traveler{}
	for _, t := range s.travelers {
		if t.BookingID == bookingID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) findTransaction(reference string) (models.PaymentTransaction, bool) {
	for _, t := range s.transactions {
		if t.TransactionReference == reference || (t.GatewayReference != nil && *t.GatewayReference == reference) {
			return t, true
		}
	}
	return models.PaymentTransaction{}, false
}

func (s *memStore) GetTransaction(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.findTransaction(reference)
	if !ok {
		return nil, models.ErrTransactionNotFound
	}
	return &t, nil
}

func (s *memStore) ListTransactions(ctx context.Context, bookingID uuid.UUID) ([]models.PaymentTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.PaymentTransaction{}
	for _, t := range s.transactions {
		if t.BookingID == bookingID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) AttachGatewayReference(ctx context.Context, transactionID uuid.UUID, gatewayReference string, response models.JSONB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[transactionID]
	if !ok {
		return models.ErrTransactionNotFound
	}
	t.GatewayReference = &gatewayReference
	t.GatewayResponse = response
	s.transactions[transactionID] = t
	return nil
}

// ============================================================================
// Tx operations
// ============================================================================

func (tx *memTx) LockCapacity(ctx context.Context, packageID uuid.UUID, travelDate time.Time) error {
	if tx.s.onLockCapacity != nil {
		tx.s.onLockCapacity()
	}
	tx.lock("capacity:" + packageID.String() + ":" + models.DateOnly(travelDate).Format(models.DateLayout))
	return nil
}

func (tx *memTx) SumActiveTravelers(ctx context.Context, packageID uuid.UUID, travelDate time.Time) (int, error) {
	tx.s.mu.Lock()
	total := tx.s.sumActive(packageID, travelDate)
	tx.s.mu.Unlock()
	if tx.s.afterSum != nil {
		tx.s.afterSum()
	}
	return total, nil
}

func (tx *memTx) takeCollision() bool {
	if tx.s.refCollisions > 0 {
		tx.s.refCollisions--
		return true
	}
	return false
}

func (tx *memTx) BookingReferenceExists(ctx context.Context, reference string) (bool, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	if tx.takeCollision() {
		return true, nil
	}
	for _, b := range tx.s.bookings {
		if b.BookingReference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) InsertBooking(ctx context.Context, booking *models.Booking) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	for _, b := range tx.s.bookings {
		if b.BookingReference == booking.BookingReference {
			return models.ErrDuplicateReference
		}
	}
	stored := *booking
	stored.Travelers = nil
	tx.s.bookings[booking.ID] = stored
	tx.undo = append(tx.undo, func() { delete(tx.s.bookings, booking.ID) })
	return nil
}

func (tx *memTx) InsertTraveler(ctx context.Context, traveler *models.Traveler) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	id := traveler.ID
	tx.s.travelers[id] = *traveler
	tx.undo = append(tx.undo, func() { delete(tx.s.travelers, id) })
	return nil
}

func (tx *memTx) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	tx.lock("booking:" + id.String())
	return tx.s.GetBooking(ctx, id)
}

func (tx *memTx) putBooking(booking *models.Booking, apply func(stored *models.Booking)) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	prev, ok := tx.s.bookings[booking.ID]
	if !ok {
		return models.ErrBookingNotFound
	}
	next := prev
	apply(&next)
	tx.s.bookings[booking.ID] = next
	tx.undo = append(tx.undo, func() { tx.s.bookings[prev.ID] = prev })
	return nil
}

func (tx *memTx) UpdateBookingLifecycle(ctx context.Context, booking *models.Booking) error {
	return tx.putBooking(booking, func(stored *models.Booking) {
		stored.BookingStatus = booking.BookingStatus
		stored.CancellationReason = booking.CancellationReason
		stored.CancelledBy = booking.CancelledBy
		stored.CancelledAt = booking.CancelledAt
		stored.ConfirmedAt = booking.ConfirmedAt
		stored.CompletedAt = booking.CompletedAt
		stored.UpdatedAt = booking.UpdatedAt
	})
}

func (tx *memTx) UpdateBookingFinancials(ctx context.Context, booking *models.Booking) error {
	return tx.putBooking(booking, func(stored *models.Booking) {
		stored.AmountPaid = booking.AmountPaid
		stored.AmountDue = booking.AmountDue
		stored.PaymentStatus = booking.PaymentStatus
		stored.UpdatedAt = booking.UpdatedAt
	})
}

func (tx *memTx) CountTravelers(ctx context.Context, bookingID uuid.UUID) (int, error) {
	travelers, err := tx.s.ListTravelers(ctx, bookingID)
	return len(travelers), err
}

func (tx *memTx) DeleteTraveler(ctx context.Context, bookingID, travelerID uuid.UUID) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	t, ok := tx.s.travelers[travelerID]
	if !ok || t.BookingID != bookingID {
		return models.ErrTravelerNotFound
	}
	delete(tx.s.travelers, travelerID)
	tx.undo = append(tx.undo, func() { tx.s.travelers[travelerID] = t })
	return nil
}

func (tx *memTx) GetTravelerForUpdate(ctx context.Context, bookingID, travelerID uuid.UUID) (*models.Traveler, error) {
	tx.lock("traveler:" + travelerID.String())
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	t, ok := tx.s.travelers[travelerID]
	if !ok || t.BookingID != bookingID {
		return nil, models.ErrTravelerNotFound
	}
	return &t, nil
}

func (tx *memTx) UpdateTraveler(ctx context.Context, traveler *models.Traveler) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	prev, ok := tx.s.travelers[traveler.ID]
	if !ok || prev.BookingID != traveler.BookingID {
		return models.ErrTravelerNotFound
	}
	tx.s.travelers[traveler.ID] = *traveler
	tx.undo = append(tx.undo, func() { tx.s.travelers[prev.ID] = prev })
	return nil
}

func (tx *memTx) TransactionReferenceExists(ctx context.Context, reference string) (bool, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	if tx.takeCollision() {
		return true, nil
	}
	_, ok := tx.s.findTransaction(reference)
	return ok, nil
}

func (tx *memTx) InsertTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	if _, ok := tx.s.findTransaction(txn.TransactionReference); ok {
		return models.ErrDuplicateReference
	}
	id := txn.ID
	tx.s.transactions[id] = *txn
	tx.undo = append(tx.undo, func() { delete(tx.s.transactions, id) })
	return nil
}

func (tx *memTx) GetTransactionForUpdate(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	found, err := tx.s.GetTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}
	tx.lock("transaction:" + found.ID.String())
	// re-read under the lock
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	t := tx.s.transactions[found.ID]
	return &t, nil
}

func (tx *memTx) UpdateTransaction(ctx context.Context, txn *models.PaymentTransaction) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	prev, ok := tx.s.transactions[txn.ID]
	if !ok {
		return models.ErrTransactionNotFound
	}
	next := *txn
	next.GatewayReference = prev.GatewayReference
	tx.s.transactions[txn.ID] = next
	tx.undo = append(tx.undo, func() { tx.s.transactions[prev.ID] = prev })
	return nil
}

func (tx *memTx) SumSettledPayments(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	total := decimal.Zero
	for _, t := range tx.s.transactions {
		if t.BookingID == bookingID && t.Status == models.TransactionStatusSuccess && t.Type != models.TransactionTypeRefund {
			total = total.Add(t.Amount)
		}
	}
	return total, nil
}

// ============================================================================
// Fixtures
// ============================================================================

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testBookingConfig() config.BookingConfig {
	return config.BookingConfig{MaxCreateAttempts: 3, MaxReferenceAttempts: 5}
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func (s *memStore) addPackage(price string, slots *int) *models.TravelPackage {
	pkg := models.TravelPackage{
		ID:             uuid.New(),
		Title:          "Zanzibar Escape",
		Destination:    "Zanzibar",
		Price:          decimal.RequireFromString(price),
		MinTravelers:   1,
		MaxTravelers:   30,
		AvailableSlots: slots,
		IsActive:       true,
		CreatedAt:      fixedNow,
		UpdatedAt:      fixedNow,
	}
	s.mu.Lock()
	s.packages[pkg.ID] = pkg
	s.mu.Unlock()
	return &pkg
}

// addBooking stores a pending booking directly, bypassing pricing
func (s *memStore) addBooking(pkg *models.TravelPackage, travelers int, total string, owner *uuid.UUID, travelDate time.Time) *models.Booking {
	amount := decimal.RequireFromString(total)
	b := models.Booking{
		ID:                uuid.New(),
		BookingReference:  "BLT-20260302-" + strings.ToUpper(uuid.NewString()[:6]),
		UserID:            owner,
		TravelPackageID:   pkg.ID,
		TravelDate:        models.DateOnly(travelDate),
		NumberOfAdults:    travelers,
		NumberOfTravelers: travelers,
		Subtotal:          amount,
		TotalAmount:       amount,
		AmountPaid:        decimal.Zero,
		AmountDue:         amount,
		PaymentStatus:     models.PaymentStatusPending,
		BookingStatus:     models.BookingStatusPending,
		CreatedAt:         fixedNow,
		UpdatedAt:         fixedNow,
	}
	s.mu.Lock()
	s.bookings[b.ID] = b
	s.mu.Unlock()
	return &b
}

func (s *memStore) booking(id uuid.UUID) models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id]
}

func (s *memStore) transactionByRef(ref string) models.PaymentTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, _ := s.findTransaction(ref)
	return t
}

// recordingAuditor keeps audit entries in memory
type recordingAuditor struct {
	mu      sync.Mutex
	entries []models.PaymentAudit
}

func (a *recordingAuditor) Log(ctx context.Context, audit *models.PaymentAudit) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *audit)
	return nil
}

func (a *recordingAuditor) count(eventType models.PaymentEventType) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.entries {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

// recordingPublisher keeps published topics in order
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.topics {
		if t == topic {
			n++
		}
	}
	return n
}
