package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"roombook/internal/catalog"
	"roombook/internal/identity"
	reservationserrors "roombook/internal/reservations/errors"
	"roombook/internal/reservations/events"
	"roombook/internal/reservations/validator"
	"roombook/pkg/config"
	mongotx "roombook/pkg/db/mongo"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/logger"
	"roombook/pkg/model"
)

// ────────────────────────────────────────────────
// In-memory store implementing both repositories
// ────────────────────────────────────────────────

type memoryStore struct {
	mu           sync.Mutex
	reservations map[string]*model.Reservation
	claims       map[string]string
	nextID       int

	createFunc          func(r *model.Reservation) error
	findConflictingFunc func(spaceID, date string, slotIDs []string, excludeID string) ([]*model.Reservation, error)
	conflictQueries     int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		reservations: map[string]*model.Reservation{},
		claims:       map[string]string{},
	}
}

func clone(r *model.Reservation) *model.Reservation {
	c := *r
	c.SlotIDs = append([]string(nil), r.SlotIDs...)
	return &c
}

func (m *memoryStore) put(r *model.Reservation) {
	m.reservations[r.ID] = clone(r)
	for _, c := range model.NewSlotClaims(r) {
		m.claims[c.ID] = r.ID
	}
}

func (m *memoryStore) Create(_ context.Context, r *model.Reservation) error {
	if m.createFunc != nil {
		if err := m.createFunc(r); err != nil {
			return err
		}
	}
	if r.ID == "" {
		m.nextID++
		r.ID = fmt.Sprintf("%024d", m.nextID)
	}
	m.reservations[r.ID] = clone(r)
	return nil
}

func (m *memoryStore) FindByID(_ context.Context, id string) (*model.Reservation, error) {
	r, ok := m.reservations[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	return clone(r), nil
}

func (m *memoryStore) filter(keep func(r *model.Reservation) bool) []*model.Reservation {
	out := []*model.Reservation{}
	for _, r := range m.reservations {
		if keep(r) {
			out = append(out, clone(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memoryStore) FindAll(_ context.Context) ([]*model.Reservation, error) {
	return m.filter(func(*model.Reservation) bool { return true }), nil
}

func (m *memoryStore) FindByOwner(_ context.Context, ownerEmail string) ([]*model.Reservation, error) {
	return m.filter(func(r *model.Reservation) bool { return r.OwnerEmail == ownerEmail }), nil
}

func (m *memoryStore) FindBySpace(_ context.Context, spaceID string) ([]*model.Reservation, error) {
	return m.filter(func(r *model.Reservation) bool { return r.SpaceID == spaceID }), nil
}

func (m *memoryStore) FindFutureBySpace(_ context.Context, spaceID string, fromDate string) ([]*model.Reservation, error) {
	return m.filter(func(r *model.Reservation) bool { return r.SpaceID == spaceID && r.Date >= fromDate }), nil
}

// FindConflicting returns every reservation of the space and date, a
// superset of the real conflicts, so the detector has to narrow it.
func (m *memoryStore) FindConflicting(_ context.Context, spaceID, date string, slotIDs []string, excludeID string) ([]*model.Reservation, error) {
	m.conflictQueries++
	if m.findConflictingFunc != nil {
		return m.findConflictingFunc(spaceID, date, slotIDs, excludeID)
	}
	return m.filter(func(r *model.Reservation) bool { return r.SpaceID == spaceID && r.Date == date }), nil
}

func (m *memoryStore) Update(_ context.Context, r *model.Reservation) error {
	existing, ok := m.reservations[r.ID]
	if !ok {
		return reservationserrors.ErrNotFound
	}
	updated := clone(existing)
	updated.DateTime = r.DateTime
	updated.Date = r.Date
	updated.Purpose = r.Purpose
	updated.AttendeeCount = r.AttendeeCount
	updated.SlotIDs = append([]string(nil), r.SlotIDs...)
	m.reservations[r.ID] = updated
	return nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	if _, ok := m.reservations[id]; !ok {
		return reservationserrors.ErrNotFound
	}
	delete(m.reservations, id)
	return nil
}

// ExecuteTransaction serializes callers and rolls back on error.
func (m *memoryStore) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	savedReservations := make(map[string]*model.Reservation, len(m.reservations))
	for k, v := range m.reservations {
		savedReservations[k] = clone(v)
	}
	savedClaims := make(map[string]string, len(m.claims))
	for k, v := range m.claims {
		savedClaims[k] = v
	}

	if err := fn(ctx); err != nil {
		m.reservations = savedReservations
		m.claims = savedClaims
		return err
	}
	return nil
}

func (m *memoryStore) Claim(_ context.Context, claims []model.SlotClaim) error {
	for _, c := range claims {
		if _, taken := m.claims[c.ID]; taken {
			return fmt.Errorf("%w: duplicate key %s", reservationserrors.ErrSlotConflict, c.ID)
		}
		m.claims[c.ID] = c.ReservationID
	}
	return nil
}

func (m *memoryStore) ReleaseByReservation(_ context.Context, reservationID string) error {
	for id, owner := range m.claims {
		if owner == reservationID {
			delete(m.claims, id)
		}
	}
	return nil
}

// ────────────────────────────────────────────────
// Catalog, account and publisher mocks
// ────────────────────────────────────────────────

type mockSpaceRepository struct {
	spaces map[string]*model.Space
}

func (m *mockSpaceRepository) FindSpaceByID(_ context.Context, id string) (*model.Space, error) {
	s, ok := m.spaces[id]
	if !ok {
		return nil, catalog.ErrSpaceNotFound
	}
	c := *s
	return &c, nil
}

func (m *mockSpaceRepository) UpsertSpace(_ context.Context, s *model.Space) error {
	m.spaces[s.ID] = s
	return nil
}

type mockSlotRepository struct {
	slots map[string]model.Slot
}

func (m *mockSlotRepository) FindSlotsByIDs(_ context.Context, ids []string) ([]model.Slot, error) {
	out := []model.Slot{}
	for _, id := range ids {
		if s, ok := m.slots[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSlotRepository) UpsertSlot(_ context.Context, s *model.Slot) error {
	m.slots[s.ID] = *s
	return nil
}

type mockAccountRepository struct {
	accounts map[string]*model.Account
}

func (m *mockAccountRepository) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	a, ok := m.accounts[identity.NormalizeEmail(email)]
	if !ok {
		return nil, identity.ErrAccountNotFound
	}
	return a, nil
}

func (m *mockAccountRepository) Upsert(_ context.Context, a *model.Account) error {
	m.accounts[identity.NormalizeEmail(a.Email)] = a
	return nil
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

// ────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────

var (
	// Tuesday 10 March 2026, 10:00 UTC.
	fixedNow  = time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)
	today     = "2026-03-10"
	tomorrow  = fixedNow.AddDate(0, 0, 1)
	yesterday = fixedNow.AddDate(0, 0, -1)

	requesterA = identity.NewPrincipal("a@x.com", identity.NewRoleSet(identity.RoleRequester))
	requesterB = identity.NewPrincipal("b@x.com", identity.NewRoleSet(identity.RoleRequester))
	professor  = identity.NewPrincipal("prof@x.com", identity.NewRoleSet(identity.RoleRequester))
	admin      = identity.NewPrincipal("admin@x.com", identity.NewRoleSet(identity.RoleAdmin))
	nobody     = identity.NewPrincipal("guest@x.com", identity.RoleSet{})
)

type fixture struct {
	store     *memoryStore
	spaces    *mockSpaceRepository
	slots     *mockSlotRepository
	accounts  *mockAccountRepository
	publisher *recordingPublisher
	cfg       *config.Config
	svc       ReservationService
}

func newFixture(t *testing.T, strict bool) *fixture {
	t.Helper()

	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	cfg := &config.Config{
		Log:              log,
		Location:         time.UTC,
		SlotLookupStrict: strict,
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     5 * time.Second,
	}

	f := &fixture{
		store: newMemoryStore(),
		spaces: &mockSpaceRepository{spaces: map[string]*model.Space{
			"1": {ID: "1", Name: "Room 1", Capacity: 30},
			"2": {ID: "2", Name: "Room 2", Capacity: 10},
		}},
		slots: &mockSlotRepository{slots: map[string]model.Slot{}},
		accounts: &mockAccountRepository{accounts: map[string]*model.Account{
			"a@x.com":     {ID: "u1", Name: "A", Email: "a@x.com", Roles: "ROLE_REQUESTER"},
			"b@x.com":     {ID: "u2", Name: "B", Email: "b@x.com", Roles: "ROLE_REQUESTER"},
			"prof@x.com":  {ID: "u3", Name: "Prof", Email: "prof@x.com", Roles: "ROLE_REQUESTER"},
			"admin@x.com": {ID: "u4", Name: "Admin", Email: "admin@x.com", Roles: "ROLE_ADMIN"},
		}},
		publisher: &recordingPublisher{},
		cfg:       cfg,
	}
	for i, id := range []string{"10", "a", "b", "c", "d"} {
		f.slots.slots[id] = model.Slot{ID: id, Weekday: model.Monday, Session: i + 1, StartTime: "08:00", EndTime: "09:00"}
	}

	v := validator.NewReservationValidator(log, time.UTC, func() time.Time { return fixedNow })
	f.svc = NewReservationService(f.store, f.store, f.spaces, f.slots, f.accounts, v, f.publisher, cfg)
	return f
}

func input(space string, at time.Time, attendees int, slots ...string) *model.ReservationInput {
	return &model.ReservationInput{
		SpaceID:       space,
		DateTime:      at,
		Purpose:       "Lecture",
		AttendeeCount: attendees,
		SlotIDs:       slots,
	}
}

func (f *fixture) mustCreate(t *testing.T, caller identity.Principal, in *model.ReservationInput) *model.ReservationView {
	t.Helper()
	view, err := f.svc.Create(context.Background(), caller, in)
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	return view
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if got := apperrors.CodeOf(err); got != code {
		t.Fatalf("expected %s, got %s (%v)", code, got, err)
	}
}

// ────────────────────────────────────────────────
// Create
// ────────────────────────────────────────────────

func TestCreate_Scenario(t *testing.T) {
	f := newFixture(t, false)

	view := f.mustCreate(t, professor, input("1", tomorrow, 25, "10"))

	if view.CreationDate != today {
		t.Errorf("expected creation date %s, got %s", today, view.CreationDate)
	}
	if view.Date != "2026-03-11" {
		t.Errorf("expected date 2026-03-11, got %s", view.Date)
	}
	if view.OwnerEmail != "prof@x.com" {
		t.Errorf("expected owner prof@x.com, got %s", view.OwnerEmail)
	}
	if view.Space.ID != "1" || view.Space.Capacity != 30 {
		t.Errorf("unexpected space snapshot: %+v", view.Space)
	}
	if len(view.Slots) != 1 || view.Slots[0].ID != "10" || view.Slots[0].Weekday != model.Monday {
		t.Errorf("unexpected slot snapshots: %+v", view.Slots)
	}
	if len(f.store.reservations) != 1 {
		t.Fatalf("expected 1 stored reservation, got %d", len(f.store.reservations))
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Type != events.TypeCreated {
		t.Errorf("expected one created event, got %+v", f.publisher.events)
	}

	_, err := f.svc.Create(context.Background(), requesterB, input("1", tomorrow, 5, "10"))
	expectCode(t, err, apperrors.CodeSlotConflict)
	if len(f.store.reservations) != 1 {
		t.Errorf("conflicting create must not persist, store has %d", len(f.store.reservations))
	}
}

func TestCreate_ConflictSymmetry(t *testing.T) {
	f := newFixture(t, false)

	f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a", "b"))

	_, err := f.svc.Create(context.Background(), requesterB, input("1", tomorrow, 5, "b", "c"))
	expectCode(t, err, apperrors.CodeSlotConflict)

	f.mustCreate(t, requesterB, input("1", tomorrow, 5, "c", "d"))
}

func TestCreate_SameSlotsOtherDayOrSpace(t *testing.T) {
	f := newFixture(t, false)

	f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a"))
	f.mustCreate(t, requesterB, input("1", tomorrow.AddDate(0, 0, 1), 5, "a"))
	f.mustCreate(t, requesterB, input("2", tomorrow, 5, "a"))
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		caller identity.Principal
		input  *model.ReservationInput
		code   string
	}{
		{"attendees over capacity", professor, input("1", tomorrow, 31, "10"), apperrors.CodeCapacityExceeded},
		{"zero attendees", professor, input("1", tomorrow, 0, "10"), apperrors.CodeCapacityExceeded},
		{"negative attendees", professor, input("1", tomorrow, -1, "10"), apperrors.CodeCapacityExceeded},
		{"yesterday", professor, input("1", yesterday, 10, "10"), apperrors.CodePastDate},
		{"unknown space", professor, input("99", tomorrow, 10, "10"), apperrors.CodeSpaceNotFound},
		{"unknown account", identity.NewPrincipal("ghost@x.com", identity.NewRoleSet(identity.RoleRequester)), input("1", tomorrow, 10, "10"), apperrors.CodeAccountNotFound},
		{"no booking role", nobody, input("1", tomorrow, 10, "10"), apperrors.CodeForbidden},
		{"no slots", professor, input("1", tomorrow, 10), apperrors.CodeInvalidInput},
		{"only unknown slots", professor, input("1", tomorrow, 10, "99"), apperrors.CodeSlotNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			_, err := f.svc.Create(context.Background(), tt.caller, tt.input)
			expectCode(t, err, tt.code)
			if len(f.store.reservations) != 0 || len(f.store.claims) != 0 {
				t.Errorf("failed create must not persist anything")
			}
			if len(f.publisher.events) != 0 {
				t.Errorf("failed create must not publish")
			}
		})
	}
}

func TestCreate_TodayIsAccepted(t *testing.T) {
	f := newFixture(t, false)
	earlierToday := time.Date(2026, time.March, 10, 7, 0, 0, 0, time.UTC)

	view := f.mustCreate(t, professor, input("1", earlierToday, 30, "10"))
	if view.Date != today {
		t.Errorf("expected date %s, got %s", today, view.Date)
	}
}

func TestCreate_UnknownSlotsAreDroppedByDefault(t *testing.T) {
	f := newFixture(t, false)

	view := f.mustCreate(t, professor, input("1", tomorrow, 10, "10", "99"))

	if len(view.Slots) != 1 || view.Slots[0].ID != "10" {
		t.Fatalf("expected only slot 10, got %+v", view.Slots)
	}
	stored := f.store.reservations[view.ID]
	if strings.Join(stored.SlotIDs, ",") != "10" {
		t.Errorf("expected stored slots [10], got %v", stored.SlotIDs)
	}
}

func TestCreate_UnknownSlotsRejectedWhenStrict(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.svc.Create(context.Background(), professor, input("1", tomorrow, 10, "10", "99"))
	expectCode(t, err, apperrors.CodeSlotNotFound)

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError")
	}
	missing, _ := appErr.Details["slot_ids"].([]string)
	if len(missing) != 1 || missing[0] != "99" {
		t.Errorf("expected missing [99], got %v", appErr.Details["slot_ids"])
	}
}

func TestCreate_DuplicateSlotIDsCollapse(t *testing.T) {
	f := newFixture(t, false)

	view := f.mustCreate(t, professor, input("1", tomorrow, 10, "b", "a", "b"))
	stored := f.store.reservations[view.ID]
	if strings.Join(stored.SlotIDs, ",") != "a,b" {
		t.Errorf("expected sorted unique slots [a b], got %v", stored.SlotIDs)
	}
}

func TestCreate_ClaimBackstop(t *testing.T) {
	f := newFixture(t, false)
	f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a"))

	// A stale read that misses the committed reservation still cannot
	// double book: the slot claim is already taken.
	f.store.findConflictingFunc = func(string, string, []string, string) ([]*model.Reservation, error) {
		return nil, nil
	}

	_, err := f.svc.Create(context.Background(), requesterB, input("1", tomorrow, 5, "a"))
	expectCode(t, err, apperrors.CodeSlotConflict)
	if len(f.store.reservations) != 1 {
		t.Errorf("expected rollback, store has %d reservations", len(f.store.reservations))
	}
}

func TestCreate_ConcurrentRequestsBookOnce(t *testing.T) {
	f := newFixture(t, false)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), requesterA, input("1", tomorrow, 5, "a"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		expectCode(t, err, apperrors.CodeSlotConflict)
	}
	if succeeded != 1 {
		t.Errorf("expected exactly one successful create, got %d", succeeded)
	}
}

func TestCreate_StoreFailureIsInternal(t *testing.T) {
	f := newFixture(t, false)
	f.store.createFunc = func(*model.Reservation) error {
		return errors.New("E11000 socket closed on 10.0.0.7")
	}

	_, err := f.svc.Create(context.Background(), professor, input("1", tomorrow, 10, "10"))
	expectCode(t, err, apperrors.CodeInternal)
	if strings.Contains(apperrors.AsAppError(err).Message, "10.0.0.7") {
		t.Errorf("internal error message leaks cause: %s", apperrors.AsAppError(err).Message)
	}
	if len(f.store.claims) != 0 {
		t.Errorf("expected no claims after failure")
	}
}

func TestCreate_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, false)
	f.publisher.err = errors.New("broker down")

	f.mustCreate(t, professor, input("1", tomorrow, 10, "10"))
	if len(f.store.reservations) != 1 {
		t.Errorf("reservation must be kept when publishing fails")
	}
}

// ────────────────────────────────────────────────
// Update
// ────────────────────────────────────────────────

func updateOf(at time.Time, attendees int, slots ...string) *model.ReservationUpdate {
	return &model.ReservationUpdate{
		DateTime:      at,
		Purpose:       "Updated",
		AttendeeCount: attendees,
		SlotIDs:       slots,
	}
}

func TestUpdate_SelfExclusion(t *testing.T) {
	f := newFixture(t, false)
	r1 := f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a", "b"))

	view, err := f.svc.Update(context.Background(), requesterA, r1.ID, updateOf(tomorrow, 6, "b", "a"))
	if err != nil {
		t.Fatalf("updating to the same slots must succeed, got %v", err)
	}
	if view.AttendeeCount != 6 || view.Purpose != "Updated" {
		t.Errorf("update not applied: %+v", view)
	}
}

func TestUpdate_SameDayNewTimeExcludesSelf(t *testing.T) {
	f := newFixture(t, false)
	r1 := f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a"))

	later := tomorrow.Add(2 * time.Hour)
	if _, err := f.svc.Update(context.Background(), requesterA, r1.ID, updateOf(later, 5, "a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.store.conflictQueries != 2 {
		t.Errorf("expected the changed date-time to trigger a conflict check")
	}
}

func TestUpdate_UnchangedBookingSkipsConflictCheck(t *testing.T) {
	f := newFixture(t, false)
	r1 := f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a"))
	queries := f.store.conflictQueries

	if _, err := f.svc.Update(context.Background(), requesterA, r1.ID, updateOf(tomorrow, 7, "a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.store.conflictQueries != queries {
		t.Errorf("unchanged date and slots must not be rechecked")
	}
}

func TestUpdate_ConflictWithOther(t *testing.T) {
	f := newFixture(t, false)
	r1 := f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a"))
	f.mustCreate(t, requesterB, input("1", tomorrow, 5, "c"))

	_, err := f.svc.Update(context.Background(), requesterA, r1.ID, updateOf(tomorrow, 5, "a", "c"))
	expectCode(t, err, apperrors.CodeSlotConflict)

	stored := f.store.reservations[r1.ID]
	if strings.Join(stored.SlotIDs, ",") != "a" {
		t.Errorf("failed update must leave reservation unchanged, got %v", stored.SlotIDs)
	}
}

func TestUpdate_MovesClaims(t *testing.T) {
	f := newFixture(t, false)
	r1 := f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a"))

	if _, err := f.svc.Update(context.Background(), requesterA, r1.ID, updateOf(tomorrow, 5, "b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Slot a is free again.
	f.mustCreate(t, requesterB, input("1", tomorrow, 5, "a"))
	_, err := f.svc.Create(context.Background(), requesterB, input("1", tomorrow, 5, "b"))
	expectCode(t, err, apperrors.CodeSlotConflict)
}

func TestUpdate_Validation(t *testing.T) {
	f := newFixture(t, false)
	r1 := f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a"))

	_, err := f.svc.Update(context.Background(), requesterA, r1.ID, updateOf(tomorrow, 31, "a"))
	expectCode(t, err, apperrors.CodeCapacityExceeded)

	_, err = f.svc.Update(context.Background(), requesterA, r1.ID, updateOf(yesterday, 5, "a"))
	expectCode(t, err, apperrors.CodePastDate)

	_, err = f.svc.Update(context.Background(), requesterA, "5f1d7f3b9c1e4a2b3c4d5e6f", updateOf(tomorrow, 5, "a"))
	expectCode(t, err, apperrors.CodeReservationNotFound)
}

func TestUpdate_OwnerAndCreationDateImmutable(t *testing.T) {
	f := newFixture(t, false)
	r1 := f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a"))

	view, err := f.svc.Update(context.Background(), admin, r1.ID, updateOf(tomorrow.AddDate(0, 0, 2), 5, "a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.OwnerEmail != "a@x.com" {
		t.Errorf("owner changed to %s", view.OwnerEmail)
	}
	if view.CreationDate != r1.CreationDate {
		t.Errorf("creation date changed from %s to %s", r1.CreationDate, view.CreationDate)
	}
	if view.Space.ID != "1" {
		t.Errorf("space changed to %s", view.Space.ID)
	}
}

// ────────────────────────────────────────────────
// Authorization and delete
// ────────────────────────────────────────────────

func TestAuthorization_NonOwnerForbidden(t *testing.T) {
	f := newFixture(t, false)
	r1 := f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a"))

	_, err := f.svc.Update(context.Background(), requesterB, r1.ID, updateOf(tomorrow, 5, "a"))
	expectCode(t, err, apperrors.CodeForbidden)

	err = f.svc.Delete(context.Background(), requesterB, r1.ID)
	expectCode(t, err, apperrors.CodeForbidden)

	if _, ok := f.store.reservations[r1.ID]; !ok {
		t.Fatalf("forbidden delete must not remove the reservation")
	}
}

func TestAuthorization_AdminAllowed(t *testing.T) {
	f := newFixture(t, false)
	r1 := f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a"))

	if _, err := f.svc.Update(context.Background(), admin, r1.ID, updateOf(tomorrow, 9, "a")); err != nil {
		t.Fatalf("admin update failed: %v", err)
	}
	if err := f.svc.Delete(context.Background(), admin, r1.ID); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
}

func TestAuthorization_RoleRequiredForEveryOperation(t *testing.T) {
	f := newFixture(t, false)
	r1 := f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a"))

	// An owner whose token lost its booking role is treated like anyone
	// else without one.
	ownerWithoutRole := identity.NewPrincipal("a@x.com", identity.ParseRoles("ROLE_USER"))
	ctx := context.Background()

	tests := []struct {
		name string
		call func(identity.Principal) error
	}{
		{"get by id", func(p identity.Principal) error { _, err := f.svc.GetByID(ctx, p, r1.ID); return err }},
		{"list all", func(p identity.Principal) error { _, err := f.svc.ListAll(ctx, p); return err }},
		{"list mine", func(p identity.Principal) error { _, err := f.svc.ListMine(ctx, p); return err }},
		{"list by space", func(p identity.Principal) error { _, err := f.svc.ListBySpace(ctx, p, "1"); return err }},
		{"list future by space", func(p identity.Principal) error { _, err := f.svc.ListFutureBySpace(ctx, p, "1"); return err }},
		{"update", func(p identity.Principal) error { _, err := f.svc.Update(ctx, p, r1.ID, updateOf(tomorrow, 6, "a")); return err }},
		{"delete", func(p identity.Principal) error { return f.svc.Delete(ctx, p, r1.ID) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectCode(t, tt.call(nobody), apperrors.CodeForbidden)
			expectCode(t, tt.call(ownerWithoutRole), apperrors.CodeForbidden)
		})
	}

	stored := f.store.reservations[r1.ID]
	if stored == nil {
		t.Fatalf("denied delete must not remove the reservation")
	}
	if stored.AttendeeCount != 5 {
		t.Errorf("denied update must not change the reservation, attendees = %d", stored.AttendeeCount)
	}
}

func TestDelete_RemovesReservationAndClaims(t *testing.T) {
	f := newFixture(t, false)
	r1 := f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a", "b"))

	if err := f.svc.Delete(context.Background(), requesterA, r1.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.store.reservations) != 0 || len(f.store.claims) != 0 {
		t.Fatalf("expected empty store, got %d reservations %d claims", len(f.store.reservations), len(f.store.claims))
	}
	if last := f.publisher.events[len(f.publisher.events)-1]; last.Type != events.TypeDeleted {
		t.Errorf("expected deleted event, got %s", last.Type)
	}

	_, err := f.svc.GetByID(context.Background(), requesterA, r1.ID)
	expectCode(t, err, apperrors.CodeReservationNotFound)

	f.mustCreate(t, requesterB, input("1", tomorrow, 5, "a"))
}

func TestDelete_NotFound(t *testing.T) {
	f := newFixture(t, false)

	err := f.svc.Delete(context.Background(), admin, "5f1d7f3b9c1e4a2b3c4d5e6f")
	expectCode(t, err, apperrors.CodeReservationNotFound)
}

// ────────────────────────────────────────────────
// Queries
// ────────────────────────────────────────────────

func viewIDs(views []*model.ReservationView) []string {
	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	sort.Strings(ids)
	return ids
}

func TestListBySpace_Idempotent(t *testing.T) {
	f := newFixture(t, false)
	f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a"))
	f.mustCreate(t, requesterB, input("1", tomorrow, 5, "b"))
	f.mustCreate(t, requesterB, input("2", tomorrow, 5, "a"))

	first, err := f.svc.ListBySpace(context.Background(), requesterA, "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.svc.ListBySpace(context.Background(), requesterA, "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != 2 {
		t.Fatalf("expected 2 reservations for space 1, got %d", len(first))
	}
	if strings.Join(viewIDs(first), ",") != strings.Join(viewIDs(second), ",") {
		t.Errorf("listBySpace is not idempotent: %v vs %v", viewIDs(first), viewIDs(second))
	}
	for _, v := range first {
		if v.Space.Name != "Room 1" || len(v.Slots) != 1 {
			t.Errorf("expected denormalized snapshots, got %+v", v)
		}
	}
}

func TestListBySpace_UnknownSpace(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.ListBySpace(context.Background(), requesterA, "99")
	expectCode(t, err, apperrors.CodeSpaceNotFound)

	_, err = f.svc.ListFutureBySpace(context.Background(), requesterA, "99")
	expectCode(t, err, apperrors.CodeSpaceNotFound)
}

func TestListFutureBySpace(t *testing.T) {
	f := newFixture(t, false)
	f.store.put(&model.Reservation{ID: "past", SpaceID: "1", Date: "2026-03-01", DateTime: fixedNow.AddDate(0, 0, -9), SlotIDs: []string{"a"}, OwnerEmail: "a@x.com"})
	f.store.put(&model.Reservation{ID: "today", SpaceID: "1", Date: today, DateTime: fixedNow, SlotIDs: []string{"a"}, OwnerEmail: "a@x.com"})
	f.store.put(&model.Reservation{ID: "future", SpaceID: "1", Date: "2026-04-01", DateTime: fixedNow.AddDate(0, 0, 22), SlotIDs: []string{"a"}, OwnerEmail: "a@x.com"})

	future, err := f.svc.ListFutureBySpace(context.Background(), requesterA, "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(viewIDs(future), ","); got != "future,today" {
		t.Errorf("expected [future today], got %s", got)
	}

	all, err := f.svc.ListBySpace(context.Background(), requesterA, "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 reservations, got %d", len(all))
	}
}

func TestListMine(t *testing.T) {
	f := newFixture(t, false)
	f.mustCreate(t, requesterA, input("1", tomorrow, 5, "a"))
	f.mustCreate(t, requesterB, input("1", tomorrow, 5, "b"))

	mine, err := f.svc.ListMine(context.Background(), requesterA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mine) != 1 || mine[0].OwnerEmail != "a@x.com" {
		t.Errorf("expected only a@x.com reservations, got %+v", mine)
	}

	all, err := f.svc.ListAll(context.Background(), admin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 reservations, got %d", len(all))
	}
}

func TestGetByID_SpaceRemovedFromCatalog(t *testing.T) {
	f := newFixture(t, false)
	r1 := f.mustCreate(t, requesterA, input("2", tomorrow, 5, "a"))
	delete(f.spaces.spaces, "2")

	view, err := f.svc.GetByID(context.Background(), requesterA, r1.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Space.ID != "2" {
		t.Errorf("expected space id to survive, got %+v", view.Space)
	}
}
