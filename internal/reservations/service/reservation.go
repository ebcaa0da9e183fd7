package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"roombook/internal/catalog"
	"roombook/internal/identity"
	"roombook/internal/reservations/conflict"
	reservationserrors "roombook/internal/reservations/errors"
	"roombook/internal/reservations/events"
	"roombook/internal/reservations/repository"
	"roombook/internal/reservations/validator"
	"roombook/pkg/config"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
)

const publishTimeout = 5 * time.Second

type ReservationService interface {
	Create(ctx context.Context, caller identity.Principal, input *model.ReservationInput) (*model.ReservationView, error)
	Update(ctx context.Context, caller identity.Principal, id string, update *model.ReservationUpdate) (*model.ReservationView, error)
	Delete(ctx context.Context, caller identity.Principal, id string) error
	GetByID(ctx context.Context, caller identity.Principal, id string) (*model.ReservationView, error)
	ListAll(ctx context.Context, caller identity.Principal) ([]*model.ReservationView, error)
	ListMine(ctx context.Context, caller identity.Principal) ([]*model.ReservationView, error)
	ListBySpace(ctx context.Context, caller identity.Principal, spaceID string) ([]*model.ReservationView, error)
	ListFutureBySpace(ctx context.Context, caller identity.Principal, spaceID string) ([]*model.ReservationView, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	claims    repository.SlotClaimRepository
	spaces    catalog.SpaceRepository
	slots     catalog.SlotRepository
	accounts  identity.AccountRepository
	validator *validator.ReservationValidator
	detector  *conflict.Detector
	publisher events.Publisher
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	claims repository.SlotClaimRepository,
	spaces catalog.SpaceRepository,
	slots catalog.SlotRepository,
	accounts identity.AccountRepository,
	validator *validator.ReservationValidator,
	publisher events.Publisher,
	cfg *config.Config,
) ReservationService {
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	return &reservationService{
		repo:      repo,
		claims:    claims,
		spaces:    spaces,
		slots:     slots,
		accounts:  accounts,
		validator: validator,
		detector:  conflict.NewDetector(repo),
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *reservationService) Create(ctx context.Context, caller identity.Principal, input *model.ReservationInput) (*model.ReservationView, error) {
	if err := s.authorizeRole(caller, "create"); err != nil {
		return nil, err
	}

	s.sanitizeInput(input)
	if err := s.validator.Validate(input); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "caller", caller.Email, "error", err)
		return nil, err
	}

	space, err := s.resolveSpace(ctx, input.SpaceID)
	if err != nil {
		return nil, err
	}
	slots, err := s.resolveSlots(ctx, input.SlotIDs)
	if err != nil {
		return nil, err
	}
	account, err := s.resolveAccount(ctx, caller.Email)
	if err != nil {
		return nil, err
	}
	if err := s.validateRules(input.DateTime, input.AttendeeCount, space); err != nil {
		s.cfg.Log.Warn("Reservation rejected", "space_id", space.ID, "caller", caller.Email, "error", err)
		return nil, err
	}

	reservation := &model.Reservation{
		ID:            repository.NewReservationID(),
		DateTime:      input.DateTime,
		Date:          s.validator.DayOf(input.DateTime),
		Purpose:       input.Purpose,
		AttendeeCount: input.AttendeeCount,
		CreationDate:  s.validator.Today(),
		SpaceID:       space.ID,
		SlotIDs:       slotIDsOf(slots),
		OwnerEmail:    identity.NormalizeEmail(account.Email),
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.ensureNoConflicts(txCtx, reservation, ""); err != nil {
			return err
		}
		if err := s.repo.Create(txCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}
		return s.claimSlots(txCtx, reservation)
	})
	if err != nil {
		s.logFailure("Failed to create reservation", err, "space_id", space.ID, "date", reservation.Date, "caller", caller.Email)
		return nil, err
	}

	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"space_id", reservation.SpaceID,
		"date", reservation.Date,
		"slot_ids", reservation.SlotIDs,
		"owner", reservation.OwnerEmail,
	)
	s.publish(ctx, events.TypeCreated, reservation, caller)

	return model.NewReservationView(reservation, space, slots), nil
}

func (s *reservationService) Update(ctx context.Context, caller identity.Principal, id string, update *model.ReservationUpdate) (*model.ReservationView, error) {
	id = sanitizer.NormalizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	if err := s.authorizeRole(caller, "update"); err != nil {
		return nil, err
	}

	existing, err := s.findReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanMutate(existing.OwnerEmail) {
		s.cfg.Log.Warn("Reservation update denied", "id", id, "caller", caller.Email, "owner", existing.OwnerEmail)
		return nil, apperrors.Forbidden("Only the owner or an administrator can modify this reservation")
	}

	s.sanitizeUpdate(update)
	if err := s.validator.ValidateUpdate(update); err != nil {
		s.cfg.Log.Warn("Reservation update validation failed", "id", id, "error", err)
		return nil, err
	}

	space, err := s.resolveSpace(ctx, existing.SpaceID)
	if err != nil {
		return nil, err
	}
	slots, err := s.resolveSlots(ctx, update.SlotIDs)
	if err != nil {
		return nil, err
	}
	if err := s.validateRules(update.DateTime, update.AttendeeCount, space); err != nil {
		s.cfg.Log.Warn("Reservation update rejected", "id", id, "error", err)
		return nil, err
	}

	merged := *existing
	merged.DateTime = update.DateTime
	merged.Date = s.validator.DayOf(update.DateTime)
	merged.Purpose = update.Purpose
	merged.AttendeeCount = update.AttendeeCount
	merged.SlotIDs = slotIDsOf(slots)

	rebook := !merged.DateTime.Equal(existing.DateTime) || !sanitizer.SameSet(merged.SlotIDs, existing.SlotIDs)
	claimsMoved := merged.Date != existing.Date || !sanitizer.SameSet(merged.SlotIDs, existing.SlotIDs)

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if rebook {
			if err := s.ensureNoConflicts(txCtx, &merged, existing.ID); err != nil {
				return err
			}
		}
		if err := s.repo.Update(txCtx, &merged); err != nil {
			if errors.Is(err, reservationserrors.ErrNotFound) {
				return apperrors.ReservationNotFound(id)
			}
			return apperrors.Internal("Failed to update reservation", err)
		}
		if !claimsMoved {
			return nil
		}
		if err := s.claims.ReleaseByReservation(txCtx, existing.ID); err != nil {
			return apperrors.Internal("Failed to release slot claims", err)
		}
		return s.claimSlots(txCtx, &merged)
	})
	if err != nil {
		s.logFailure("Failed to update reservation", err, "id", id, "caller", caller.Email)
		return nil, err
	}

	s.cfg.Log.Info("Reservation updated successfully",
		"id", id,
		"date", merged.Date,
		"slot_ids", merged.SlotIDs,
		"rechecked", rebook,
	)
	s.publish(ctx, events.TypeUpdated, &merged, caller)

	return model.NewReservationView(&merged, space, slots), nil
}

func (s *reservationService) Delete(ctx context.Context, caller identity.Principal, id string) error {
	id = sanitizer.NormalizeID(id)
	if id == "" {
		return apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	if err := s.authorizeRole(caller, "delete"); err != nil {
		return err
	}

	existing, err := s.findReservation(ctx, id)
	if err != nil {
		return err
	}
	if !caller.CanMutate(existing.OwnerEmail) {
		s.cfg.Log.Warn("Reservation delete denied", "id", id, "caller", caller.Email, "owner", existing.OwnerEmail)
		return apperrors.Forbidden("Only the owner or an administrator can delete this reservation")
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Delete(txCtx, id); err != nil {
			if errors.Is(err, reservationserrors.ErrNotFound) {
				return apperrors.ReservationNotFound(id)
			}
			return apperrors.Internal("Failed to delete reservation", err)
		}
		if err := s.claims.ReleaseByReservation(txCtx, id); err != nil {
			return apperrors.Internal("Failed to release slot claims", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure("Failed to delete reservation", err, "id", id, "caller", caller.Email)
		return err
	}

	s.cfg.Log.Info("Reservation deleted successfully", "id", id, "caller", caller.Email)
	s.publish(ctx, events.TypeDeleted, existing, caller)
	return nil
}

func (s *reservationService) GetByID(ctx context.Context, caller identity.Principal, id string) (*model.ReservationView, error) {
	if err := s.authorizeRole(caller, "get"); err != nil {
		return nil, err
	}

	id = sanitizer.NormalizeID(id)
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.findReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	views, err := s.buildViews(ctx, []*model.Reservation{reservation})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *reservationService) ListAll(ctx context.Context, caller identity.Principal) ([]*model.ReservationView, error) {
	if err := s.authorizeRole(caller, "list"); err != nil {
		return nil, err
	}

	reservations, err := s.repo.FindAll(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list reservations", "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservations", err)
	}
	return s.buildViews(ctx, reservations)
}

func (s *reservationService) ListMine(ctx context.Context, caller identity.Principal) ([]*model.ReservationView, error) {
	if err := s.authorizeRole(caller, "list_mine"); err != nil {
		return nil, err
	}

	reservations, err := s.repo.FindByOwner(ctx, caller.Email)
	if err != nil {
		s.cfg.Log.Error("Failed to list reservations by owner", "owner", caller.Email, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservations", err)
	}
	return s.buildViews(ctx, reservations)
}

func (s *reservationService) ListBySpace(ctx context.Context, caller identity.Principal, spaceID string) ([]*model.ReservationView, error) {
	if err := s.authorizeRole(caller, "list_by_space"); err != nil {
		return nil, err
	}

	space, err := s.resolveSpace(ctx, sanitizer.NormalizeID(spaceID))
	if err != nil {
		return nil, err
	}

	reservations, err := s.repo.FindBySpace(ctx, space.ID)
	if err != nil {
		s.cfg.Log.Error("Failed to list reservations by space", "space_id", space.ID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservations", err)
	}
	return s.buildViewsForSpace(ctx, space, reservations)
}

func (s *reservationService) ListFutureBySpace(ctx context.Context, caller identity.Principal, spaceID string) ([]*model.ReservationView, error) {
	if err := s.authorizeRole(caller, "list_future_by_space"); err != nil {
		return nil, err
	}

	space, err := s.resolveSpace(ctx, sanitizer.NormalizeID(spaceID))
	if err != nil {
		return nil, err
	}

	today := s.validator.Today()
	reservations, err := s.repo.FindFutureBySpace(ctx, space.ID, today)
	if err != nil {
		s.cfg.Log.Error("Failed to list future reservations by space", "space_id", space.ID, "from", today, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservations", err)
	}
	return s.buildViewsForSpace(ctx, space, reservations)
}

// --- Helpers ---

// authorizeRole admits administrators and requesters. Every reservation
// operation goes through it before any lookup.
func (s *reservationService) authorizeRole(caller identity.Principal, operation string) error {
	if caller.CanBook() {
		return nil
	}
	s.cfg.Log.Warn("Reservation access denied", "operation", operation, "caller", caller.Email, "roles", caller.Roles.String())
	return apperrors.Forbidden("Only requesters and administrators can access reservations")
}

func (s *reservationService) sanitizeInput(input *model.ReservationInput) {
	input.SpaceID = sanitizer.NormalizeID(input.SpaceID)
	input.Purpose = sanitizer.NormalizePurpose(input.Purpose)
	input.SlotIDs = sanitizer.NormalizeIDSet(input.SlotIDs)
}

func (s *reservationService) sanitizeUpdate(update *model.ReservationUpdate) {
	update.Purpose = sanitizer.NormalizePurpose(update.Purpose)
	update.SlotIDs = sanitizer.NormalizeIDSet(update.SlotIDs)
}

func (s *reservationService) findReservation(ctx context.Context, id string) (*model.Reservation, error) {
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) || errors.Is(err, reservationserrors.ErrInvalidID) {
			return nil, apperrors.ReservationNotFound(id)
		}
		s.cfg.Log.Error("Failed to load reservation", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}
	return reservation, nil
}

func (s *reservationService) resolveSpace(ctx context.Context, spaceID string) (*model.Space, error) {
	if spaceID == "" {
		return nil, apperrors.InvalidInput("Space ID cannot be empty")
	}

	space, err := s.spaces.FindSpaceByID(ctx, spaceID)
	if err != nil {
		if errors.Is(err, catalog.ErrSpaceNotFound) {
			return nil, apperrors.SpaceNotFound(spaceID)
		}
		s.cfg.Log.Error("Failed to load space", "space_id", spaceID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve space", err)
	}
	return space, nil
}

// resolveSlots loads the requested slots. Unknown ids are dropped unless
// strict lookup is configured. A request that resolves to no slot at all is
// always rejected since a reservation must hold at least one.
func (s *reservationService) resolveSlots(ctx context.Context, ids []string) ([]model.Slot, error) {
	slots, err := s.slots.FindSlotsByIDs(ctx, ids)
	if err != nil {
		s.cfg.Log.Error("Failed to load slots", "slot_ids", ids, "error", err)
		return nil, apperrors.Internal("Failed to retrieve slots", err)
	}

	missing := missingIDs(ids, slots)
	if len(missing) > 0 {
		if s.cfg.SlotLookupStrict || len(slots) == 0 {
			return nil, apperrors.SlotNotFound(missing)
		}
		s.cfg.Log.Warn("Ignoring unknown slot ids", "missing", missing)
	}
	if len(slots) == 0 {
		return nil, apperrors.SlotNotFound(ids)
	}
	return slots, nil
}

func (s *reservationService) resolveAccount(ctx context.Context, email string) (*model.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			return nil, apperrors.AccountNotFound(email)
		}
		s.cfg.Log.Error("Failed to load account", "email", email, "error", err)
		return nil, apperrors.Internal("Failed to retrieve account", err)
	}
	return account, nil
}

func (s *reservationService) validateRules(dateTime time.Time, attendees int, space *model.Space) error {
	if err := s.validator.ValidateNotPast(dateTime); err != nil {
		return err
	}
	return s.validator.ValidateAttendance(attendees, space.Capacity)
}

func (s *reservationService) ensureNoConflicts(ctx context.Context, r *model.Reservation, excludeID string) error {
	candidate := conflict.Candidate{
		SpaceID:   r.SpaceID,
		Date:      r.Date,
		SlotIDs:   r.SlotIDs,
		ExcludeID: excludeID,
	}

	conflicts, err := s.detector.FindConflicts(ctx, candidate)
	if err != nil {
		return apperrors.Internal("Failed to check existing reservations", err)
	}
	if len(conflicts) == 0 {
		return nil
	}

	taken := conflict.ClaimedSlots(conflicts, candidate)
	return apperrors.SlotConflict(
		fmt.Sprintf("Slots %s are already reserved for this space on %s", strings.Join(taken, ", "), r.Date),
		map[string]any{"space_id": r.SpaceID, "date": r.Date, "slot_ids": taken},
	)
}

func (s *reservationService) claimSlots(ctx context.Context, r *model.Reservation) error {
	if err := s.claims.Claim(ctx, model.NewSlotClaims(r)); err != nil {
		if errors.Is(err, reservationserrors.ErrSlotConflict) {
			return apperrors.SlotConflict(
				"One or more slots were reserved concurrently for this space and date",
				map[string]any{"space_id": r.SpaceID, "date": r.Date, "slot_ids": r.SlotIDs},
			)
		}
		return apperrors.Internal("Failed to claim slots", err)
	}
	return nil
}

func (s *reservationService) buildViewsForSpace(ctx context.Context, space *model.Space, reservations []*model.Reservation) ([]*model.ReservationView, error) {
	slotsByID, err := s.slotIndex(ctx, reservations)
	if err != nil {
		return nil, err
	}

	views := make([]*model.ReservationView, 0, len(reservations))
	for _, r := range reservations {
		views = append(views, model.NewReservationView(r, space, pickSlots(r.SlotIDs, slotsByID)))
	}
	return views, nil
}

// buildViews denormalizes reservations of any space. Spaces are looked up
// once per distinct id. A space that has vanished from the catalog is
// rendered with its id only.
func (s *reservationService) buildViews(ctx context.Context, reservations []*model.Reservation) ([]*model.ReservationView, error) {
	slotsByID, err := s.slotIndex(ctx, reservations)
	if err != nil {
		return nil, err
	}

	spaces := make(map[string]*model.Space)
	views := make([]*model.ReservationView, 0, len(reservations))
	for _, r := range reservations {
		space, ok := spaces[r.SpaceID]
		if !ok {
			space, err = s.spaces.FindSpaceByID(ctx, r.SpaceID)
			if err != nil {
				if !errors.Is(err, catalog.ErrSpaceNotFound) {
					s.cfg.Log.Error("Failed to load space", "space_id", r.SpaceID, "error", err)
					return nil, apperrors.Internal("Failed to retrieve space", err)
				}
				space = &model.Space{ID: r.SpaceID}
			}
			spaces[r.SpaceID] = space
		}
		views = append(views, model.NewReservationView(r, space, pickSlots(r.SlotIDs, slotsByID)))
	}
	return views, nil
}

func (s *reservationService) slotIndex(ctx context.Context, reservations []*model.Reservation) (map[string]model.Slot, error) {
	var ids []string
	for _, r := range reservations {
		ids = append(ids, r.SlotIDs...)
	}
	ids = sanitizer.NormalizeIDSet(ids)

	index := make(map[string]model.Slot, len(ids))
	if len(ids) == 0 {
		return index, nil
	}

	slots, err := s.slots.FindSlotsByIDs(ctx, ids)
	if err != nil {
		s.cfg.Log.Error("Failed to load slots", "error", err)
		return nil, apperrors.Internal("Failed to retrieve slots", err)
	}
	for _, slot := range slots {
		index[slot.ID] = slot
	}
	return index, nil
}

// publish runs after commit. Failures are logged and never undo the change.
func (s *reservationService) publish(ctx context.Context, eventType string, r *model.Reservation, caller identity.Principal) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := events.Event{
		Type:        eventType,
		Reservation: r,
		Actor:       caller.Email,
		OccurredAt:  time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Error("Failed to publish reservation event",
			"event_type", eventType,
			"id", r.ID,
			"error", err,
		)
	}
}

func (s *reservationService) logFailure(msg string, err error, args ...any) {
	args = append(args, "error", err)
	if apperrors.CodeOf(err) == apperrors.CodeInternal {
		s.cfg.Log.Error(msg, args...)
		return
	}
	s.cfg.Log.Warn(msg, args...)
}

func slotIDsOf(slots []model.Slot) []string {
	ids := make([]string, 0, len(slots))
	for _, slot := range slots {
		ids = append(ids, slot.ID)
	}
	return sanitizer.NormalizeIDSet(ids)
}

func missingIDs(requested []string, found []model.Slot) []string {
	have := make(map[string]struct{}, len(found))
	for _, slot := range found {
		have[slot.ID] = struct{}{}
	}

	var missing []string
	for _, id := range requested {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func pickSlots(ids []string, index map[string]model.Slot) []model.Slot {
	slots := make([]model.Slot, 0, len(ids))
	for _, id := range ids {
		if slot, ok := index[id]; ok {
			slots = append(slots, slot)
		}
	}
	return slots
}
