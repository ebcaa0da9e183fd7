// Package seed loads the space, slot and account catalog that the
// reservation service reads but never writes.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"roombook/internal/catalog"
	"roombook/internal/identity"
	"roombook/pkg/logger"
	"roombook/pkg/model"
	"roombook/pkg/sanitizer"
)

type Account struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Roles    string `json:"roles"`
}

type Catalog struct {
	Spaces   []model.Space `json:"spaces"`
	Slots    []model.Slot  `json:"slots"`
	Accounts []Account     `json:"accounts"`
}

type Result struct {
	Spaces   int
	Slots    int
	Accounts int
}

// Decode reads a catalog document, rejecting unknown fields.
func Decode(r io.Reader) (*Catalog, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	var c Catalog
	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return &c, nil
}

type Seeder struct {
	spaces    catalog.SpaceRepository
	slots     catalog.SlotRepository
	accounts  identity.AccountRepository
	validator *catalog.Validator
	params    identity.Argon2idParams
	log       *logger.Logger
}

func NewSeeder(
	spaces catalog.SpaceRepository,
	slots catalog.SlotRepository,
	accounts identity.AccountRepository,
	validator *catalog.Validator,
	params identity.Argon2idParams,
	log *logger.Logger,
) *Seeder {
	return &Seeder{
		spaces:    spaces,
		slots:     slots,
		accounts:  accounts,
		validator: validator,
		params:    params,
		log:       log,
	}
}

// Apply validates the whole catalog first and writes nothing if any entry
// is invalid. Entries are upserted, so re-running a seed is harmless.
func (s *Seeder) Apply(ctx context.Context, c *Catalog) (Result, error) {
	accounts, err := s.prepare(c)
	if err != nil {
		return Result{}, err
	}

	var res Result
	for i := range c.Spaces {
		if err := s.spaces.UpsertSpace(ctx, &c.Spaces[i]); err != nil {
			return res, err
		}
		res.Spaces++
	}
	for i := range c.Slots {
		if err := s.slots.UpsertSlot(ctx, &c.Slots[i]); err != nil {
			return res, err
		}
		res.Slots++
	}
	for _, account := range accounts {
		if err := s.accounts.Upsert(ctx, account); err != nil {
			return res, err
		}
		res.Accounts++
	}

	s.log.Info("Catalog seeded", "spaces", res.Spaces, "slots", res.Slots, "accounts", res.Accounts)
	return res, nil
}

func (s *Seeder) prepare(c *Catalog) ([]*model.Account, error) {
	for i := range c.Spaces {
		space := &c.Spaces[i]
		space.ID = sanitizer.NormalizeID(space.ID)
		space.Name = sanitizer.NormalizeName(space.Name)
		if err := s.validator.ValidateSpace(space); err != nil {
			return nil, fmt.Errorf("space %d (%q): %w", i, space.ID, err)
		}
	}

	for i := range c.Slots {
		slot := &c.Slots[i]
		slot.ID = sanitizer.NormalizeID(slot.ID)
		if err := s.validator.ValidateSlot(slot); err != nil {
			return nil, fmt.Errorf("slot %d (%q): %w", i, slot.ID, err)
		}
	}

	accounts := make([]*model.Account, 0, len(c.Accounts))
	for i, a := range c.Accounts {
		roles := identity.ParseRoles(a.Roles)
		if len(roles) == 0 {
			return nil, fmt.Errorf("account %d (%q): no known role in %q", i, a.Email, a.Roles)
		}
		if a.Password == "" {
			return nil, fmt.Errorf("account %d (%q): password is required", i, a.Email)
		}

		hash, err := identity.HashPassword(a.Password, s.params)
		if err != nil {
			return nil, fmt.Errorf("account %d (%q): failed to hash password: %w", i, a.Email, err)
		}
		account := &model.Account{
			Name:         sanitizer.NormalizeName(a.Name),
			Email:        identity.NormalizeEmail(a.Email),
			PasswordHash: hash,
			Roles:        roles.String(),
		}
		if err := s.validator.ValidateAccount(account); err != nil {
			return nil, fmt.Errorf("account %d (%q): %w", i, a.Email, err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}
