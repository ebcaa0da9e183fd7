package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"roombook/internal/identity"
	"roombook/pkg/model"
)

const (
	StudentEmail  = "student@uni.example"
	StudentBEmail = "other@uni.example"
	AdminEmail    = "admin@uni.example"

	RequesterRoles = "ROLE_REQUESTER"
	AdminRoles     = "ROLE_ADMIN,ROLE_REQUESTER"

	LectureHallID = "1"
	SeminarRoomID = "2"
)

type Catalog struct {
	Spaces   []model.Space
	Slots    []model.Slot
	Accounts []model.Account
}

// DefaultCatalog is the fixture every test starts from: two spaces, a
// morning of slots, two requesters and an administrator.
func DefaultCatalog() Catalog {
	return Catalog{
		Spaces: []model.Space{
			{ID: LectureHallID, Name: "Lecture Hall A", Capacity: 30},
			{ID: SeminarRoomID, Name: "Seminar Room B", Capacity: 10},
		},
		Slots: []model.Slot{
			{ID: "10", Weekday: model.Monday, Session: 1, StartTime: "08:00", EndTime: "09:30"},
			{ID: "11", Weekday: model.Monday, Session: 2, StartTime: "09:45", EndTime: "11:15"},
			{ID: "12", Weekday: model.Monday, Session: 3, StartTime: "11:30", EndTime: "13:00"},
		},
		Accounts: []model.Account{
			{Name: "Student A", Email: StudentEmail, Roles: RequesterRoles},
			{Name: "Student B", Email: StudentBEmail, Roles: RequesterRoles},
			{Name: "Admin", Email: AdminEmail, Roles: AdminRoles},
		},
	}
}

type ReservationBuilder struct {
	input model.ReservationInput
}

// NewReservationBuilder starts from a valid request for the lecture hall one
// week from now.
func NewReservationBuilder() *ReservationBuilder {
	return &ReservationBuilder{
		input: model.ReservationInput{
			SpaceID:       LectureHallID,
			DateTime:      time.Now().UTC().Add(7 * 24 * time.Hour).Truncate(time.Hour),
			Purpose:       "Study group",
			AttendeeCount: 5,
			SlotIDs:       []string{"10"},
		},
	}
}

func (b *ReservationBuilder) WithSpace(spaceID string) *ReservationBuilder {
	b.input.SpaceID = spaceID
	return b
}

func (b *ReservationBuilder) WithDateTime(dt time.Time) *ReservationBuilder {
	b.input.DateTime = dt
	return b
}

func (b *ReservationBuilder) WithDaysAhead(days int) *ReservationBuilder {
	b.input.DateTime = time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour).Truncate(time.Hour)
	return b
}

func (b *ReservationBuilder) WithPurpose(purpose string) *ReservationBuilder {
	b.input.Purpose = purpose
	return b
}

func (b *ReservationBuilder) WithAttendees(count int) *ReservationBuilder {
	b.input.AttendeeCount = count
	return b
}

func (b *ReservationBuilder) WithSlots(ids ...string) *ReservationBuilder {
	b.input.SlotIDs = ids
	return b
}

func (b *ReservationBuilder) Build() model.ReservationInput {
	return b.input
}

// AsUpdate turns the built request into a replacement body for PUT.
func (b *ReservationBuilder) AsUpdate() model.ReservationUpdate {
	return model.ReservationUpdate{
		DateTime:      b.input.DateTime,
		Purpose:       b.input.Purpose,
		AttendeeCount: b.input.AttendeeCount,
		SlotIDs:       b.input.SlotIDs,
	}
}

// MintToken signs a short lived HS256 token the service accepts.
func MintToken(t *testing.T, secret, email, roles string) string {
	t.Helper()
	claims := identity.Claims{
		Email: email,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
