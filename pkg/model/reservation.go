package model

import (
	"time"
)

// DateLayout is the calendar day format used for Reservation.Date,
// Reservation.CreationDate and slot claims.
const DateLayout = "2006-01-02"

type Reservation struct {
	ID            string    `json:"id" bson:"_id"`
	DateTime      time.Time `json:"date_time" bson:"date_time"`
	Date          string    `json:"date" bson:"date"`
	Purpose       string    `json:"purpose" bson:"purpose"`
	AttendeeCount int       `json:"attendee_count" bson:"attendee_count"`
	CreationDate  string    `json:"creation_date" bson:"creation_date"`
	SpaceID       string    `json:"space_id" bson:"space_id"`
	SlotIDs       []string  `json:"slot_ids" bson:"slot_ids"`
	OwnerEmail    string    `json:"owner_email" bson:"owner_email"`
}

type ReservationInput struct {
	SpaceID       string    `json:"space_id" validate:"required,max=64"`
	DateTime      time.Time `json:"date_time" validate:"required"`
	Purpose       string    `json:"purpose" validate:"max=500"`
	AttendeeCount int       `json:"attendee_count"`
	SlotIDs       []string  `json:"slot_ids" validate:"required,min=1,max=20,dive,required,max=64"`
}

// ReservationUpdate replaces the mutable fields of a reservation. The space
// and owner cannot change.
type ReservationUpdate struct {
	DateTime      time.Time `json:"date_time" validate:"required"`
	Purpose       string    `json:"purpose" validate:"max=500"`
	AttendeeCount int       `json:"attendee_count"`
	SlotIDs       []string  `json:"slot_ids" validate:"required,min=1,max=20,dive,required,max=64"`
}

// ReservationView is what callers get back: the reservation with copies of
// its space and slots taken at read time.
type ReservationView struct {
	ID            string         `json:"id"`
	DateTime      time.Time      `json:"date_time"`
	Date          string         `json:"date"`
	Purpose       string         `json:"purpose"`
	AttendeeCount int            `json:"attendee_count"`
	CreationDate  string         `json:"creation_date"`
	OwnerEmail    string         `json:"owner_email"`
	Space         SpaceSnapshot  `json:"space"`
	Slots         []SlotSnapshot `json:"slots"`
}

func NewReservationView(r *Reservation, space *Space, slots []Slot) *ReservationView {
	view := &ReservationView{
		ID:            r.ID,
		DateTime:      r.DateTime,
		Date:          r.Date,
		Purpose:       r.Purpose,
		AttendeeCount: r.AttendeeCount,
		CreationDate:  r.CreationDate,
		OwnerEmail:    r.OwnerEmail,
		Slots:         make([]SlotSnapshot, 0, len(slots)),
	}
	if space != nil {
		view.Space = space.Snapshot()
	}
	for i := range slots {
		view.Slots = append(view.Slots, slots[i].Snapshot())
	}
	return view
}
