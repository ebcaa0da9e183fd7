package model

import "strings"

// SlotClaim marks one (space, date, slot) as taken by a reservation. The
// composite _id makes a second claim for the same triple fail with a
// duplicate key error.
type SlotClaim struct {
	ID            string `bson:"_id" json:"id"`
	SpaceID       string `bson:"space_id" json:"space_id"`
	Date          string `bson:"date" json:"date"`
	SlotID        string `bson:"slot_id" json:"slot_id"`
	ReservationID string `bson:"reservation_id" json:"reservation_id"`
}

func SlotClaimID(spaceID, date, slotID string) string {
	return strings.Join([]string{spaceID, date, slotID}, "|")
}

func NewSlotClaims(r *Reservation) []SlotClaim {
	claims := make([]SlotClaim, 0, len(r.SlotIDs))
	for _, slotID := range r.SlotIDs {
		claims = append(claims, SlotClaim{
			ID:            SlotClaimID(r.SpaceID, r.Date, slotID),
			SpaceID:       r.SpaceID,
			Date:          r.Date,
			SlotID:        slotID,
			ReservationID: r.ID,
		})
	}
	return claims
}
