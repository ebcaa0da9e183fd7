// Package conflict decides slot exclusivity: two reservations of the same
// space on the same day conflict when their slot sets intersect. Slots are
// named sessions, so overlap is set intersection rather than interval math.
package conflict

import (
	"context"
	"fmt"
	"sort"

	"roombook/pkg/model"
)

// Candidate is the booking being checked. ExcludeID is the candidate's own
// identity on update and empty on create.
type Candidate struct {
	SpaceID   string
	Date      string
	SlotIDs   []string
	ExcludeID string
}

// Finder narrows the search to stored reservations that may conflict. It is
// allowed to return a superset.
type Finder interface {
	FindConflicting(ctx context.Context, spaceID string, date string, slotIDs []string, excludeID string) ([]*model.Reservation, error)
}

type Detector struct {
	finder Finder
}

func NewDetector(finder Finder) *Detector {
	return &Detector{finder: finder}
}

// FindConflicts returns every other reservation of the space on the date
// that holds at least one of the candidate's slots.
func (d *Detector) FindConflicts(ctx context.Context, candidate Candidate) ([]*model.Reservation, error) {
	if len(candidate.SlotIDs) == 0 {
		return nil, nil
	}

	existing, err := d.finder.FindConflicting(ctx, candidate.SpaceID, candidate.Date, candidate.SlotIDs, candidate.ExcludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations for conflict check: %w", err)
	}

	return Detect(existing, candidate), nil
}

// Detect filters existing down to the reservations that conflict with the
// candidate.
func Detect(existing []*model.Reservation, candidate Candidate) []*model.Reservation {
	var conflicts []*model.Reservation
	for _, r := range existing {
		if r == nil {
			continue
		}
		if candidate.ExcludeID != "" && r.ID == candidate.ExcludeID {
			continue
		}
		if r.SpaceID != candidate.SpaceID || r.Date != candidate.Date {
			continue
		}
		if len(Overlap(r.SlotIDs, candidate.SlotIDs)) > 0 {
			conflicts = append(conflicts, r)
		}
	}
	return conflicts
}

// Overlap returns the sorted slot ids present in both a and b.
func Overlap(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}

	seen := make(map[string]struct{}, len(b))
	var shared []string
	for _, id := range b {
		if _, ok := set[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		shared = append(shared, id)
	}
	sort.Strings(shared)
	return shared
}

// ClaimedSlots lists the slot ids of candidate already held by conflicts.
func ClaimedSlots(conflicts []*model.Reservation, candidate Candidate) []string {
	held := make(map[string]struct{})
	for _, r := range conflicts {
		for _, id := range Overlap(r.SlotIDs, candidate.SlotIDs) {
			held[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(held))
	for id := range held {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
