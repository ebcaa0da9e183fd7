package model

type Space struct {
	ID            string `json:"id" bson:"_id" validate:"required,max=64"`
	Name          string `json:"name" bson:"name" validate:"required,min=1,max=100"`
	Capacity      int    `json:"capacity" bson:"capacity" validate:"required,min=1"`
	HasComputers  bool   `json:"has_computers" bson:"has_computers"`
	ComputerCount *int   `json:"computer_count,omitempty" bson:"computer_count,omitempty" validate:"omitempty,min=0"`
}

// SpaceSnapshot is the copy of a space embedded in a reservation view.
type SpaceSnapshot struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Capacity      int    `json:"capacity"`
	HasComputers  bool   `json:"has_computers"`
	ComputerCount *int   `json:"computer_count,omitempty"`
}

func (s *Space) Snapshot() SpaceSnapshot {
	snap := SpaceSnapshot{
		ID:           s.ID,
		Name:         s.Name,
		Capacity:     s.Capacity,
		HasComputers: s.HasComputers,
	}
	if s.ComputerCount != nil {
		count := *s.ComputerCount
		snap.ComputerCount = &count
	}
	return snap
}
