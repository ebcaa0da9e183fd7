package model

const (
	Monday    = "MONDAY"
	Tuesday   = "TUESDAY"
	Wednesday = "WEDNESDAY"
	Thursday  = "THURSDAY"
	Friday    = "FRIDAY"
)

var Weekdays = []string{Monday, Tuesday, Wednesday, Thursday, Friday}

type Slot struct {
	ID        string `json:"id" bson:"_id" validate:"required,max=64"`
	Weekday   string `json:"weekday" bson:"weekday" validate:"required,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY"`
	Session   int    `json:"session" bson:"session" validate:"required,min=1"`
	StartTime string `json:"start_time" bson:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" bson:"end_time" validate:"required,hhmm"`
}

type SlotSnapshot struct {
	ID        string `json:"id"`
	Weekday   string `json:"weekday"`
	Session   int    `json:"session"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (s *Slot) Snapshot() SlotSnapshot {
	return SlotSnapshot{
		ID:        s.ID,
		Weekday:   s.Weekday,
		Session:   s.Session,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
	}
}
