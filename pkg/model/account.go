package model

// Account is a person who can own reservations. Roles is the stored label
// list, e.g. "ROLE_ADMIN,ROLE_REQUESTER".
type Account struct {
	ID           string `json:"id" bson:"_id,omitempty"`
	Name         string `json:"name" bson:"name" validate:"required,min=1,max=100"`
	Email        string `json:"email" bson:"email" validate:"required,email"`
	PasswordHash string `json:"-" bson:"password_hash"`
	Roles        string `json:"roles" bson:"roles" validate:"required"`
}
