package model

import "time"

type User struct {
	ID             string    `db:"id"              json:"id"`
	Email          string    `db:"email"           json:"email"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	Name           *string   `db:"name"            json:"name,omitempty"`
	Timezone       string    `db:"timezone"        json:"timezone"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updated_at"`
}
