package model

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleProvider
}

// Identity is an authenticated caller.
type Identity struct {
	UserID string `json:"user_id"`
	Phone  string `json:"phone"`
	Role   Role   `json:"role"`
}

func (i *Identity) IsProvider() bool {
	return i != nil && i.Role == RoleProvider
}

type User struct {
	ID        string    `json:"id" bson:"_id"`
	Phone     string    `json:"phone" bson:"phone"`
	Role      Role      `json:"role" bson:"role"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func (u *User) Identity() *Identity {
	return &Identity{UserID: u.ID, Phone: u.Phone, Role: u.Role}
}

// Challenge is a pending phone verification. Only the code hash is kept.
type Challenge struct {
	Handle    string    `json:"handle"`
	Phone     string    `json:"phone"`
	CodeHash  []byte    `json:"code_hash"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity  *Identity `json:"identity"`
}
