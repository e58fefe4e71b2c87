package models

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is a registered account. PassHash holds an encoded Argon2id hash.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	PassHash  string    `json:"passHash"`
	CreatedAt time.Time `json:"createdAt"`
}
