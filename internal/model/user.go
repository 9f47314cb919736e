// Package model defines the data structures used throughout the application.
// These are plain structs; each store maps them to and from its own schema.
package model

import "time"

// User is a registered account.
//
// PasswordHash carries the bcrypt hash between the store and the auth
// service. It is tagged json:"-" so no read path can ever serialise it.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
