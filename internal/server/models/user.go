// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account identity. Credential holds the salted password hash in
// "hex(salt):hex(digest)" form and is never serialized to clients.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Credential string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
