// Package models defines server-side data models persisted in the database.
package models

import "time"

// Avatar points at a user's profile image in object storage.
type Avatar struct {
	URL string `json:"url"`
	// Key is the object-storage key, used to delete the image on replace.
	Key string `json:"-"`
}

// User is a registered account. PasswordHash and RefreshToken never leave
// the server; Sanitize strips them before a User is returned to a client.
type User struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"-"`
	RefreshToken string    `json:"-"`
	Avatar       Avatar    `json:"avatar"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Sanitize returns a copy of u without credential material.
func (u User) Sanitize() User {
	u.PasswordHash = ""
	u.RefreshToken = ""
	return u
}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	ID       string
	Username string
	Email    string
	FullName string
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username, Email: u.Email, FullName: u.FullName}
}

// ProfileUpdate carries optional profile changes; nil means unchanged.
type ProfileUpdate struct {
	Username *string
	Email    *string
	FullName *string
}

// Empty reports whether no field was supplied.
func (p ProfileUpdate) Empty() bool {
	return p.Username == nil && p.Email == nil && p.FullName == nil
}
