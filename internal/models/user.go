package models

import "time"

// DefaultStatus is the status every new user starts with.
const DefaultStatus = "I am new!"

// User represents a row in the PostgreSQL users table.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Password  string    `json:"-"` // never serialize
	Status    string    `json:"status"`
	PostIDs   []string  `json:"posts"`
	CreatedAt time.Time `json:"created_at"`
}

// Creator is the public part of a user embedded in posts and events.
type Creator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Summary returns the creator view of u.
func (u *User) Summary() Creator {
	return Creator{ID: u.ID, Name: u.Name}
}

// SignupRequest is the body of PUT /auth/signup and the createUser input.
type SignupRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"min=5"`
	Name     string `json:"name"     validate:"required"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthData is returned by a successful login.
type AuthData struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// StatusRequest is the body of PATCH /auth/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}
