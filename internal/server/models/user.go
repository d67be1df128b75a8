package models

import "time"

// User is an identity record. PasswordHash is internal and must never leave
// the auth service; use Profile for anything returned to a caller.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	Email        string
	Roles        []string
	CreatedAt    time.Time
}

// Profile is the externally visible part of a User.
type Profile struct {
	ID       string   `json:"id"`
	UserName string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

func (u *User) Profile() Profile {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return Profile{
		ID:       u.ID,
		UserName: u.UserName,
		Email:    u.Email,
		Roles:    append([]string(nil), roles...),
	}
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	return &c
}
