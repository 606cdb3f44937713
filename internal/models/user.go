package models

import (
	"time"

	"github.com/lib/pq"
)

// Role is a tag attached to admin accounts. Accounts may carry several.
type Role = string

const (
	RoleSuperAdmin Role = "SUPERADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleBHV        Role = "BHV" // academic affairs
	RoleBKT        Role = "BKT" // discipline
	RoleBTT        Role = "BTT" // communications
	RoleBHD        Role = "BHD" // mentoring
)

// PrivilegedRoles grants unrestricted season and document-type access.
var PrivilegedRoles = []Role{RoleSuperAdmin, RoleAdmin}

// User represents an admin account stored in the users table.
type User struct {
	ID           string         `db:"id" json:"id"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	FullName     string         `db:"full_name" json:"full_name"`
	Roles        pq.StringArray `db:"roles" json:"roles"`
	LatestSeason int            `db:"latest_season" json:"latest_season"`
	Active       bool           `db:"active" json:"active"`
	LastLogin    *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// HasRole reports whether the account carries the given role tag.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Actor captures the identity attributes the visibility rules need.
// It is immutable for the duration of a request.
type Actor struct {
	ID           string
	Email        string
	FullName     string
	Roles        []Role
	LatestSeason int
	Active       bool
}

// ActorFromUser builds an Actor snapshot from an admin account.
func ActorFromUser(u *User) Actor {
	roles := make([]Role, len(u.Roles))
	copy(roles, u.Roles)
	return Actor{ID: u.ID, Email: u.Email, FullName: u.FullName, Roles: roles, LatestSeason: u.LatestSeason, Active: u.Active}
}

// HasRole reports whether the actor carries the given role tag.
func (a Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsSuperAdmin reports whether the actor is active and holds a privileged role.
func (a Actor) IsSuperAdmin() bool {
	if !a.Active {
		return false
	}
	for _, r := range PrivilegedRoles {
		if a.HasRole(r) {
			return true
		}
	}
	return false
}

// UserFilter captures filtering criteria for listing admin accounts.
type UserFilter struct {
	Roles     []Role
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Total      int `json:"total"`
	PageIndex  int `json:"page_index"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}
