// Package session holds the client-side authentication session: the durable
// record of who is logged in, the bearer token, and the roles the account
// holds. It is the single source of truth the SDK and any UI read from.
package session

import (
	"github.com/trezcool/silabo/core/user"
)

// Account is the authenticated user's projection held by the session.
// It mirrors what the auth endpoints return; the bearer token rides along so
// it survives restarts with the rest of the record.
type Account struct {
	ID          string      `json:"id"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	Email       string      `json:"email"`
	Token       string      `json:"token"`
	PhonePrefix string      `json:"phonePrefix,omitempty"`
	PhoneNumber string      `json:"phoneNumber,omitempty"`
	Roles       []user.Role `json:"roles"`
}

// Session is the authoritative client-side auth record.
// Invariant: IsAuthenticated == (User != nil). It is never set independently;
// all mutations go through State.
type Session struct {
	User            *Account `json:"user"`
	IsAuthenticated bool     `json:"isAuthenticated"`
	IsFetching      bool     `json:"isFetching"`
	Error           string   `json:"error"`
}

// Defaults returns the empty, logged-out session.
func Defaults() Session {
	return Session{}
}

// HasRole reports whether the session's account holds the given role.
// It is false for an unauthenticated session.
func (s Session) HasRole(role user.Role) bool {
	if s.User == nil {
		return false
	}
	for _, r := range s.User.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether at least one of the given roles is held.
// It is false when no roles are given.
func (s Session) HasAnyRole(roles ...user.Role) bool {
	for _, role := range roles {
		if s.HasRole(role) {
			return true
		}
	}
	return false
}

// HasAllRoles reports whether every one of the given roles is held.
// It is vacuously true when no roles are given.
func (s Session) HasAllRoles(roles ...user.Role) bool {
	for _, role := range roles {
		if !s.HasRole(role) {
			return false
		}
	}
	return true
}

func (s Session) IsAdmin() bool     { return s.HasRole(user.RoleAdministrator) }
func (s Session) IsProfessor() bool { return s.HasRole(user.RoleProfessor) }
func (s Session) IsStudent() bool   { return s.HasRole(user.RoleStudent) }

// clone returns a deep copy so callers can never alias the state's record.
func (s Session) clone() Session {
	if s.User == nil {
		return s
	}
	usr := *s.User
	if s.User.Roles != nil {
		usr.Roles = append([]user.Role(nil), s.User.Roles...)
	}
	s.User = &usr
	return s
}
