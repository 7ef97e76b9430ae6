package client

import (
	"github.com/trezcool/silabo/core/session"
	"github.com/trezcool/silabo/core/user"
)

// Where Check sends sessions that fail a gate.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

type (
	// Guard protects a route. The zero value only requires authentication.
	//
	// When AllowedRoles is set, an authenticated session must additionally
	// hold at least one of them, or all of them when RequireAll is set. An
	// empty AllowedRoles with RequireAll behaves like the zero value:
	// requiring all of nothing is no requirement.
	Guard struct {
		AllowedRoles []user.Role
		RequireAll   bool
	}

	// Decision is the outcome of a Guard check.
	Decision struct {
		Allowed bool
		// RedirectTo is where to send the caller when not allowed.
		RedirectTo string
		// From echoes the location that was being accessed, so a successful
		// login can resume there.
		From string
	}
)

// Check runs the two gates in order: authentication first, then roles.
// An unauthenticated session goes to the login page with the original
// location preserved; an authenticated session lacking the roles goes to the
// unauthorized page. Check reads the session once and holds no state of its
// own, so a session change simply shows up in the next call.
func (g Guard) Check(sess session.Session, location string) Decision {
	if !sess.IsAuthenticated {
		return Decision{RedirectTo: LoginPath, From: location}
	}

	if len(g.AllowedRoles) > 0 {
		ok := sess.HasAnyRole(g.AllowedRoles...)
		if g.RequireAll {
			ok = sess.HasAllRoles(g.AllowedRoles...)
		}
		if !ok {
			return Decision{RedirectTo: UnauthorizedPath, From: location}
		}
	}

	return Decision{Allowed: true, From: location}
}
