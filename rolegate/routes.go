// Package rolegate enforces role-based access on protected surfaces and owns
// the static role-to-route map shared with the redirect reconciler.
package rolegate

import "github.com/evently/authsession/session"

// RouteMap maps roleHints to their default landing routes. Every lookup has
// a defined answer: unknown or missing roles resolve to Default, never to a
// role-specific page.
type RouteMap struct {
	ByRole  map[string]string
	Default string
	Login   string
}

// Routes is the application's static role-to-route configuration.
var Routes = RouteMap{
	ByRole: map[string]string{
		session.RoleOrganizer:   "/organizer",
		session.RoleParticipant: "/events",
	},
	Default: "/home",
	Login:   "/login",
}

// DestinationFor returns the default landing route for a roleHint.
func (m RouteMap) DestinationFor(roleHint string) string {
	if route, ok := m.ByRole[roleHint]; ok {
		return route
	}
	return m.Default
}
