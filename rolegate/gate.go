package rolegate

import (
	"net/url"
	"sync"

	"github.com/evently/authsession/client"
	"github.com/evently/authsession/session"
)

// State is the gate's position in its evaluation lifecycle.
type State int

const (
	// StatePending means session resolution is still in flight. Render a
	// neutral indicator; redirecting now causes flicker and loops.
	StatePending State = iota
	// StateUnauthenticated means no session; redirect to login preserving the
	// originally requested path.
	StateUnauthenticated
	// StateAuthenticatedUnauthorized means a real user without the required
	// role; redirect to the generic authenticated landing, never to login.
	StateAuthenticatedUnauthorized
	// StateAuthorized means the caller may see the protected surface.
	StateAuthorized
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticatedUnauthorized:
		return "authenticated_unauthorized"
	case StateAuthorized:
		return "authorized"
	}
	return "unknown"
}

// Requirement is the set of acceptable roleHints for a protected surface.
// An empty requirement admits any authenticated user.
type Requirement []string

// Allows reports whether roleHint satisfies the requirement.
func (r Requirement) Allows(roleHint string) bool {
	if len(r) == 0 {
		return true
	}
	for _, role := range r {
		if role == roleHint {
			return true
		}
	}
	return false
}

// Decision is the outcome of one gate evaluation. Redirect is empty for
// StatePending and StateAuthorized.
type Decision struct {
	State    State
	Redirect string
}

// Evaluate runs the gate once against a resolved (or still-pending) session.
// originalPath is preserved as the return target on the login redirect.
func Evaluate(resolved bool, sess *session.Session, req Requirement, originalPath string, routes RouteMap) Decision {
	if !resolved {
		return Decision{State: StatePending}
	}
	if sess == nil {
		redirect := routes.Login
		if originalPath != "" {
			redirect += "?return_to=" + url.QueryEscape(originalPath)
		}
		return Decision{State: StateUnauthenticated, Redirect: redirect}
	}
	if !req.Allows(sess.User.RoleHint) {
		return Decision{State: StateAuthenticatedUnauthorized, Redirect: routes.Default}
	}
	return Decision{State: StateAuthorized}
}

// Gate re-evaluates a requirement every time the underlying session
// transitions, so a sign-out while viewing a protected surface immediately
// leaves StateAuthorized.
type Gate struct {
	req    Requirement
	routes RouteMap
	path   string
	notify func(Decision)

	mu   sync.Mutex
	last Decision
}

// NewGate builds a gate for one protected surface. notify receives every
// decision, including the initial one produced by Bind.
func NewGate(req Requirement, routes RouteMap, originalPath string, notify func(Decision)) *Gate {
	return &Gate{
		req:    req,
		routes: routes,
		path:   originalPath,
		notify: notify,
		last:   Decision{State: StatePending},
	}
}

// Decision returns the most recent evaluation.
func (g *Gate) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// Bind subscribes the gate to a session client and evaluates immediately
// from its current state. The returned function unbinds the gate.
func (g *Gate) Bind(c *client.Client) func() {
	if !c.Resolved() {
		g.apply(Decision{State: StatePending})
	}
	// OnChange replays the resolution if hydration already completed, so the
	// gate always receives a first meaningful evaluation.
	return c.OnChange(func(change client.Change) {
		g.apply(Evaluate(true, change.Session, g.req, g.path, g.routes))
	})
}

func (g *Gate) apply(d Decision) {
	g.mu.Lock()
	g.last = d
	g.mu.Unlock()
	if g.notify != nil {
		g.notify(d)
	}
}
