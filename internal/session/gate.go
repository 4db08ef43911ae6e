// Package session gates the stopwatch on the server login state.
package session

import (
	"context"
	"sync"

	"github.com/sweeney/shake-timer/internal/api"
)

// Authenticator performs the server side of login and logout.
type Authenticator interface {
	Login(ctx context.Context, creds api.Credentials) error
	Logout(ctx context.Context) error
}

// Lifecycle is the state that only exists while logged in.
type Lifecycle interface {
	// Activate creates the session state. Failures inside (such as an
	// unavailable sensor) are absorbed and reported by the lifecycle itself.
	Activate(ctx context.Context)
	// Deactivate discards the session state and releases its resources.
	Deactivate()
}

// Gate tracks whether the user is logged in and activates or deactivates the
// Lifecycle accordingly.
type Gate struct {
	auth Authenticator
	life Lifecycle

	mu       sync.Mutex
	loggedIn bool
}

// NewGate creates a logged-out gate.
func NewGate(auth Authenticator, life Lifecycle) *Gate {
	return &Gate{auth: auth, life: life}
}

// Login submits credentials. On success the gate is logged in and the
// lifecycle activated; on failure the state is unchanged and the error
// (typically a 401 *api.ServerError) is returned.
func (g *Gate) Login(ctx context.Context, creds api.Credentials) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.auth.Login(ctx, creds); err != nil {
		return err
	}
	if g.loggedIn {
		return nil
	}
	g.loggedIn = true
	g.life.Activate(ctx)
	return nil
}

// Logout submits a logout. On success the lifecycle is deactivated and all
// session state discarded; on failure nothing changes.
func (g *Gate) Logout(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.auth.Logout(ctx); err != nil {
		return err
	}
	if !g.loggedIn {
		return nil
	}
	g.loggedIn = false
	g.life.Deactivate()
	return nil
}

// Close deactivates the lifecycle without contacting the server. Used on
// shutdown so the sensor subscription is always released.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loggedIn {
		g.loggedIn = false
		g.life.Deactivate()
	}
}

// LoggedIn reports whether the gate is logged in.
func (g *Gate) LoggedIn() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loggedIn
}
