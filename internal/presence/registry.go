package presence

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrUnknownConn = errors.New("unknown connection")

// userRecord is soft state: it survives disconnects so last-seen outlives the
// session, only the online flag toggles.
type userRecord struct {
	online   bool
	lastSeen time.Time
	conns    map[string]struct{}
}

// Registry is the source of truth for "who is currently connected". It maps
// opaque connection handles to usernames and tracks per-user connection sets
// so presence only flips when the *last* connection goes away.
//
// The registry never broadcasts; callers decide when to notify.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]string // connID -> username ("" until identified)
	users map[string]*userRecord
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]string),
		users: make(map[string]*userRecord),
		now:   time.Now,
	}
}

// Register records a new anonymous connection.
func (rg *Registry) Register(connID string) {
	rg.mu.Lock()
	if _, ok := rg.conns[connID]; !ok {
		rg.conns[connID] = ""
	}
	rg.mu.Unlock()
}

// Identify binds a username to a registered connection and marks the user
// online. Username validation is the coordinator's job; the registry only
// refuses handles it has never seen.
func (rg *Registry) Identify(connID, username string) error {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	prev, ok := rg.conns[connID]
	if !ok {
		return ErrUnknownConn
	}
	if prev != "" && prev != username {
		// re-identify under a new name: unlink the old binding first
		if old := rg.users[prev]; old != nil {
			delete(old.conns, connID)
			if len(old.conns) == 0 {
				old.online = false
				old.lastSeen = rg.now()
			}
		}
	}
	rg.conns[connID] = username

	u := rg.users[username]
	if u == nil {
		u = &userRecord{conns: make(map[string]struct{})}
		rg.users[username] = u
	}
	u.conns[connID] = struct{}{}
	u.online = true
	u.lastSeen = rg.now()
	return nil
}

// Unregister removes a connection. When the removed connection was the
// user's last live one, the user is marked offline and last=true so the
// caller can cascade membership cleanup.
func (rg *Registry) Unregister(connID string) (username string, last bool) {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	username, ok := rg.conns[connID]
	if !ok {
		return "", false
	}
	delete(rg.conns, connID)
	if username == "" {
		return "", false // was never identified
	}

	u := rg.users[username]
	if u == nil {
		return username, false
	}
	delete(u.conns, connID)
	if len(u.conns) > 0 {
		return "", false
	}
	u.online = false
	u.lastSeen = rg.now()
	return username, true
}

// Username returns the identity bound to a connection, "" while anonymous.
func (rg *Registry) Username(connID string) string {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	return rg.conns[connID]
}

func (rg *Registry) IsOnline(username string) bool {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	u := rg.users[username]
	return u != nil && u.online
}

func (rg *Registry) LastSeen(username string) (time.Time, bool) {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	u := rg.users[username]
	if u == nil {
		return time.Time{}, false
	}
	return u.lastSeen, true
}

// OnlineUsers returns every username with at least one live connection,
// sorted for stable payloads.
func (rg *Registry) OnlineUsers() []string {
	rg.mu.RLock()
	out := make([]string, 0, len(rg.users))
	for name, u := range rg.users {
		if u.online {
			out = append(out, name)
		}
	}
	rg.mu.RUnlock()
	sort.Strings(out)
	return out
}

// ConnIDs returns the live connection handles for a user.
func (rg *Registry) ConnIDs(username string) []string {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	u := rg.users[username]
	if u == nil {
		return nil
	}
	out := make([]string, 0, len(u.conns))
	for id := range u.conns {
		out = append(out, id)
	}
	return out
}

// AllConnIDs returns every registered connection handle, identified or not.
func (rg *Registry) AllConnIDs() []string {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	out := make([]string, 0, len(rg.conns))
	for id := range rg.conns {
		out = append(out, id)
	}
	return out
}
