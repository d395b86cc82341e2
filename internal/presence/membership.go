package presence

import (
	"sort"
	"sync"
)

// Table holds the (user, room) occupancy relation with indexes both ways so
// fan-out and cleanup never scan. All mutations go through one mutex; there
// is no read-modify-write visible to callers.
type Table struct {
	dir *Directory

	mu     sync.RWMutex
	byRoom map[string]map[string]struct{} // room -> usernames
	byUser map[string]map[string]struct{} // username -> rooms
}

func NewTable(dir *Directory) *Table {
	return &Table{
		dir:    dir,
		byRoom: make(map[string]map[string]struct{}),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Join adds the (username, room) pair. Joining a room twice is not an error;
// already reports whether the membership existed before the call.
func (t *Table) Join(username, room string) (already bool, err error) {
	if !t.dir.Has(room) {
		return false, ErrRoomNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	members := t.byRoom[room]
	if members == nil {
		members = make(map[string]struct{})
		t.byRoom[room] = members
	}
	if _, already = members[username]; already {
		return true, nil
	}
	members[username] = struct{}{}

	rooms := t.byUser[username]
	if rooms == nil {
		rooms = make(map[string]struct{})
		t.byUser[username] = rooms
	}
	rooms[room] = struct{}{}
	return false, nil
}

// Leave removes the pair. Leaving a room not joined is a no-op.
func (t *Table) Leave(username, room string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remove(username, room)
}

// remove must be called with t.mu held.
func (t *Table) remove(username, room string) {
	if members := t.byRoom[room]; members != nil {
		delete(members, username)
		if len(members) == 0 {
			delete(t.byRoom, room)
		}
	}
	if rooms := t.byUser[username]; rooms != nil {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(t.byUser, username)
		}
	}
}

// MembersOf returns the usernames occupying a room, sorted.
func (t *Table) MembersOf(room string) []string {
	t.mu.RLock()
	members := t.byRoom[room]
	out := make([]string, 0, len(members))
	for name := range members {
		out = append(out, name)
	}
	t.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (t *Table) IsMember(username, room string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.byRoom[room][username]
	return ok
}

// RoomsOf returns the rooms a user currently occupies, sorted.
func (t *Table) RoomsOf(username string) []string {
	t.mu.RLock()
	rooms := t.byUser[username]
	out := make([]string, 0, len(rooms))
	for room := range rooms {
		out = append(out, room)
	}
	t.mu.RUnlock()
	sort.Strings(out)
	return out
}

// RemoveUserEverywhere drops every membership of a user in one atomic sweep
// and returns the affected rooms, sorted, for broadcast fan-out. Used on full
// disconnect.
func (t *Table) RemoveUserEverywhere(username string) []string {
	t.mu.Lock()
	rooms := t.byUser[username]
	out := make([]string, 0, len(rooms))
	for room := range rooms {
		out = append(out, room)
	}
	for _, room := range out {
		t.remove(username, room)
	}
	t.mu.Unlock()
	sort.Strings(out)
	return out
}
