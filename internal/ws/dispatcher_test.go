package ws

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchatgo/internal/presence"
)

type sentFrame struct {
	connIDs []string
	msg     []byte
}

type recordingSender struct {
	frames []sentFrame
}

func (s *recordingSender) Send(connIDs []string, msg []byte) {
	ids := make([]string, len(connIDs))
	copy(ids, connIDs)
	sort.Strings(ids)
	s.frames = append(s.frames, sentFrame{connIDs: ids, msg: msg})
}

func newTestDispatcher() (*Dispatcher, *recordingSender, *presence.Registry, *presence.Table) {
	rooms := presence.NewDirectory(presence.DefaultRooms())
	registry := presence.NewRegistry()
	members := presence.NewTable(rooms)
	sender := &recordingSender{}
	return NewDispatcher(sender, registry, members), sender, registry, members
}

func TestToRoomTargetsOnlyMemberConns(t *testing.T) {
	d, sender, registry, members := newTestDispatcher()

	// alice on two connections, both in geral via the shared membership;
	// bob online but roomless; carol in games only
	registry.Register("a1")
	registry.Register("a2")
	registry.Register("b1")
	registry.Register("g1")
	require.NoError(t, registry.Identify("a1", "alice"))
	require.NoError(t, registry.Identify("a2", "alice"))
	require.NoError(t, registry.Identify("b1", "bob"))
	require.NoError(t, registry.Identify("g1", "carol"))
	_, err := members.Join("alice", "geral")
	require.NoError(t, err)
	_, err = members.Join("carol", "games")
	require.NoError(t, err)

	d.ToRoom("geral", "message", map[string]string{"hello": "world"})

	require.Len(t, sender.frames, 1)
	assert.Equal(t, []string{"a1", "a2"}, sender.frames[0].connIDs)

	var env Envelope
	require.NoError(t, json.Unmarshal(sender.frames[0].msg, &env))
	assert.Equal(t, "message", env.Event)
}

func TestToRoomEmptyRoomSendsNothing(t *testing.T) {
	d, sender, registry, _ := newTestDispatcher()
	registry.Register("b1")
	require.NoError(t, registry.Identify("b1", "bob"))

	d.ToRoom("geral", "message", nil)
	assert.Empty(t, sender.frames)
}

func TestToAllTargetsEveryConnIncludingAnonymous(t *testing.T) {
	d, sender, registry, members := newTestDispatcher()

	registry.Register("a1")
	registry.Register("anon")
	require.NoError(t, registry.Identify("a1", "alice"))
	_, err := members.Join("alice", "geral")
	require.NoError(t, err)

	d.ToAll("users_updated", map[string]int{"count_total": 1})

	require.Len(t, sender.frames, 1)
	assert.Equal(t, []string{"a1", "anon"}, sender.frames[0].connIDs)

	var env Envelope
	require.NoError(t, json.Unmarshal(sender.frames[0].msg, &env))
	assert.Equal(t, "users_updated", env.Event)
}
