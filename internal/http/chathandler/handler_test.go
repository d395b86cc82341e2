package chathandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchatgo/internal/msglog"
	"roomchatgo/internal/presence"
	"roomchatgo/internal/services/chat"
)

type nopBus struct{}

func (nopBus) ToRoom(string, string, any) {}
func (nopBus) ToAll(string, any)          {}

type stubLog struct {
	msgs []msglog.Message
}

func (l *stubLog) Append(_ context.Context, m msglog.Message) error {
	l.msgs = append(l.msgs, m)
	return nil
}

func (l *stubLog) History(_ context.Context, room string, limit int) ([]msglog.Message, error) {
	if len(l.msgs) > limit {
		return l.msgs[len(l.msgs)-limit:], nil
	}
	return l.msgs, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, chat.IChatService, *stubLog) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rooms := presence.NewDirectory(presence.DefaultRooms())
	registry := presence.NewRegistry()
	members := presence.NewTable(rooms)
	log := &stubLog{}
	svc := chat.NewChatService(rooms, registry, members, nopBus{}, log, 2000)

	engine := gin.New()
	New(svc, 50).Register(engine)
	return engine, svc, log
}

func doGet(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	engine.ServeHTTP(w, req)
	return w
}

func TestListRooms(t *testing.T) {
	engine, _, _ := newTestRouter(t)

	w := doGet(engine, "/rooms")
	require.Equal(t, http.StatusOK, w.Code)

	var rooms []presence.RoomMetadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rooms))
	require.Len(t, rooms, 3)
	assert.Equal(t, "geral", rooms[0].Slug)
	assert.Equal(t, "Chat Geral", rooms[0].DisplayName)
}

func TestRoomMembers(t *testing.T) {
	engine, svc, _ := newTestRouter(t)
	svc.Connect("c1")
	require.NoError(t, svc.Identify("c1", "alice"))
	_, err := svc.JoinRoom("c1", "geral")
	require.NoError(t, err)

	w := doGet(engine, "/rooms/geral/members")
	require.Equal(t, http.StatusOK, w.Code)

	var res RoomMembersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "geral", res.Room)
	assert.Equal(t, []string{"alice"}, res.Members)
	assert.Equal(t, 1, res.Count)
}

func TestRoomMembersNotFound(t *testing.T) {
	engine, _, _ := newTestRouter(t)

	w := doGet(engine, "/rooms/nope/members")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoomHistory(t *testing.T) {
	engine, _, log := newTestRouter(t)
	log.msgs = []msglog.Message{
		{Room: "geral", Username: "alice", Content: "hi", SentAt: time.Now()},
		{Room: "geral", Username: "bob", Content: "oi", SentAt: time.Now()},
	}

	w := doGet(engine, "/rooms/geral/messages?limit=10")
	require.Equal(t, http.StatusOK, w.Code)

	var msgs []msglog.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestRoomHistoryUnknownRoom(t *testing.T) {
	engine, _, _ := newTestRouter(t)

	w := doGet(engine, "/rooms/nope/messages")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPresenceSnapshot(t *testing.T) {
	engine, svc, _ := newTestRouter(t)
	svc.Connect("c1")
	require.NoError(t, svc.Identify("c1", "alice"))
	_, err := svc.JoinRoom("c1", "games")
	require.NoError(t, err)

	w := doGet(engine, "/presence")
	require.Equal(t, http.StatusOK, w.Code)

	var snap chat.UsersUpdatedBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.CountTotal)
	assert.Equal(t, []string{"alice"}, snap.UsersTotal)
	assert.Equal(t, 1, snap.CountByRoom["games"])
	assert.Equal(t, 0, snap.CountByRoom["geral"])
}
