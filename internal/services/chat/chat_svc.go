package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"roomchatgo/internal/msglog"
	"roomchatgo/internal/presence"
)

// Events emitted by the coordinator.
const (
	EventUsersUpdated = "users_updated"
	EventUserJoined   = "user_joined"
	EventUserLeft     = "user_left"
	EventMessage      = "message"
)

var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidMessage  = errors.New("invalid message")
	ErrNotIdentified   = errors.New("connection not identified")
	ErrNotInRoom       = errors.New("not a member of room")
)

// UsersUpdatedBody is the global presence summary pushed after every
// presence-changing action.
type UsersUpdatedBody struct {
	UsersTotal  []string            `json:"users_total"`
	CountTotal  int                 `json:"count_total"`
	UsersByRoom map[string][]string `json:"users_by_room"`
	CountByRoom map[string]int      `json:"count_by_room"`
}

type UserJoinedBody struct {
	Username    string   `json:"username"`
	Room        string   `json:"room"`
	UsersInRoom []string `json:"users_in_room"`
}

type UserLeftBody struct {
	Username    string   `json:"username"`
	Room        string   `json:"room"`
	UsersInRoom []string `json:"users_in_room"`
}

type MessageBody struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Room      string `json:"room"`
	Timestamp string `json:"timestamp" example:"16:05"`
}

// Broadcaster fans event payloads out to live connections. Delivery is
// best-effort; the coordinator never learns about individual send failures.
type Broadcaster interface {
	ToRoom(room, event string, payload any)
	ToAll(event string, payload any)
}

type IChatService interface {
	Connect(connID string)
	Identify(connID, username string) error
	JoinRoom(connID, room string) (alreadyMember bool, err error)
	LeaveRoom(connID, room string) error
	SendMessage(ctx context.Context, connID, room, content string) (MessageBody, error)
	Disconnect(connID string)

	Rooms() []presence.RoomMetadata
	RoomMembers(room string) ([]string, error)
	Snapshot() UsersUpdatedBody
	History(ctx context.Context, room string, limit int) ([]msglog.Message, error)
}

type chatService struct {
	rooms    *presence.Directory
	registry *presence.Registry
	members  *presence.Table
	bus      Broadcaster
	log      msglog.Store

	validate  *validator.Validate
	maxMsgLen int
	now       func() time.Time

	// mu serializes state transitions so the payloads computed for a single
	// action are a consistent snapshot. Broadcast I/O happens after release.
	mu sync.Mutex
}

var _ IChatService = (*chatService)(nil)

func NewChatService(rooms *presence.Directory, registry *presence.Registry,
	members *presence.Table, bus Broadcaster, log msglog.Store, maxMsgLen int) IChatService {

	return &chatService{
		rooms:     rooms,
		registry:  registry,
		members:   members,
		bus:       bus,
		log:       log,
		validate:  validator.New(),
		maxMsgLen: maxMsgLen,
		now:       time.Now,
	}
}

// Connect records a new anonymous connection. No broadcast until identify.
func (svc *chatService) Connect(connID string) {
	svc.mu.Lock()
	svc.registry.Register(connID)
	svc.mu.Unlock()
}

// Identify binds a username to the connection and announces the new global
// presence picture. Re-identifying under a new name displaces the old
// identity: when this was its last connection the old user's memberships are
// swept with the same fan-out a disconnect produces, so no offline user ever
// stays listed in a room.
func (svc *chatService) Identify(connID, username string) error {
	username = strings.TrimSpace(username)
	if err := svc.validate.Var(username, "required,min=2,max=80"); err != nil {
		return ErrInvalidUsername
	}

	svc.mu.Lock()
	prev := svc.registry.Username(connID)
	if err := svc.registry.Identify(connID, username); err != nil {
		svc.mu.Unlock()
		return err
	}
	var lefts []UserLeftBody
	if prev != "" && prev != username && !svc.registry.IsOnline(prev) {
		for _, room := range svc.members.RemoveUserEverywhere(prev) {
			lefts = append(lefts, UserLeftBody{
				Username:    prev,
				Room:        room,
				UsersInRoom: svc.onlineMembersLocked(room),
			})
		}
	}
	snapshot := svc.snapshotLocked()
	svc.mu.Unlock()

	for _, left := range lefts {
		svc.bus.ToRoom(left.Room, EventUserLeft, left)
	}
	svc.bus.ToAll(EventUsersUpdated, snapshot)
	return nil
}

// JoinRoom adds the connection's user to a room. A fresh membership emits the
// room-scoped user_joined first, then the global summary. Re-joining only
// refreshes the room member list.
func (svc *chatService) JoinRoom(connID, room string) (bool, error) {
	svc.mu.Lock()
	username := svc.registry.Username(connID)
	if username == "" {
		svc.mu.Unlock()
		return false, ErrNotIdentified
	}

	already, err := svc.members.Join(username, room)
	if err != nil {
		svc.mu.Unlock()
		return false, err
	}
	joined := UserJoinedBody{
		Username:    username,
		Room:        room,
		UsersInRoom: svc.onlineMembersLocked(room),
	}
	var snapshot UsersUpdatedBody
	if !already {
		snapshot = svc.snapshotLocked()
	}
	svc.mu.Unlock()

	svc.bus.ToRoom(room, EventUserJoined, joined)
	if !already {
		svc.bus.ToAll(EventUsersUpdated, snapshot)
	}
	return already, nil
}

// LeaveRoom removes the membership; a no-op for rooms never joined.
func (svc *chatService) LeaveRoom(connID, room string) error {
	svc.mu.Lock()
	username := svc.registry.Username(connID)
	if username == "" {
		svc.mu.Unlock()
		return ErrNotIdentified
	}
	svc.members.Leave(username, room)
	left := UserLeftBody{
		Username:    username,
		Room:        room,
		UsersInRoom: svc.onlineMembersLocked(room),
	}
	snapshot := svc.snapshotLocked()
	svc.mu.Unlock()

	svc.bus.ToRoom(room, EventUserLeft, left)
	svc.bus.ToAll(EventUsersUpdated, snapshot)
	return nil
}

// SendMessage validates membership, stamps the message, appends it to the
// log and broadcasts it to the room. A log failure is logged and the
// broadcast proceeds: live chat must not stall on durability.
func (svc *chatService) SendMessage(ctx context.Context, connID, room, content string) (MessageBody, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > svc.maxMsgLen {
		return MessageBody{}, ErrInvalidMessage
	}

	svc.mu.Lock()
	username := svc.registry.Username(connID)
	if username == "" {
		svc.mu.Unlock()
		return MessageBody{}, ErrNotIdentified
	}
	if !svc.rooms.Has(room) {
		svc.mu.Unlock()
		return MessageBody{}, presence.ErrRoomNotFound
	}
	if !svc.members.IsMember(username, room) {
		svc.mu.Unlock()
		return MessageBody{}, ErrNotInRoom
	}
	sentAt := svc.now()
	svc.mu.Unlock()

	if err := svc.log.Append(ctx, msglog.Message{
		Room:     room,
		Username: username,
		Content:  content,
		SentAt:   sentAt,
	}); err != nil {
		zap.L().Warn("chat.msglog_append", zap.String("room", room), zap.Error(err))
	}

	body := MessageBody{
		Username:  username,
		Message:   content,
		Room:      room,
		Timestamp: sentAt.Format("15:04"),
	}
	svc.bus.ToRoom(room, EventMessage, body)
	return body, nil
}

// Disconnect tears the connection down. When it was the user's last live
// connection every membership is removed: one user_left per affected room,
// then exactly one global summary.
func (svc *chatService) Disconnect(connID string) {
	svc.mu.Lock()
	username, last := svc.registry.Unregister(connID)
	if !last {
		svc.mu.Unlock()
		return
	}

	rooms := svc.members.RemoveUserEverywhere(username)
	lefts := make([]UserLeftBody, 0, len(rooms))
	for _, room := range rooms {
		lefts = append(lefts, UserLeftBody{
			Username:    username,
			Room:        room,
			UsersInRoom: svc.onlineMembersLocked(room),
		})
	}
	snapshot := svc.snapshotLocked()
	svc.mu.Unlock()

	for _, left := range lefts {
		svc.bus.ToRoom(left.Room, EventUserLeft, left)
	}
	svc.bus.ToAll(EventUsersUpdated, snapshot)
}

// ────────────────────────────── queries ─────────────────────────────────────

func (svc *chatService) Rooms() []presence.RoomMetadata {
	return svc.rooms.List()
}

func (svc *chatService) RoomMembers(room string) ([]string, error) {
	if !svc.rooms.Has(room) {
		return nil, presence.ErrRoomNotFound
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.onlineMembersLocked(room), nil
}

func (svc *chatService) Snapshot() UsersUpdatedBody {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.snapshotLocked()
}

func (svc *chatService) History(ctx context.Context, room string, limit int) ([]msglog.Message, error) {
	if !svc.rooms.Has(room) {
		return nil, presence.ErrRoomNotFound
	}
	return svc.log.History(ctx, room, limit)
}

// ────────────────────────────── helpers ─────────────────────────────────────

// onlineMembersLocked filters the room's member list down to users with a
// live connection. Membership cleanup on disconnect keeps the two aligned,
// so the filter is a consistency guard, not a second source of truth.
func (svc *chatService) onlineMembersLocked(room string) []string {
	members := svc.members.MembersOf(room)
	out := make([]string, 0, len(members))
	for _, name := range members {
		if svc.registry.IsOnline(name) {
			out = append(out, name)
		}
	}
	return out
}

// snapshotLocked recomputes the global summary from the live sets; counters
// are derived, never cached.
func (svc *chatService) snapshotLocked() UsersUpdatedBody {
	online := svc.registry.OnlineUsers()
	body := UsersUpdatedBody{
		UsersTotal:  online,
		CountTotal:  len(online),
		UsersByRoom: make(map[string][]string),
		CountByRoom: make(map[string]int),
	}
	for _, slug := range svc.rooms.Slugs() {
		members := svc.onlineMembersLocked(slug)
		body.UsersByRoom[slug] = members
		body.CountByRoom[slug] = len(members)
	}
	return body
}
