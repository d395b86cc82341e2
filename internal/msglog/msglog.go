package msglog

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Stream tailed by the background persister.
	Stream = "chat_messages"

	// Per-room capped stream serving recent history without touching
	// Postgres.
	roomStreamPrefix = "chat:"
	roomStreamSuffix = ":msgs"
	roomStreamMaxLen = 500
)

type Message struct {
	Room     string    `json:"room"`
	Username string    `json:"username"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
}

// Store is the append-only message log the presence core writes to and reads
// from. Durability is decoupled from the live path: Append only touches
// Redis, Postgres catches up via the stream persister.
type Store interface {
	Append(ctx context.Context, m Message) error
	History(ctx context.Context, room string, limit int) ([]Message, error)
}

type store struct {
	rdc *redis.Client
	db  *sql.DB
}

func New(rdc *redis.Client, db *sql.DB) Store {
	return &store{rdc: rdc, db: db}
}

func RoomStream(room string) string {
	return roomStreamPrefix + room + roomStreamSuffix
}

// Append pushes the message onto the global persister stream and the room's
// capped history stream in one pipelined round-trip.
func (s *store) Append(ctx context.Context, m Message) error {
	// Slice form keeps the field order deterministic on the wire.
	values := []any{
		"room", m.Room,
		"username", m.Username,
		"content", m.Content,
		"at", strconv.FormatInt(m.SentAt.Unix(), 10),
	}

	pipe := s.rdc.Pipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		Values: values,
	})
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: RoomStream(m.Room),
		MaxLen: roomStreamMaxLen,
		Approx: true,
		Values: values,
	})
	_, err := pipe.Exec(ctx)
	return err
}

// History returns the last limit messages of a room, oldest first. The room
// stream is the fast path; when it cannot fill the request (capped away, or
// Redis unavailable) Postgres is authoritative.
func (s *store) History(ctx context.Context, room string, limit int) ([]Message, error) {
	if msgs, ok := s.historyFromStream(ctx, room, limit); ok {
		return msgs, nil
	}
	return s.historyFromDb(ctx, room, limit)
}

func (s *store) historyFromStream(ctx context.Context, room string, limit int) ([]Message, bool) {
	entries, err := s.rdc.XRevRangeN(ctx, RoomStream(room), "+", "-", int64(limit)).Result()
	if err != nil || len(entries) < limit {
		return nil, false
	}

	// XRevRange yields newest first; flip to chronological.
	msgs := make([]Message, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		msgs = append(msgs, fromStreamValues(room, entries[i].Values))
	}
	return msgs, true
}

func fromStreamValues(room string, v map[string]any) Message {
	m := Message{Room: room}
	if s, ok := v["username"].(string); ok {
		m.Username = s
	}
	if s, ok := v["content"].(string); ok {
		m.Content = s
	}
	if s, ok := v["at"].(string); ok {
		sec, _ := strconv.ParseInt(s, 10, 64)
		m.SentAt = time.Unix(sec, 0).UTC()
	}
	return m
}

func (s *store) historyFromDb(ctx context.Context, room string, limit int) ([]Message, error) {
	const q = `SELECT username, content, sent_at
	             FROM messages
	            WHERE room = $1
	            ORDER BY sent_at DESC, id DESC
	            LIMIT $2`

	rows, err := s.db.QueryContext(ctx, q, room, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	newestFirst := make([]Message, 0, limit)
	for rows.Next() {
		m := Message{Room: room}
		if err := rows.Scan(&m.Username, &m.Content, &m.SentAt); err != nil {
			return nil, err
		}
		newestFirst = append(newestFirst, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		msgs = append(msgs, newestFirst[i])
	}
	return msgs, nil
}
