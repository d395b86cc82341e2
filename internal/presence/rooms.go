package presence

import "errors"

var ErrRoomNotFound = errors.New("room not found")

// RoomMetadata describes one chat room. Rooms are fixed at boot; nothing in
// the runtime path ever creates or mutates one.
type RoomMetadata struct {
	Slug        string `json:"slug"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// Directory resolves room slugs to metadata. It is populated once and
// read-only afterwards, so lookups need no locking.
type Directory struct {
	ordered []RoomMetadata
	bySlug  map[string]RoomMetadata
}

func NewDirectory(rooms []RoomMetadata) *Directory {
	d := &Directory{bySlug: make(map[string]RoomMetadata, len(rooms))}
	for _, r := range rooms {
		if _, dup := d.bySlug[r.Slug]; dup {
			continue
		}
		d.bySlug[r.Slug] = r
		d.ordered = append(d.ordered, r)
	}
	return d
}

// DefaultRooms is the boot-time room set.
func DefaultRooms() []RoomMetadata {
	return []RoomMetadata{
		{Slug: "geral", DisplayName: "Chat Geral", Description: "Converse com todos os usuários online"},
		{Slug: "programacao", DisplayName: "Programação", Description: "Discussões sobre desenvolvimento"},
		{Slug: "games", DisplayName: "Games", Description: "Chat sobre jogos e gaming"},
	}
}

func (d *Directory) Get(slug string) (RoomMetadata, error) {
	r, ok := d.bySlug[slug]
	if !ok {
		return RoomMetadata{}, ErrRoomNotFound
	}
	return r, nil
}

func (d *Directory) Has(slug string) bool {
	_, ok := d.bySlug[slug]
	return ok
}

// List returns rooms in insertion order.
func (d *Directory) List() []RoomMetadata {
	out := make([]RoomMetadata, len(d.ordered))
	copy(out, d.ordered)
	return out
}

// Slugs returns every room slug in insertion order.
func (d *Directory) Slugs() []string {
	out := make([]string, 0, len(d.ordered))
	for _, r := range d.ordered {
		out = append(out, r.Slug)
	}
	return out
}
