package ws

import (
	"encoding/json"

	"go.uber.org/zap"

	"roomchatgo/internal/presence"
)

// frameSender is the slice of the hub the dispatcher needs.
type frameSender interface {
	Send(connIDs []string, msg []byte)
}

// Dispatcher resolves an event's audience against the live presence tables
// and hands the frames to the hub. It implements the coordinator's
// Broadcaster contract.
type Dispatcher struct {
	hub      frameSender
	registry *presence.Registry
	members  *presence.Table
}

func NewDispatcher(hub frameSender, registry *presence.Registry, members *presence.Table) *Dispatcher {
	return &Dispatcher{hub: hub, registry: registry, members: members}
}

// ToRoom delivers to every live connection of every current room member.
func (d *Dispatcher) ToRoom(room, event string, payload any) {
	var connIDs []string
	for _, username := range d.members.MembersOf(room) {
		connIDs = append(connIDs, d.registry.ConnIDs(username)...)
	}
	d.send(connIDs, event, payload)
}

// ToAll delivers to every live connection, identified or not.
func (d *Dispatcher) ToAll(event string, payload any) {
	d.send(d.registry.AllConnIDs(), event, payload)
}

func (d *Dispatcher) send(connIDs []string, event string, payload any) {
	if len(connIDs) == 0 {
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Body: mustRaw(payload)})
	if err != nil {
		zap.L().Warn("ws.marshal_event", zap.String("event", event), zap.Error(err))
		return
	}
	d.hub.Send(connIDs, frame)
}

func mustRaw(payload any) json.RawMessage {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return b
}
