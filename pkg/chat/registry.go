package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/atultiwari1305/coon/pkg/metrics"
)

// Connection is one live client endpoint. Send must not block: it queues
// the event or returns an error immediately, and an error means the
// connection cannot keep up and will be dropped from the room.
type Connection interface {
	ID() string
	Send(ev *Event) error
}

// Registry tracks which live connections are subscribed to which rooms
// and fans events out to them. Membership is a set of (connection, room)
// pairs; one connection may sit in any number of rooms. State is
// process-lifetime only — clients re-join on reconnect.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Connection // room -> conn ID -> conn
	conns map[string]map[string]bool       // conn ID -> rooms
	log   zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]map[string]Connection),
		conns: make(map[string]map[string]bool),
		log:   log.With().Str("component", "registry").Logger(),
	}
}

// Subscribe adds the (connection, room) pair. Idempotent.
func (r *Registry) Subscribe(conn Connection, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]Connection)
	}
	r.rooms[room][conn.ID()] = conn

	if r.conns[conn.ID()] == nil {
		r.conns[conn.ID()] = make(map[string]bool)
	}
	r.conns[conn.ID()][room] = true
}

// Unsubscribe removes the (connection, room) pair.
func (r *Registry) Unsubscribe(conn Connection, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop(conn.ID(), room)
}

// UnsubscribeAll removes the connection from every room. Called on
// disconnect.
func (r *Registry) UnsubscribeAll(conn Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.conns[conn.ID()] {
		r.drop(conn.ID(), room)
	}
}

func (r *Registry) drop(connID, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if rooms, ok := r.conns[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.conns, connID)
		}
	}
}

// Broadcast delivers the event to every connection subscribed to the
// room. Best effort: a connection that cannot take the event is dropped
// from the room, and delivery to the rest continues.
func (r *Registry) Broadcast(room string, ev *Event) {
	r.mu.RLock()
	targets := make([]Connection, 0, len(r.rooms[room]))
	for _, conn := range r.rooms[room] {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	var stuck []Connection
	for _, conn := range targets {
		if err := conn.Send(ev); err != nil {
			stuck = append(stuck, conn)
		}
	}

	if len(stuck) > 0 {
		r.mu.Lock()
		for _, conn := range stuck {
			r.drop(conn.ID(), room)
			metrics.BroadcastDrops.Inc()
			r.log.Warn().Str("conn", conn.ID()).Str("room", room).Msg("dropped connection that could not keep up")
		}
		r.mu.Unlock()
	}
}
