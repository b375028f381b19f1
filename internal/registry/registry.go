package registry

import (
	"github.com/inkwell-md/inkwell/internal/protocol"
)

// Conn is a non-owning handle to a connected client. Send queues a message
// for delivery and reports false when the client is gone; the registry
// treats a failed send as the removal signal rather than an error.
type Conn interface {
	Send(msg protocol.ServerMessage) bool
}

type entry struct {
	id   protocol.EditorID
	conn Conn
}

// Registry tracks the subscribers of one subject (a project, or one of a
// file's two views). It does no locking of its own: every registry is owned
// by exactly one project and is only touched under that project's mutex.
type Registry struct {
	entries []entry
}

// Subscribe adds a subscriber and reports whether it was new. Re-subscribing
// an already-subscribed id is a no-op; callers use the return value to
// decide whether an initial full-state push is needed.
func (r *Registry) Subscribe(id protocol.EditorID, conn Conn) bool {
	for _, e := range r.entries {
		if e.id == id {
			return false
		}
	}
	r.entries = append(r.entries, entry{id: id, conn: conn})
	return true
}

// Unsubscribe removes a subscriber if present.
func (r *Registry) Unsubscribe(id protocol.EditorID) {
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// Broadcast delivers msg to every subscriber except the one identified by
// except (protocol.NoEditor excludes nobody). Subscribers whose handle no
// longer delivers are pruned after the iteration completes, never during it.
// Delivery order per subscriber follows broadcast order; there is no
// ordering guarantee across subscribers.
func (r *Registry) Broadcast(msg protocol.ServerMessage, except protocol.EditorID) {
	var dead []protocol.EditorID
	for _, e := range r.entries {
		if except != protocol.NoEditor && e.id == except {
			continue
		}
		if !e.conn.Send(msg) {
			dead = append(dead, e.id)
		}
	}
	for _, id := range dead {
		r.Unsubscribe(id)
	}
}

// Len reports the number of subscribers, dead handles included until the
// next broadcast prunes them.
func (r *Registry) Len() int {
	return len(r.entries)
}
