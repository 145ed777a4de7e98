package runtime

import (
	"chat-relay/contract"
	"log/slog"
	"sort"
	"sync"
)

// Registry maps each online identity of a chat to its live connection.
// It references connections but never owns them, except in CloseAll.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]contract.LiveConnection
	log     *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]contract.LiveConnection),
		log:     log,
	}
}

// Connect inserts or replaces the entry of identity.
// The replaced connection, if any, is returned so the caller can close it.
func (r *Registry) Connect(identity string, conn contract.LiveConnection) contract.LiveConnection {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.entries[identity]
	r.entries[identity] = conn
	if previous == conn {
		return nil
	}
	return previous
}

// Disconnect removes identity. Removing an absent identity is a no-op.
func (r *Registry) Disconnect(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, identity)
}

// Leave removes identity only while it still points to conn.
// A session tearing down after being replaced must not evict its successor.
func (r *Registry) Leave(identity string, conn contract.LiveConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.entries[identity]; ok && current == conn {
		delete(r.entries, identity)
		return true
	}
	return false
}

type entry struct {
	identity string
	conn     contract.LiveConnection
}

// Broadcast delivers text to every entry except exclude.
// Delivery is attempted for all recipients on a snapshot taken under the read lock;
// recipients whose send failed are removed afterwards and returned.
func (r *Registry) Broadcast(text, exclude string) []string {
	r.mu.RLock()
	recipients := make([]entry, 0, len(r.entries))
	for identity, conn := range r.entries {
		if identity == exclude {
			continue
		}
		recipients = append(recipients, entry{identity: identity, conn: conn})
	}
	r.mu.RUnlock()

	var failed []entry
	for _, recipient := range recipients {
		if err := recipient.conn.SendText(text); err != nil {
			r.log.Warn("Delivery failed", "identity", recipient.identity, "error", err)
			failed = append(failed, recipient)
		}
	}
	if len(failed) == 0 {
		return nil
	}

	pruned := make([]string, 0, len(failed))
	for _, f := range failed {
		if r.Leave(f.identity, f.conn) {
			r.log.Info("Recipient pruned", "identity", f.identity)
		}
		pruned = append(pruned, f.identity)
	}
	return pruned
}

// Online returns the registered identities, sorted.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identities := make([]string, 0, len(r.entries))
	for identity := range r.entries {
		identities = append(identities, identity)
	}
	sort.Strings(identities)
	return identities
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// CloseAll empties the registry and closes every connection it held.
// Used on shutdown to unblock sessions waiting on ReceiveText.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]contract.LiveConnection, 0, len(r.entries))
	for identity, conn := range r.entries {
		conns = append(conns, conn)
		delete(r.entries, identity)
	}
	r.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}
