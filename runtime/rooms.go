package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"log/slog"
	"sync"
)

// Rooms hands out one Registry per chat.
// A registry exists only while at least one identity is joined to its chat:
// Join creates it, and Leave or Release drop it once it is empty.
type Rooms struct {
	mu         sync.Mutex
	registries map[domain.ChatID]*Registry
	log        *slog.Logger
}

func NewRooms(log *slog.Logger) *Rooms {
	return &Rooms{registries: make(map[domain.ChatID]*Registry), log: log}
}

// Join registers conn for identity in the chat and returns the chat's registry
// with the connection it replaced, if any.
// Creation and insertion happen under the rooms lock so a concurrent Release
// never drops a registry somebody is joining.
func (r *Rooms) Join(chatID domain.ChatID, identity string, conn contract.LiveConnection) (contract.IRegistry, contract.LiveConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	registry, ok := r.registries[chatID]
	if !ok {
		registry = NewRegistry(r.log.With("chat_id", chatID))
		r.registries[chatID] = registry
	}
	return registry, registry.Connect(identity, conn)
}

// Leave removes identity from the chat while it still points to conn,
// and drops the chat's registry when nobody is left.
func (r *Rooms) Leave(chatID domain.ChatID, identity string, conn contract.LiveConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	registry, ok := r.registries[chatID]
	if !ok {
		return false
	}
	left := registry.Leave(identity, conn)
	r.releaseLocked(chatID, registry)
	return left
}

// Release drops the chat's registry if it is empty, e.g. after a broadcast pruned its last recipients.
func (r *Rooms) Release(chatID domain.ChatID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if registry, ok := r.registries[chatID]; ok {
		r.releaseLocked(chatID, registry)
	}
}

func (r *Rooms) releaseLocked(chatID domain.ChatID, registry *Registry) {
	if registry.Len() == 0 {
		delete(r.registries, chatID)
		r.log.Debug("Chat registry released", "chat_id", chatID)
	}
}

// Members returns the identities joined to the chat, sorted. Unknown chats have none.
func (r *Rooms) Members(chatID domain.ChatID) []string {
	r.mu.Lock()
	registry, ok := r.registries[chatID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return registry.Online()
}

// Len is the number of chats with at least one joined identity.
func (r *Rooms) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.registries)
}

// Online counts registered connections across every chat.
func (r *Rooms) Online() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for _, registry := range r.registries {
		total += registry.Len()
	}
	return total
}

// CloseAll drops every registry and closes the connections they held.
func (r *Rooms) CloseAll() {
	r.mu.Lock()
	registries := make([]*Registry, 0, len(r.registries))
	for chatID, registry := range r.registries {
		registries = append(registries, registry)
		delete(r.registries, chatID)
	}
	r.mu.Unlock()

	for _, registry := range registries {
		registry.CloseAll()
	}
}
