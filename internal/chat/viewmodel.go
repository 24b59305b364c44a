package chat

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Muhaimin-ops/chat-with-doc/internal/storage/models"
)

// ViewModel mirrors the active session for connected clients: the ordered
// message list, the named URL groups, and transient flags. Optimistically
// appended messages are reconciled with their persisted identity strictly by
// correlation token, never by inferred UI state.
type ViewModel struct {
	mu sync.Mutex

	sessionID string
	messages  []*models.ChatMessage
	pending   map[string]*models.ChatMessage // correlation token -> message

	groups        []models.URLGroup
	activeGroupID string

	turnActive         bool
	suggestionsLoading bool
}

func NewViewModel() *ViewModel {
	return &ViewModel{pending: make(map[string]*models.ChatMessage)}
}

// Reset replaces the mirrored session. Unreconciled optimistic messages are
// dropped; they belong to an abandoned view.
func (vm *ViewModel) Reset(sessionID string, messages []*models.ChatMessage) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.sessionID = sessionID
	vm.messages = append([]*models.ChatMessage(nil), messages...)
	vm.pending = make(map[string]*models.ChatMessage)
}

func (vm *ViewModel) SessionID() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.sessionID
}

// AppendOptimistic adds a locally created message and returns its correlation
// token. The message may not yet have a persisted identifier.
func (vm *ViewModel) AppendOptimistic(msg *models.ChatMessage) string {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	token := uuid.New().String()
	vm.messages = append(vm.messages, msg)
	vm.pending[token] = msg

	return token
}

// Reconcile binds the persisted identifier to the message created under the
// token. Returns false for an unknown (already reconciled or dropped) token.
func (vm *ViewModel) Reconcile(token, remoteID string) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	msg, ok := vm.pending[token]
	if !ok {
		return false
	}

	msg.ID = remoteID
	delete(vm.pending, token)
	return true
}

// Apply replaces the state of the message with the given persisted id.
func (vm *ViewModel) Apply(updated *models.ChatMessage) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	for i, msg := range vm.messages {
		if msg.ID != "" && msg.ID == updated.ID {
			vm.messages[i] = updated
			return true
		}
	}
	return false
}

// Messages returns a snapshot of the ordered message list.
func (vm *ViewModel) Messages() []*models.ChatMessage {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]*models.ChatMessage(nil), vm.messages...)
}

func (vm *ViewModel) SetGroups(groups []models.URLGroup) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.groups = append([]models.URLGroup(nil), groups...)
	if vm.activeGroupID == "" && len(vm.groups) > 0 {
		vm.activeGroupID = vm.groups[0].ID
	}
}

func (vm *ViewModel) UpsertGroup(group models.URLGroup) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	for i := range vm.groups {
		if vm.groups[i].ID == group.ID {
			vm.groups[i] = group
			return
		}
	}
	vm.groups = append(vm.groups, group)
	if vm.activeGroupID == "" {
		vm.activeGroupID = group.ID
	}
}

// RemoveGroup drops the group; if it was active, another remaining group is
// selected, or the active pointer is cleared when none remain.
func (vm *ViewModel) RemoveGroup(id string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	kept := vm.groups[:0]
	for _, g := range vm.groups {
		if g.ID != id {
			kept = append(kept, g)
		}
	}
	vm.groups = kept

	if vm.activeGroupID == id {
		if len(vm.groups) > 0 {
			vm.activeGroupID = vm.groups[0].ID
		} else {
			vm.activeGroupID = ""
		}
	}
}

func (vm *ViewModel) SetActiveGroup(id string) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	for _, g := range vm.groups {
		if g.ID == id {
			vm.activeGroupID = id
			return true
		}
	}
	return false
}

func (vm *ViewModel) ActiveGroup() (models.URLGroup, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	for _, g := range vm.groups {
		if g.ID == vm.activeGroupID {
			return g, true
		}
	}
	return models.URLGroup{}, false
}

func (vm *ViewModel) SetTurnActive(active bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.turnActive = active
}

// Busy reports whether sending should be disabled.
func (vm *ViewModel) Busy() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.turnActive || vm.suggestionsLoading
}

func (vm *ViewModel) SetSuggestionsLoading(loading bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.suggestionsLoading = loading
}
