package navigation

import (
	"sort"
	"sync"
)

// History is a browser-style session history.
type History interface {
	// State returns the current entry's payload; ok is false when the entry
	// has no state attached.
	State() (entry Entry, ok bool)
	Push(entry Entry)
	Replace(entry Entry)
	Back()
	Forward()
	Len() int
	// OnPop registers fn for back/forward traversals.
	OnPop(fn func(entry Entry, ok bool)) (cancel func())
}

type slot struct {
	entry Entry
	set   bool
}

// MemoryHistory is an in-memory History. Push truncates forward entries.
// Back and Forward notify pop listeners synchronously once the index moved.
type MemoryHistory struct {
	mu        sync.Mutex
	entries   []slot
	index     int
	listeners map[int]func(Entry, bool)
	nextID    int
}

// NewMemoryHistory starts with one entry without state, like a fresh page.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		entries:   []slot{{}},
		listeners: map[int]func(Entry, bool){},
	}
}

func (h *MemoryHistory) State() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	current := h.entries[h.index]
	return current.entry, current.set
}

func (h *MemoryHistory) Push(entry Entry) {
	h.mu.Lock()
	h.entries = append(h.entries[:h.index+1], slot{entry: entry, set: true})
	h.index = len(h.entries) - 1
	h.mu.Unlock()
}

func (h *MemoryHistory) Replace(entry Entry) {
	h.mu.Lock()
	h.entries[h.index] = slot{entry: entry, set: true}
	h.mu.Unlock()
}

func (h *MemoryHistory) Back() {
	h.traverse(-1)
}

func (h *MemoryHistory) Forward() {
	h.traverse(1)
}

// Go moves delta entries, like history.go(delta). Out of range is a no-op.
func (h *MemoryHistory) Go(delta int) {
	h.traverse(delta)
}

func (h *MemoryHistory) traverse(delta int) {
	h.mu.Lock()
	target := h.index + delta
	if delta == 0 || target < 0 || target >= len(h.entries) {
		h.mu.Unlock()
		return
	}
	h.index = target
	current := h.entries[target]
	listeners := h.snapshotListeners()
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(current.entry, current.set)
	}
}

// Len returns the number of entries on the stack.
func (h *MemoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Index returns the position of the current entry.
func (h *MemoryHistory) Index() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index
}

func (h *MemoryHistory) OnPop(fn func(Entry, bool)) func() {
	if fn == nil {
		return func() {}
	}
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Listeners reports how many pop listeners are installed.
func (h *MemoryHistory) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

func (h *MemoryHistory) snapshotListeners() []func(Entry, bool) {
	ids := make([]int, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Entry, bool), 0, len(ids))
	for _, id := range ids {
		out = append(out, h.listeners[id])
	}
	return out
}
