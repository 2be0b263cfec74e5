package dom

import (
	"sync"
)

// History is the session history of a Document. Push records an entry and
// moves the location without loading; Back/Forward move through entries and
// fire popstate listeners, leaving the reload to whoever listens.
type History struct {
	doc *Document

	mu       sync.Mutex
	entries  []string
	index    int
	popstate []func()
}

// NewHistory creates an empty history for doc.
func NewHistory(doc *Document) *History {
	return &History{doc: doc, index: -1}
}

// Push resolves ref against the document location, drops forward entries,
// appends the new entry and sets the location to it.
func (h *History) Push(ref string) error {
	u, err := h.doc.Resolve(ref)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.entries = append(h.entries[:h.index+1], u.String())
	h.index = len(h.entries) - 1
	h.mu.Unlock()
	h.doc.SetLocation(u)
	return nil
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Position returns the 1-based position of the current entry, 0 when empty.
func (h *History) Position() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index + 1
}

// OnPopState registers fn to run after every Back/Forward traversal.
func (h *History) OnPopState(fn func()) {
	h.mu.Lock()
	h.popstate = append(h.popstate, fn)
	h.mu.Unlock()
}

// Back moves one entry back. It reports false at the first entry.
func (h *History) Back() bool { return h.Go(-1) }

// Forward moves one entry forward. It reports false at the last entry.
func (h *History) Forward() bool { return h.Go(1) }

// Go moves delta entries and fires popstate. Out-of-range moves do nothing.
func (h *History) Go(delta int) bool {
	h.mu.Lock()
	target := h.index + delta
	if delta == 0 || target < 0 || target >= len(h.entries) {
		h.mu.Unlock()
		return false
	}
	h.index = target
	entry := h.entries[target]
	listeners := append([]func(){}, h.popstate...)
	h.mu.Unlock()

	u, err := h.doc.Resolve(entry)
	if err == nil {
		h.doc.SetLocation(u)
	}
	for _, fn := range listeners {
		fn()
	}
	return true
}
