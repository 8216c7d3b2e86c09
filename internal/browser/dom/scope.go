// internal/browser/dom/scope.go
package dom

import "sync"

// Scope mediates access to a document's node data. Any number of readers may hold
// it at once; a writer excludes all readers and other writers. The lock is held
// only for the duration of the closure and is released on every exit path.
type Scope struct {
	mu  sync.RWMutex
	doc *Document
}

// Read runs fn with a read-only view of the node named by h.
func (s *Scope) Read(h Handle, fn func(Node)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw := s.doc.lookup(h)
	if raw == nil {
		return ErrStaleHandle
	}
	fn(Node{doc: s.doc, raw: raw, id: h.ID})
	return nil
}

// Write runs fn with a mutable view of the node named by h.
func (s *Scope) Write(h Handle, fn func(Node) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := s.doc.lookup(h)
	if raw == nil {
		return ErrStaleHandle
	}
	return fn(Node{doc: s.doc, raw: raw, id: h.ID, writable: true})
}
