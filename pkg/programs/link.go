// Package programs holds what all program kinds share: the error taxonomy and
// the link abstraction used to track attachments.
package programs

import (
	"errors"
	"fmt"
	"sync"
)

// Link is an attachment of a program. Detaching consumes the link.
//
// Program kinds that are usable right after loading implement it as a no-op
// so they can be handled like every other kind.
type Link[ID comparable] interface {
	ID() ID
	Detach() error
}

// LinkMap tracks the live links of one program by id.
type LinkMap[ID comparable, L Link[ID]] struct {
	mu    sync.Mutex
	links map[ID]L
}

// NewLinkMap creates an empty LinkMap.
func NewLinkMap[ID comparable, L Link[ID]]() *LinkMap[ID, L] {
	return &LinkMap[ID, L]{links: make(map[ID]L)}
}

// Insert starts tracking l. Ids are unique per map.
func (m *LinkMap[ID, L]) Insert(l L) (ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := l.ID()
	if _, exists := m.links[id]; exists {
		return id, ErrAlreadyAttached
	}
	m.links[id] = l
	return id, nil
}

// Remove stops tracking the link with the given id and detaches it.
func (m *LinkMap[ID, L]) Remove(id ID) error {
	l, err := m.Forget(id)
	if err != nil {
		return err
	}
	return l.Detach()
}

// Forget stops tracking the link with the given id without detaching it.
func (m *LinkMap[ID, L]) Forget(id ID) (L, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, exists := m.links[id]
	if !exists {
		var zero L
		return zero, ErrNotAttached
	}
	delete(m.links, id)
	return l, nil
}

// Len returns the number of tracked links.
func (m *LinkMap[ID, L]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

// RemoveAll detaches every tracked link. It keeps going on failure and
// returns all errors joined.
func (m *LinkMap[ID, L]) RemoveAll() error {
	m.mu.Lock()
	links := m.links
	m.links = make(map[ID]L)
	m.mu.Unlock()

	var errs []error
	for id, l := range links {
		if err := l.Detach(); err != nil {
			errs = append(errs, fmt.Errorf("failed to detach link %v: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
