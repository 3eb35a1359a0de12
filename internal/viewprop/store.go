package viewprop

import (
	"maps"
	"sync"
)

// Props is the property map of one section.
type Props map[string]any

// Store is the view-prop state of a mounted panel: section key to property
// name to value. Section maps are replaced on every write, so a Props value
// handed out by Section is never mutated afterwards.
type Store struct {
	mu       sync.RWMutex
	sections map[string]Props
	onChange func(section string)
}

// NewStore returns an empty store. onChange, if non-nil, is called after a
// section's props changed, with only that section's key.
func NewStore(onChange func(section string)) *Store {
	return &Store{sections: make(map[string]Props), onChange: onChange}
}

// Set replaces the value of one property and keeps the other properties of
// the section unchanged. It has the Setter signature.
func (s *Store) Set(section, name string, value any) {
	s.mu.Lock()
	next := make(Props, len(s.sections[section])+1)
	maps.Copy(next, s.sections[section])
	next[name] = value
	s.sections[section] = next
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(section)
	}
}

// Section returns the props of a section, or nil if none were set.
func (s *Store) Section(section string) Props {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sections[section]
}

// Get returns a single property.
func (s *Store) Get(section, name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.sections[section][name]
	return v, ok
}

// Snapshot returns a copy of the whole store.
func (s *Store) Snapshot() map[string]Props {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.sections)
}
