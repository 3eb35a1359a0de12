// Package viewprop carries view-model properties from tool workers into the
// live state of the mounted panel.
package viewprop

import "sync"

// Setter merges one property value into a section of the live panel state.
type Setter func(section, name string, value any)

// Channel forwards pushes to the setter of the mounted panel. Only one panel
// is live at a time: Register replaces any previous setter. Pushes made
// while no setter is registered are dropped, never queued.
type Channel struct {
	mu     sync.RWMutex
	setter Setter
	gen    uint64
}

// Registration is one panel's hold on a Channel. It stops acting on the
// channel as soon as a later Register replaces it.
type Registration struct {
	ch  *Channel
	gen uint64
}

// NewChannel returns a channel with no panel registered.
func NewChannel() *Channel {
	return &Channel{}
}

// Register installs setter, replacing the previous one.
func (c *Channel) Register(setter Setter) *Registration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.setter = setter
	return &Registration{ch: c, gen: c.gen}
}

// Unregister removes the setter. Once it returns, no push reaches the old setter.
func (c *Channel) Unregister() {
	c.mu.Lock()
	c.setter = nil
	c.mu.Unlock()
}

// Registered reports whether a panel is mounted.
func (c *Channel) Registered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.setter != nil
}

// Push sets the named property of a section. It reports false when no panel
// is registered, in which case the value is discarded.
func (c *Channel) Push(section, name string, value any) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.setter == nil {
		return false
	}
	c.setter(section, name, value)
	return true
}

// Current reports whether r is still the live registration.
func (r *Registration) Current() bool {
	r.ch.mu.RLock()
	defer r.ch.mu.RUnlock()
	return r.current()
}

func (r *Registration) current() bool {
	return r.ch.setter != nil && r.ch.gen == r.gen
}

// Push is Channel.Push restricted to the owner of r: once r has been
// replaced or unregistered the value is discarded.
func (r *Registration) Push(section, name string, value any) bool {
	r.ch.mu.RLock()
	defer r.ch.mu.RUnlock()
	if !r.current() {
		return false
	}
	r.ch.setter(section, name, value)
	return true
}

// Unregister removes the setter if r is still the live registration. A
// replaced registration leaves the newer panel attached.
func (r *Registration) Unregister() {
	r.ch.mu.Lock()
	defer r.ch.mu.Unlock()
	if r.ch.gen == r.gen {
		r.ch.setter = nil
	}
}
