// Copyright 2026 The Mythforge Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

// ReleaseStack releases resources in reverse order of acquisition.
//
// Push each object right after it is created; ReleaseAll then tears
// everything down last-in first-out, the same order a chain of defers
// would use. The zero value is ready to use.
type ReleaseStack struct {
	entries []releaseEntry
}

type releaseEntry struct {
	name string
	fn   func()
}

// Push records r under name. A nil r is ignored.
func (s *ReleaseStack) Push(name string, r Releaser) {
	if r == nil {
		return
	}
	s.entries = append(s.entries, releaseEntry{name: name, fn: r.Release})
}

// PushFunc records an arbitrary cleanup function under name.
func (s *ReleaseStack) PushFunc(name string, fn func()) {
	if fn == nil {
		return
	}
	s.entries = append(s.entries, releaseEntry{name: name, fn: fn})
}

// Len returns the number of pending releases.
func (s *ReleaseStack) Len() int { return len(s.entries) }

// Names returns the recorded names in acquisition order.
func (s *ReleaseStack) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.name
	}
	return names
}

// ReleaseAll runs every recorded release, newest first, and empties the
// stack. It is safe to call on an empty stack.
func (s *ReleaseStack) ReleaseAll() {
	for i := len(s.entries) - 1; i >= 0; i-- {
		s.entries[i].fn()
	}
	s.entries = nil
}
