// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package events implements the typed event channel spec.md §9 calls
// for in place of the source's reactive store: a small mutex-guarded
// registry of listeners, fanned out synchronously after the disk
// operation that triggered them succeeds. The registration idiom
// (mutex-guarded slice, called in registration order) is grounded on
// shutdown.Handle's handler list.
package events

import "sync"

// LoginStashSaved is emitted after saveStash successfully writes a
// stash to disk (spec.md §4.1, §9).
type LoginStashSaved struct {
	Stash interface{}
}

// LoginStashDeleted is emitted after removeStash successfully deletes
// every stash file for a username (spec.md §4.1, §9).
type LoginStashDeleted struct {
	Username string
}

var registry struct {
	mu             sync.Mutex
	onStashSaved   []func(LoginStashSaved)
	onStashDeleted []func(LoginStashDeleted)
}

// OnStashSaved registers a listener called synchronously every time a
// LoginStashSaved event fires. Listeners are called in registration
// order.
func OnStashSaved(f func(LoginStashSaved)) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.onStashSaved = append(registry.onStashSaved, f)
}

// OnStashDeleted registers a listener called synchronously every time a
// LoginStashDeleted event fires.
func OnStashDeleted(f func(LoginStashDeleted)) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.onStashDeleted = append(registry.onStashDeleted, f)
}

// EmitStashSaved fires a LoginStashSaved event to every registered
// listener. Called by stashstore.SaveStash after a successful write.
func EmitStashSaved(e LoginStashSaved) {
	registry.mu.Lock()
	listeners := append([]func(LoginStashSaved){}, registry.onStashSaved...)
	registry.mu.Unlock()
	for _, f := range listeners {
		f(e)
	}
}

// EmitStashDeleted fires a LoginStashDeleted event to every registered
// listener. Called by stashstore.RemoveStash after successful deletion.
func EmitStashDeleted(e LoginStashDeleted) {
	registry.mu.Lock()
	listeners := append([]func(LoginStashDeleted){}, registry.onStashDeleted...)
	registry.mu.Unlock()
	for _, f := range listeners {
		f(e)
	}
}
