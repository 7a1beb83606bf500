// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tree implements the generic recursive search/update/clone
// layer spec.md §4.2 describes: a small algorithm shared by the stash
// tree and the login tree, parameterized by node shape via Go generics.
// The walking order (pre-order depth-first, first match wins, full
// rebuild via clone) is grounded on the recursive descent structure of
// dir/server/tree/tree.go's own Log/LogIndex tree walker, adapted from
// a version-log tree to an immutable value tree.
package tree

// Node is the shape every tree engine node must implement: it can
// report its children and produce a copy of itself with a different
// child list. LoginStash and LoginTree both implement Node.
type Node[T any] interface {
	Children() []T
	WithChildren(children []T) T
}

// Search returns the first node in a pre-order depth-first traversal of
// root for which predicate reports true.
func Search[T Node[T]](root T, predicate func(T) bool) (T, bool) {
	if predicate(root) {
		return root, true
	}
	for _, child := range root.Children() {
		if found, ok := Search(child, predicate); ok {
			return found, true
		}
	}
	var zero T
	return zero, false
}

// Update returns a new tree in which the first node matched by
// predicate (pre-order) is replaced by transform(match); every other
// node, ancestor or not, is rebuilt via WithChildren so the result is a
// full clone even when no node matches transform.
//
// If multiple nodes match, only the first encountered in pre-order is
// transformed; spec.md §4.2 relies on this because callers always match
// on a unique identifier (appId or loginId).
func Update[T Node[T]](root T, predicate func(T) bool, transform func(T) T) T {
	matched := false
	var walk func(T) T
	walk = func(node T) T {
		if !matched && predicate(node) {
			matched = true
			return transform(node)
		}
		children := node.Children()
		if len(children) == 0 {
			return node.WithChildren(children)
		}
		newChildren := make([]T, len(children))
		for i, child := range children {
			newChildren[i] = walk(child)
		}
		return node.WithChildren(newChildren)
	}
	return walk(root)
}
