// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kit

import "edgelogin.dev/login"

// SanitizeLoginStash projects stashTree down to what a cooperating app
// scoped to appID is allowed to see: the matching subtree verbatim,
// every ancestor reduced to {username, appId, loginId, children}
// (spec.md §4.5 "Sanitization for edge login"). It is idempotent:
// sanitizing an already-sanitized tree for the same appID returns an
// equivalent tree.
func SanitizeLoginStash(stashTree *login.LoginStash, appID string) *login.LoginStash {
	sanitized, _ := sanitize(stashTree, appID)
	return sanitized
}

// sanitize returns the sanitized node plus whether appID lies anywhere
// in its subtree, so the caller can decide whether to keep a sibling's
// children in full or reduce them.
func sanitize(stash *login.LoginStash, appID string) (*login.LoginStash, bool) {
	if stash.AppID == appID {
		return stash, true
	}

	children := make([]*login.LoginStash, len(stash.ChildStashes))
	onPath := false
	for i, child := range stash.ChildStashes {
		sanitizedChild, childOnPath := sanitize(child, appID)
		children[i] = sanitizedChild
		onPath = onPath || childOnPath
	}

	if onPath {
		// This node is an ancestor of the target: keep identity only,
		// but its children carry the real subtree (verbatim target
		// plus reduced siblings).
		return &login.LoginStash{
			Username:     stash.Username,
			AppID:        stash.AppID,
			LoginID:      stash.LoginID,
			ChildStashes: children,
		}, true
	}

	// Outside the target subtree entirely: reduce to identity with no
	// children, since nothing below here is reachable anyway.
	return &login.LoginStash{
		Username: stash.Username,
		AppID:    stash.AppID,
		LoginID:  stash.LoginID,
	}, false
}
