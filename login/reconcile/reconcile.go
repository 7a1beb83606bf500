// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reconcile implements the reply reconciler spec.md §4.4
// describes: merging a server LoginReply into a stash tree without
// trusting any reply field outside a fixed allowlist. This is the only
// component permitted to write network-sourced data into a stash.
package reconcile

import (
	"encoding/base64"

	"edgelogin.dev/cryptobox"
	"edgelogin.dev/errors"
	"edgelogin.dev/login"
	"edgelogin.dev/login/tree"
)

// ApplyLoginReply locates the stash node whose AppID matches reply's and
// replaces it with the result of merging reply into it, per spec.md
// §4.4.
func ApplyLoginReply(stashTree *login.LoginStash, loginKey []byte, reply *login.LoginReply) (*login.LoginStash, error) {
	const op errors.Op = "reconcile.ApplyLoginReply"
	var innerErr error
	updated := tree.Update(stashTree,
		func(s *login.LoginStash) bool { return s.AppID == reply.AppID },
		func(s *login.LoginStash) *login.LoginStash {
			merged, err := applyLoginReplyInner(s, loginKey, reply)
			if err != nil {
				innerErr = err
				return s
			}
			return merged
		},
	)
	if innerErr != nil {
		return nil, errors.E(op, errors.AppID(reply.AppID), innerErr)
	}
	return updated, nil
}

// allowlisted copies exactly the fields spec.md §4.4 step 1 trusts from
// reply. Every other field on LoginReply is read only to drive
// reconciliation (e.g. Children) and is never written into the stash.
func allowlisted(reply *login.LoginReply) *login.LoginStash {
	return &login.LoginStash{
		AppID:            reply.AppID,
		Created:          reply.Created,
		LoginID:          reply.LoginID,
		LoginAuthBox:     reply.LoginAuthBox,
		UserID:           reply.UserID,
		OtpKey:           reply.OtpKey,
		OtpResetDate:     reply.OtpResetDate,
		OtpTimeout:       reply.OtpTimeout,
		ParentBox:        reply.ParentBox,
		PasswordAuthBox:  reply.PasswordAuthBox,
		PasswordAuthSnrp: reply.PasswordAuthSnrp,
		PasswordBox:      reply.PasswordBox,
		PasswordKeySnrp:  reply.PasswordKeySnrp,
		Pin2TextBox:      reply.Pin2TextBox,
		MnemonicBox:      reply.MnemonicBox,
		RootKeyBox:       reply.RootKeyBox,
		SyncKeyBox:       reply.SyncKeyBox,
	}
}

// applyLoginReplyInner implements spec.md §4.4 steps 1-6 for a single
// node and recurses into children.
func applyLoginReplyInner(stash *login.LoginStash, loginKey []byte, reply *login.LoginReply) (*login.LoginStash, error) {
	const op errors.Op = "reconcile.applyLoginReplyInner"

	merged := allowlisted(reply)

	// Preserve client-only fields (step 2).
	if stash != nil {
		merged.LastLogin = stash.LastLogin
		merged.Username = stash.Username
		if merged.UserID == "" {
			merged.UserID = stash.UserID
		}
	}

	if reply.Pin2KeyBox != nil {
		pin2Key, err := cryptobox.Decrypt(loginKey, reply.Pin2KeyBox)
		if err != nil {
			return nil, errors.E(op, errors.KeyIntegrity, err)
		}
		merged.Pin2Key = base64.StdEncoding.EncodeToString(pin2Key)
	}
	if reply.Recovery2KeyBox != nil {
		recovery2Key, err := cryptobox.Decrypt(loginKey, reply.Recovery2KeyBox)
		if err != nil {
			return nil, errors.E(op, errors.KeyIntegrity, err)
		}
		merged.Recovery2Key = base64.StdEncoding.EncodeToString(recovery2Key)
	}

	// Step 5: keyBoxes is always overwritten wholesale.
	merged.KeyBoxes = reply.KeyBoxes

	// Step 6: recurse into children under the invariant that the
	// server can never cause a stash to lose children.
	var stashChildren []*login.LoginStash
	if stash != nil {
		stashChildren = stash.ChildStashes
	}
	if len(stashChildren) > len(reply.Children) {
		return nil, errors.E(op, errors.ServerLostChildren,
			errors.Errorf("stash has %d children, reply has %d", len(stashChildren), len(reply.Children)))
	}

	children := make([]*login.LoginStash, len(reply.Children))
	for i, replyChild := range reply.Children {
		childKey, err := decryptChildKey(replyChild, loginKey)
		if err != nil {
			return nil, errors.E(op, errors.AppID(replyChild.AppID), err)
		}
		var stashChild *login.LoginStash
		if i < len(stashChildren) {
			stashChild = stashChildren[i]
		} else {
			stashChild = &login.LoginStash{AppID: replyChild.AppID, LoginID: replyChild.LoginID}
		}
		childStash, err := applyLoginReplyInner(stashChild, childKey, replyChild)
		if err != nil {
			return nil, err
		}
		children[i] = childStash
	}
	merged.ChildStashes = children

	return merged, nil
}

func decryptChildKey(reply *login.LoginReply, parentKey []byte) ([]byte, error) {
	const op errors.Op = "reconcile.decryptChildKey"
	if reply.ParentBox == nil {
		return nil, errors.E(op, errors.KeyIntegrity, errors.Str("reply child has no parentBox"))
	}
	return cryptobox.Decrypt(parentKey, reply.ParentBox)
}
