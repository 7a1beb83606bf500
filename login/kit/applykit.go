// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kit

import (
	"context"

	"edgelogin.dev/cryptobox"
	"edgelogin.dev/errors"
	"edgelogin.dev/login"
	"edgelogin.dev/login/authclient"
	"edgelogin.dev/login/stashstore"
	"edgelogin.dev/login/tree"
)

// ApplyKit applies a single LoginKit to the server, then to the
// in-memory tree, then to disk, in that order (spec.md §4.5, §5).
func ApplyKit(ctx context.Context, loginTree *login.LoginTree, stashTree *login.LoginStash, store *stashstore.Store, fetcher authclient.Fetcher, k *login.LoginKit) (*login.LoginTree, *login.LoginStash, error) {
	const op errors.Op = "kit.ApplyKit"

	target, ok := tree.Search(loginTree, func(t *login.LoginTree) bool { return t.LoginID == k.LoginID })
	if !ok {
		return nil, nil, errors.E(op, errors.MissingLogin)
	}

	request, err := MakeAuthJSON(target)
	if err != nil {
		return nil, nil, errors.E(op, err)
	}
	request["data"] = k.Server

	if err := fetcher.Fetch(ctx, k.Method(), k.ServerPath, request, nil); err != nil {
		return nil, nil, errors.E(op, err)
	}

	newLoginTree := tree.Update(loginTree,
		func(t *login.LoginTree) bool { return t.LoginID == k.LoginID },
		func(t *login.LoginTree) *login.LoginTree { return mergeLoginTree(t, k.Login) },
	)
	newStashTree := tree.Update(stashTree,
		func(s *login.LoginStash) bool { return s.LoginID == k.LoginID },
		func(s *login.LoginStash) *login.LoginStash { return mergeLoginStash(s, k.Stash) },
	)

	if err := store.SaveStash(newStashTree); err != nil {
		return nil, nil, errors.E(op, err)
	}
	return newLoginTree, newStashTree, nil
}

// ApplyKits applies kits strictly sequentially: each kit's resulting
// tree feeds the next call. Parallel application is incorrect because
// kits mutate overlapping subtrees (spec.md §5).
func ApplyKits(ctx context.Context, loginTree *login.LoginTree, stashTree *login.LoginStash, store *stashstore.Store, fetcher authclient.Fetcher, kits []*login.LoginKit) (*login.LoginTree, *login.LoginStash, error) {
	for _, k := range kits {
		var err error
		loginTree, stashTree, err = ApplyKit(ctx, loginTree, stashTree, store, fetcher, k)
		if err != nil {
			return nil, nil, err
		}
	}
	return loginTree, stashTree, nil
}

// mergeLoginTree shallow-merges patch's non-zero fields into base,
// null-safely concatenating children and deduplicating keyInfos
// (spec.md §4.5 step 3). patch may be nil, in which case base is
// returned unchanged.
func mergeLoginTree(base *login.LoginTree, patch *login.LoginTree) *login.LoginTree {
	if patch == nil {
		return base
	}
	merged := *base
	if patch.OtpKey != "" {
		merged.OtpKey = patch.OtpKey
	}
	if patch.OtpResetDate != nil {
		merged.OtpResetDate = patch.OtpResetDate
	}
	if patch.OtpTimeout != 0 {
		merged.OtpTimeout = patch.OtpTimeout
	}
	if patch.LoginKey != nil {
		merged.LoginKey = patch.LoginKey
	}
	if patch.LoginAuth != nil {
		merged.LoginAuth = patch.LoginAuth
	}
	if patch.PasswordAuth != nil {
		merged.PasswordAuth = patch.PasswordAuth
	}
	if patch.Pin != "" {
		merged.Pin = patch.Pin
	}
	if patch.Pin2Key != nil {
		merged.Pin2Key = patch.Pin2Key
	}
	if patch.Recovery2Key != nil {
		merged.Recovery2Key = patch.Recovery2Key
	}
	merged.ChildTrees = concatLoginTrees(base.ChildTrees, patch.ChildTrees)
	merged.KeyInfos = mergeKeyInfos(base.KeyInfos, patch.KeyInfos)
	return &merged
}

// mergeLoginStash shallow-merges patch's non-zero OTP, voucher, box,
// snrp, pin2Key and recovery2Key fields into base, concatenating
// children and keyBoxes (spec.md §4.5 step 4). Identity fields (appId,
// loginId, userId, username, created, lastLogin) and the legacy
// mnemonic/rootKey/syncKey boxes are kept from base. patch may be nil.
func mergeLoginStash(base *login.LoginStash, patch *login.LoginStash) *login.LoginStash {
	if patch == nil {
		return base
	}
	merged := *base
	if patch.OtpKey != "" {
		merged.OtpKey = patch.OtpKey
	}
	if patch.OtpResetDate != nil {
		merged.OtpResetDate = patch.OtpResetDate
	}
	if patch.OtpTimeout != 0 {
		merged.OtpTimeout = patch.OtpTimeout
	}
	if patch.VoucherID != "" {
		merged.VoucherID = patch.VoucherID
	}
	if patch.VoucherAuth != "" {
		merged.VoucherAuth = patch.VoucherAuth
	}
	if patch.LoginAuthBox != nil {
		merged.LoginAuthBox = patch.LoginAuthBox
	}
	if patch.ParentBox != nil {
		merged.ParentBox = patch.ParentBox
	}
	if patch.PasswordAuthBox != nil {
		merged.PasswordAuthBox = patch.PasswordAuthBox
	}
	if patch.PasswordBox != nil {
		merged.PasswordBox = patch.PasswordBox
	}
	if patch.Pin2TextBox != nil {
		merged.Pin2TextBox = patch.Pin2TextBox
	}
	if patch.PasswordAuthSnrp != nil {
		merged.PasswordAuthSnrp = patch.PasswordAuthSnrp
	}
	if patch.PasswordKeySnrp != nil {
		merged.PasswordKeySnrp = patch.PasswordKeySnrp
	}
	if patch.Pin2Key != "" {
		merged.Pin2Key = patch.Pin2Key
	}
	if patch.Recovery2Key != "" {
		merged.Recovery2Key = patch.Recovery2Key
	}
	merged.KeyBoxes = concatBoxes(base.KeyBoxes, patch.KeyBoxes)
	merged.ChildStashes = append(append([]*login.LoginStash{}, base.ChildStashes...), patch.ChildStashes...)
	return &merged
}

func concatLoginTrees(a, b []*login.LoginTree) []*login.LoginTree {
	out := make([]*login.LoginTree, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func concatBoxes(a, b []*cryptobox.Box) []*cryptobox.Box {
	out := make([]*cryptobox.Box, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
