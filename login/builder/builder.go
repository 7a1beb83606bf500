// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package builder implements the login tree builder spec.md §4.3
// describes: decrypting a stash tree into an in-memory login tree,
// deriving each child's key from its parent's, while leaving every
// subtree outside the requested appId as an "outer clone" that exposes
// no decrypted material.
package builder

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"edgelogin.dev/cryptobox"
	"edgelogin.dev/errors"
	"edgelogin.dev/login"
	"edgelogin.dev/login/tree"
)

// MakeLoginTree locates the stash node whose AppID equals appID and
// returns the LoginTree rooted at stashRoot in which that node's subtree
// is decrypted, while its ancestors and every sibling subtree that does
// not lead to it are outer clones.
func MakeLoginTree(stashRoot *login.LoginStash, loginKey []byte, appID string) (*login.LoginTree, error) {
	const op errors.Op = "builder.MakeLoginTree"
	result, err := build(stashRoot, loginKey, appID)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return result, nil
}

// build recurses from stash with its decryption key, fully decrypting
// the subtree once it reaches the node whose AppID matches target, and
// outer-cloning any sibling subtree that does not contain it.
func build(stash *login.LoginStash, key []byte, target string) (*login.LoginTree, error) {
	const op errors.Op = "builder.build"
	if stash.AppID == target {
		return makeLoginTreeInner(stash, key)
	}

	children := make([]*login.LoginTree, len(stash.ChildStashes))
	for i, child := range stash.ChildStashes {
		if containsAppID(child, target) {
			childKey, err := decryptParentBox(child, key)
			if err != nil {
				return nil, errors.E(op, errors.AppID(child.AppID), err)
			}
			built, err := build(child, childKey, target)
			if err != nil {
				return nil, err
			}
			children[i] = built
		} else {
			children[i] = outerClone(child)
		}
	}
	return &login.LoginTree{
		AppID:    stash.AppID,
		Username: stash.Username,
		LoginID:  stash.LoginID,
		ChildTrees: children,
	}, nil
}

// containsAppID reports whether target appears anywhere in stash's
// subtree, including stash itself.
func containsAppID(stash *login.LoginStash, target string) bool {
	_, ok := tree.Search(stash, func(s *login.LoginStash) bool { return s.AppID == target })
	return ok
}

// outerClone returns the projection spec.md §4.3 calls for on subtrees
// outside the requested appId: identity fields only, recursively, with
// no decrypted material and no attempt to derive keys.
func outerClone(stash *login.LoginStash) *login.LoginTree {
	children := make([]*login.LoginTree, len(stash.ChildStashes))
	for i, child := range stash.ChildStashes {
		children[i] = outerClone(child)
	}
	return &login.LoginTree{
		AppID:      stash.AppID,
		Username:   stash.Username,
		LoginID:    stash.LoginID,
		ChildTrees: children,
	}
}

func decryptParentBox(stash *login.LoginStash, parentKey []byte) ([]byte, error) {
	const op errors.Op = "builder.decryptParentBox"
	if stash.ParentBox == nil {
		return nil, errors.E(op, errors.KeyIntegrity, errors.Str("child stash has no parentBox"))
	}
	return cryptobox.Decrypt(parentKey, stash.ParentBox)
}

// makeLoginTreeInner fully decrypts stash and every descendant under
// loginKey, implementing spec.md §4.3 steps 1-11.
func makeLoginTreeInner(stash *login.LoginStash, loginKey []byte) (*login.LoginTree, error) {
	const op errors.Op = "builder.makeLoginTreeInner"

	t := &login.LoginTree{
		AppID:        stash.AppID,
		Created:      stash.Created,
		LastLogin:    stash.LastLogin,
		LoginID:      stash.LoginID,
		OtpKey:       stash.OtpKey,
		OtpResetDate: stash.OtpResetDate,
		OtpTimeout:   stash.OtpTimeout,
		UserID:       stash.UserID,
		Username:     stash.Username,
		LoginKey:     loginKey,
	}
	if t.LastLogin.IsZero() {
		t.LastLogin = time.Now()
	}

	if stash.LoginAuthBox != nil {
		auth, err := cryptobox.Decrypt(loginKey, stash.LoginAuthBox)
		if err != nil {
			return nil, errors.E(op, errors.AppID(stash.AppID), errors.KeyIntegrity, err)
		}
		t.LoginAuth = auth
	}

	if stash.PasswordAuthBox != nil {
		auth, err := cryptobox.Decrypt(loginKey, stash.PasswordAuthBox)
		if err != nil {
			return nil, errors.E(op, errors.AppID(stash.AppID), errors.KeyIntegrity, err)
		}
		t.PasswordAuth = auth
		if t.UserID == "" {
			t.UserID = stash.LoginID
		}
	}

	if t.LoginAuth == nil && t.PasswordAuth == nil {
		return nil, errors.E(op, errors.AppID(stash.AppID), errors.MissingAuth)
	}

	if stash.Pin2Key != "" {
		pin2Key, err := base64.StdEncoding.DecodeString(stash.Pin2Key)
		if err != nil {
			return nil, errors.E(op, errors.InvalidStash, err)
		}
		t.Pin2Key = pin2Key
	}
	if stash.Pin2TextBox != nil {
		pin, err := cryptobox.DecryptText(loginKey, stash.Pin2TextBox)
		if err != nil {
			return nil, errors.E(op, errors.KeyIntegrity, err)
		}
		t.Pin = pin
	}

	if stash.Recovery2Key != "" {
		recovery2Key, err := base64.StdEncoding.DecodeString(stash.Recovery2Key)
		if err != nil {
			return nil, errors.E(op, errors.InvalidStash, err)
		}
		t.Recovery2Key = recovery2Key
	}

	infos, err := legacyWalletInfos(stash, loginKey)
	if err != nil {
		return nil, errors.E(op, err)
	}
	parsed, err := parsedWalletInfos(stash, loginKey)
	if err != nil {
		return nil, errors.E(op, err)
	}
	t.KeyInfos = mergeWalletInfos(infos, parsed)

	children := make([]*login.LoginTree, len(stash.ChildStashes))
	for i, child := range stash.ChildStashes {
		childKey, err := decryptParentBox(child, loginKey)
		if err != nil {
			return nil, errors.E(op, errors.AppID(child.AppID), err)
		}
		childTree, err := makeLoginTreeInner(child, childKey)
		if err != nil {
			return nil, err
		}
		children[i] = childTree
	}
	t.ChildTrees = children

	return t, nil
}

// legacyWalletInfos synthesizes wallet infos from the pre-v2 BitID and
// account-sync boxes (spec.md §4.3 steps 7-8, kept per spec.md §9).
func legacyWalletInfos(stash *login.LoginStash, loginKey []byte) ([]*login.EdgeWalletInfo, error) {
	const op errors.Op = "builder.legacyWalletInfos"
	var infos []*login.EdgeWalletInfo

	if stash.MnemonicBox != nil && stash.RootKeyBox != nil {
		rootKey, err := cryptobox.Decrypt(loginKey, stash.RootKeyBox)
		if err != nil {
			return nil, errors.E(op, errors.KeyIntegrity, err)
		}
		infoKey := cryptobox.HMACSHA256(rootKey, []byte("infoKey"))
		if len(infoKey) > cryptobox.KeyLen {
			infoKey = infoKey[:cryptobox.KeyLen]
		}
		mnemonic, err := cryptobox.DecryptText(infoKey, stash.MnemonicBox)
		if err != nil {
			return nil, errors.E(op, errors.KeyIntegrity, err)
		}
		infos = append(infos, &login.EdgeWalletInfo{
			Type: "wallet:bitid",
			Keys: map[string]interface{}{
				"mnemonic": mnemonic,
				"rootKey":  base64.StdEncoding.EncodeToString(rootKey),
			},
		})
	}

	if stash.SyncKeyBox != nil {
		syncKey, err := cryptobox.Decrypt(loginKey, stash.SyncKeyBox)
		if err != nil {
			return nil, errors.E(op, errors.KeyIntegrity, err)
		}
		infos = append(infos, &login.EdgeWalletInfo{
			Type: accountType(stash.AppID),
			Keys: map[string]interface{}{
				"syncKey": base64.StdEncoding.EncodeToString(syncKey),
				"dataKey": base64.StdEncoding.EncodeToString(loginKey),
			},
		})
	}

	return infos, nil
}

// accountType derives the wallet info type for an account-sync key,
// scoped by appId. The source's formula is external; this picks a
// stable, deterministic scheme (see DESIGN.md Open Questions).
func accountType(appID string) string {
	if appID == "" {
		return "account:repo:co.airbitz.wallet"
	}
	return "account:repo:" + appID
}

// parsedWalletInfos decrypts each of stash's keyBoxes into a wallet
// info JSON blob (spec.md §4.3 step 9).
func parsedWalletInfos(stash *login.LoginStash, loginKey []byte) ([]*login.EdgeWalletInfo, error) {
	const op errors.Op = "builder.parsedWalletInfos"
	infos := make([]*login.EdgeWalletInfo, 0, len(stash.KeyBoxes))
	for _, box := range stash.KeyBoxes {
		text, err := cryptobox.DecryptText(loginKey, box)
		if err != nil {
			return nil, errors.E(op, errors.KeyIntegrity, err)
		}
		var info login.EdgeWalletInfo
		if err := json.Unmarshal([]byte(text), &info); err != nil {
			return nil, errors.E(op, errors.InvalidStash, err)
		}
		infos = append(infos, &info)
	}
	return infos, nil
}

// mergeWalletInfos deduplicates infos by CanonicalID, unioning fields
// and preferring whichever value was already present when both lists
// supply the same key (spec.md §3 invariant 6, §4.3 step 10).
func mergeWalletInfos(lists ...[]*login.EdgeWalletInfo) []*login.EdgeWalletInfo {
	byID := map[string]*login.EdgeWalletInfo{}
	order := []string{}
	for _, list := range lists {
		for _, info := range list {
			id := info.CanonicalID()
			existing, ok := byID[id]
			if !ok {
				clone := *info
				byID[id] = &clone
				order = append(order, id)
				continue
			}
			for k, v := range info.Keys {
				if _, has := existing.Keys[k]; !has {
					if existing.Keys == nil {
						existing.Keys = map[string]interface{}{}
					}
					existing.Keys[k] = v
				}
			}
		}
	}
	merged := make([]*login.EdgeWalletInfo, len(order))
	for i, id := range order {
		merged[i] = byID[id]
	}
	return merged
}
