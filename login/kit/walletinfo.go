// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kit

import "edgelogin.dev/login"

// WalletInfoID returns the canonical id spec.md §3 invariant 6
// deduplicates keyInfos by. Exposed as a first-class helper so callers
// outside this package (e.g. wallet plugins deciding whether they
// already hold a key) don't have to reimplement the dedup key.
func WalletInfoID(info *login.EdgeWalletInfo) string {
	return info.CanonicalID()
}

// mergeKeyInfos deduplicates infos across lists by WalletInfoID,
// unioning each entry's Keys and preferring whichever value was already
// present when both lists supply the same key (spec.md §3 invariant 6).
func mergeKeyInfos(lists ...[]*login.EdgeWalletInfo) []*login.EdgeWalletInfo {
	byID := map[string]*login.EdgeWalletInfo{}
	order := []string{}
	for _, list := range lists {
		for _, info := range list {
			id := WalletInfoID(info)
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
