// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package base58id codecs the loginId filenames spec.md §3 invariant 7
// and §6 require: "logins/<base58(loginId)>.json". Grounded on the
// base58.Encode/Decode shape used elsewhere in the retrieval pack (see
// DESIGN.md) via github.com/mr-tron/base58, which appears as a
// dependency across several pack repos.
package base58id

import (
	"github.com/mr-tron/base58"

	"edgelogin.dev/errors"
)

// Encode returns the base58 encoding of loginId, suitable for use as a
// filename stem under logins/.
func Encode(loginId []byte) string {
	return base58.Encode(loginId)
}

// Decode reverses Encode, returning an error if s is not valid base58.
func Decode(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, errors.E(errors.Op("base58id.Decode"), errors.Invalid, err)
	}
	return b, nil
}

// Filename returns the on-disk path for a root stash with the given
// loginId, relative to the stash store's base directory.
func Filename(loginId []byte) string {
	return "logins/" + Encode(loginId) + ".json"
}
