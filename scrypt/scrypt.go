// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scrypt derives keys from low-entropy secrets (passwords, PINs,
// usernames) and chooses scrypt cost parameters calibrated to a target
// latency (spec.md §4.6). The actual memory-hard function comes from
// golang.org/x/crypto/scrypt, the same package upspin.io's own key
// derivation code (upspin.io/pack/ee, upspin.io/serverutil/signing) is
// grounded on.
package scrypt

import (
	"sync"

	xscrypt "golang.org/x/crypto/scrypt"

	"edgelogin.dev/cryptobox"
	"edgelogin.dev/errors"
)

// KeyLen is the length, in bytes, of every key this package derives.
const KeyLen = 32

// Snrp holds the scrypt parameters persisted alongside a derived secret:
// an "EdgeSnrp" in spec.md §3.
type Snrp struct {
	Salt []byte `json:"salt_hex"`
	N    int    `json:"n"`
	R    int    `json:"r"`
	P    int    `json:"p"`
}

// serialize is the single-slot scrypt queue spec.md §5 requires: scrypt
// is memory-hard, so at most one derivation runs at a time regardless of
// how many goroutines call Derive concurrently.
var serialize sync.Mutex

// Derive runs scrypt(data, snrp.Salt, snrp.N, snrp.R, snrp.P, KeyLen).
// Concurrent callers are serialized through a single-slot queue so scrypt
// never runs more than once at a time on a device.
func Derive(data []byte, snrp *Snrp) ([]byte, error) {
	const op errors.Op = "scrypt.Derive"
	serialize.Lock()
	defer serialize.Unlock()
	key, err := xscrypt.Key(data, snrp.Salt, snrp.N, snrp.R, snrp.P, KeyLen)
	if err != nil {
		return nil, errors.E(op, errors.Invalid, err)
	}
	return key, nil
}

// NewSnrp picks scrypt parameters for a target latency given a
// benchmark of how long n=16384,r=8,p=1 takes on this device, and
// generates a fresh random salt. The parameter-growth algorithm is
// fixed by spec.md §4.6 to cap worst-case memory-hard cost on low-end
// devices; the constants are not tuning knobs.
func NewSnrp(benchMs, targetMs int) (*Snrp, error) {
	salt, err := cryptobox.Random(32)
	if err != nil {
		return nil, errors.E(errors.Op("scrypt.NewSnrp"), err)
	}
	n, r, p := chooseParams(benchMs, targetMs)
	return &Snrp{Salt: salt, N: n, R: r, P: p}, nil
}

// chooseParams implements spec.md §4.6's chooser. If benchMs is 0 (no
// benchmark available), it returns fixed conservative parameters. The
// starting r (8) equals the cap on r, so growing r never actually moves
// past its starting value: this is an intentionally preserved dead
// branch, not a bug (spec.md §9 Open Question).
func chooseParams(benchMs, targetMs int) (n, r, p int) {
	if benchMs == 0 {
		return 131072, 8, 64
	}

	const (
		startN  = 16384
		startR  = 8
		startP  = 1
		capN    = 1 << 17
		capR    = 8 // equals startR: growing r is a no-op, kept for parity.
		capP    = 64
	)

	n, r, p = startN, startR, startP
	remaining := float64(targetMs) / float64(benchMs)
	if remaining <= 1 {
		return n, r, p
	}

	// r scales time linearly; grow it first.
	growR := int(remaining)
	if growR > capR/startR {
		growR = capR / startR
	}
	if growR > 1 {
		r = startR * growR
	}
	if r > capR {
		r = capR
	}
	remaining /= float64(r) / float64(startR)

	// n doubles time per doubling; grow it next, capped at capN.
	for remaining >= 2 && n < capN {
		n *= 2
		remaining /= 2
	}

	// whatever budget is left scales p linearly, capped at capP.
	if remaining > 1 {
		growP := int(remaining)
		if growP < 1 {
			growP = 1
		}
		p = startP * growP
		if p > capP {
			p = capP
		}
	}
	return n, r, p
}

// Benchmark measures how long a scrypt call at the baseline parameters
// (n=16384, r=8, p=1) takes on this device, in milliseconds, for use as
// NewSnrp's benchMs input. It is not named in spec.md's component list
// but is required to produce that input at all, so SPEC_FULL.md exposes
// it as a first-class helper (see SPEC_FULL.md §5).
func Benchmark(now func() int64) (int64, error) {
	const op errors.Op = "scrypt.Benchmark"
	salt, err := cryptobox.Random(32)
	if err != nil {
		return 0, errors.E(op, err)
	}
	start := now()
	if _, err := xscrypt.Key([]byte("benchmark"), salt, 16384, 8, 1, KeyLen); err != nil {
		return 0, errors.E(op, errors.Invalid, err)
	}
	return now() - start, nil
}
