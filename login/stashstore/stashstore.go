// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stashstore implements the on-disk stash store spec.md §4.1
// describes: load, save, and delete a LoginStash tree keyed by a
// base58-encoded loginId filename. Grounded on internal/disklet as the
// underlying path-keyed store, itself adapted from
// upspin.io/cloud/storage/disk.
package stashstore

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"edgelogin.dev/base58id"
	"edgelogin.dev/errors"
	"edgelogin.dev/events"
	"edgelogin.dev/internal/disklet"
	"edgelogin.dev/log"
	"edgelogin.dev/login"
)

// Store is the on-disk stash store described by spec.md §4.1.
type Store struct {
	disk disklet.Disklet
}

// New returns a Store rooted at dir. The directory is created if it
// does not already exist.
func New(dir string) (*Store, error) {
	d, err := disklet.New(dir)
	if err != nil {
		return nil, err
	}
	return &Store{disk: d}, nil
}

// LoadStashes lists logins/, filters regular files, parses each as
// JSON, and validates it against the schema. A file that fails to
// parse or validate is skipped with a logged warning rather than
// aborting the whole load, per spec.md §4.1.
func (s *Store) LoadStashes() ([]*login.LoginStash, error) {
	const op errors.Op = "stashstore.LoadStashes"
	listing, err := s.disk.List("logins")
	if err != nil {
		return nil, errors.E(op, err)
	}
	var stashes []*login.LoginStash
	for _, path := range disklet.JustFiles(listing) {
		text, err := s.disk.GetText(path)
		if err != nil {
			log.Error.Printf("stashstore: reading %s: %v", path, err)
			continue
		}
		var stash login.LoginStash
		if err := json.Unmarshal([]byte(text), &stash); err != nil {
			log.Error.Printf("stashstore: parsing %s: %v", path, err)
			continue
		}
		if err := Validate(&stash); err != nil {
			log.Error.Printf("stashstore: validating %s: %v", path, err)
			continue
		}
		stashes = append(stashes, &stash)
	}
	return stashes, nil
}

// SaveStash validates stash per spec.md §3 invariant 7, writes it to
// its deterministic filename as a single whole-file write, and emits
// LoginStashSaved.
func (s *Store) SaveStash(stash *login.LoginStash) error {
	const op errors.Op = "stashstore.SaveStash"
	if err := Validate(stash); err != nil {
		return errors.E(op, errors.InvalidStash, err)
	}
	loginID, err := base64.StdEncoding.DecodeString(stash.LoginID)
	if err != nil {
		return errors.E(op, errors.InvalidStash, err)
	}
	text, err := json.Marshal(stash)
	if err != nil {
		return errors.E(op, err)
	}
	if err := s.disk.SetText(base58id.Filename(loginID), string(text)); err != nil {
		return errors.E(op, err)
	}
	events.EmitStashSaved(events.LoginStashSaved{Stash: stash})
	return nil
}

// RemoveStash normalizes username, deletes every file whose parsed
// stash has that username, and emits LoginStashDeleted.
func (s *Store) RemoveStash(username string) error {
	const op errors.Op = "stashstore.RemoveStash"
	normalized := NormalizeUsername(username)
	listing, err := s.disk.List("logins")
	if err != nil {
		return errors.E(op, err)
	}
	for _, path := range disklet.JustFiles(listing) {
		text, err := s.disk.GetText(path)
		if err != nil {
			continue
		}
		var stash login.LoginStash
		if err := json.Unmarshal([]byte(text), &stash); err != nil {
			continue
		}
		if NormalizeUsername(stash.Username) != normalized {
			continue
		}
		if err := s.disk.Delete(path); err != nil {
			return errors.E(op, err)
		}
	}
	events.EmitStashDeleted(events.LoginStashDeleted{Username: normalized})
	return nil
}

// Validate checks the invariants spec.md §3 invariant 7 requires before
// a root stash may be saved: appId=="", loginId set and decodes to
// exactly 32 bytes, and username set.
func Validate(stash *login.LoginStash) error {
	const op errors.Op = "stashstore.Validate"
	if stash.AppID != "" {
		return errors.E(op, errors.InvalidStash, errors.Errorf("appId must be empty on a root stash, got %q", stash.AppID))
	}
	if stash.Username == "" {
		return errors.E(op, errors.InvalidStash, errors.Str("username must be set on a root stash"))
	}
	if stash.LoginID == "" {
		return errors.E(op, errors.InvalidStash, errors.Str("loginId must be set"))
	}
	raw, err := base64.StdEncoding.DecodeString(stash.LoginID)
	if err != nil || len(raw) != 32 {
		return errors.E(op, errors.InvalidStash, errors.Str("loginId must decode to exactly 32 bytes"))
	}
	return nil
}

// NormalizeUsername lower-cases and trims a username for comparison and
// hashing, matching the normalization spec.md §4.5 requires before
// deriving hashUsername and before matching in RemoveStash.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
