// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package login defines the on-disk (LoginStash) and in-memory
// (LoginTree) node shapes of the login tree, the kit mutation type, and
// the wire reply shape, per spec.md §3. Every other login/* package
// operates on these types.
package login

import (
	"time"

	"edgelogin.dev/cryptobox"
	"edgelogin.dev/scrypt"
)

// LoginStash is the on-disk, still-encrypted representation of one node
// in a login tree. The root of a saved tree has AppID == "".
type LoginStash struct {
	AppID     string    `json:"appId"`
	LoginID   string    `json:"loginId"`
	UserID    string    `json:"userId,omitempty"`
	Username  string    `json:"username,omitempty"`
	Created   time.Time `json:"created"`
	LastLogin time.Time `json:"lastLogin"`

	OtpKey       string     `json:"otpKey,omitempty"`
	OtpResetDate *time.Time `json:"otpResetDate,omitempty"`
	OtpTimeout   int        `json:"otpTimeout,omitempty"`
	VoucherID    string     `json:"voucherId,omitempty"`
	VoucherAuth  string     `json:"voucherAuth,omitempty"`

	LoginAuthBox     *cryptobox.Box `json:"loginAuthBox,omitempty"`
	ParentBox        *cryptobox.Box `json:"parentBox,omitempty"`
	PasswordAuthBox  *cryptobox.Box `json:"passwordAuthBox,omitempty"`
	PasswordAuthSnrp *scrypt.Snrp   `json:"passwordAuthSnrp,omitempty"`
	PasswordBox      *cryptobox.Box `json:"passwordBox,omitempty"`
	PasswordKeySnrp  *scrypt.Snrp   `json:"passwordKeySnrp,omitempty"`
	Pin2TextBox      *cryptobox.Box `json:"pin2TextBox,omitempty"`

	// Pin2Key and Recovery2Key are plaintext caches, base64 encoded,
	// stored after decrypting the server's pin2KeyBox/recovery2KeyBox
	// (spec.md §4.4 steps 3-4). The boxes themselves are never
	// persisted once decrypted.
	Pin2Key      string `json:"pin2Key,omitempty"`
	Recovery2Key string `json:"recovery2Key,omitempty"`

	KeyBoxes    []*cryptobox.Box `json:"keyBoxes,omitempty"`
	MnemonicBox *cryptobox.Box   `json:"mnemonicBox,omitempty"`
	RootKeyBox  *cryptobox.Box   `json:"rootKeyBox,omitempty"`
	SyncKeyBox  *cryptobox.Box   `json:"syncKeyBox,omitempty"`

	ChildStashes []*LoginStash `json:"children,omitempty"`
}

// Children implements tree.Node.
func (s *LoginStash) Children() []*LoginStash { return s.ChildStashes }

// WithChildren implements tree.Node: a shallow copy of s with its
// children replaced, the default clone spec.md §4.2 requires.
func (s *LoginStash) WithChildren(children []*LoginStash) *LoginStash {
	clone := *s
	clone.ChildStashes = children
	return &clone
}

// EdgeWalletInfo is a decrypted wallet key record. Keys carries whatever
// fields the wallet plugin's JSON blob contained; the login tree core
// treats them opaquely except for the Id field used to deduplicate.
type EdgeWalletInfo struct {
	Type string                 `json:"type"`
	Keys map[string]interface{} `json:"keys"`
}

// CanonicalID returns the id spec.md §3 invariant 6 dedupes keyInfos by:
// the wallet's Type, plus an "id" field inside Keys when the wallet
// plugin provided one.
func (w *EdgeWalletInfo) CanonicalID() string {
	id := w.Type
	if w.Keys != nil {
		if raw, ok := w.Keys["id"]; ok {
			if s, ok := raw.(string); ok && s != "" {
				id = w.Type + ":" + s
			}
		}
	}
	return id
}

// LoginTree is the in-memory, decrypted mirror of a LoginStash subtree.
// It exists only while an account is logged in.
type LoginTree struct {
	AppID     string
	LoginID   string
	UserID    string
	Username  string
	Created   time.Time
	LastLogin time.Time

	OtpKey       string
	OtpResetDate *time.Time
	OtpTimeout   int

	LoginKey     []byte
	LoginAuth    []byte
	PasswordAuth []byte
	Pin          string
	Pin2Key      []byte
	Recovery2Key []byte

	KeyInfos []*EdgeWalletInfo

	ChildTrees []*LoginTree
}

// Children implements tree.Node.
func (t *LoginTree) Children() []*LoginTree { return t.ChildTrees }

// WithChildren implements tree.Node.
func (t *LoginTree) WithChildren(children []*LoginTree) *LoginTree {
	clone := *t
	clone.ChildTrees = children
	return &clone
}

// LoginKit is a mutation bundle applied atomically to server, memory,
// and disk (spec.md §3, §4.5).
type LoginKit struct {
	LoginID      string
	ServerMethod string // "POST" or "DELETE"; empty means "POST".
	ServerPath   string
	Server       map[string]interface{}
	Stash        *LoginStash
	Login        *LoginTree
}

// Method returns kit's HTTP method, defaulting to POST.
func (k *LoginKit) Method() string {
	if k.ServerMethod == "" {
		return "POST"
	}
	return k.ServerMethod
}

// LoginReply is the server's response to a login or sync request
// (spec.md §3, §6). Only the fields the reconciler allowlists (§4.4) are
// ever copied into a stash; every other field here exists purely to be
// read and then discarded.
type LoginReply struct {
	AppID   string `json:"appId"`
	Created time.Time `json:"created"`
	LoginID string `json:"loginId"`
	UserID  string `json:"userId,omitempty"`

	OtpKey       string     `json:"otpKey,omitempty"`
	OtpResetDate *time.Time `json:"otpResetDate,omitempty"`
	OtpTimeout   int        `json:"otpTimeout,omitempty"`

	LoginAuthBox     *cryptobox.Box `json:"loginAuthBox,omitempty"`
	ParentBox        *cryptobox.Box `json:"parentBox,omitempty"`
	PasswordAuthBox  *cryptobox.Box `json:"passwordAuthBox,omitempty"`
	PasswordAuthSnrp *scrypt.Snrp   `json:"passwordAuthSnrp,omitempty"`
	PasswordBox      *cryptobox.Box `json:"passwordBox,omitempty"`
	PasswordKeySnrp  *scrypt.Snrp   `json:"passwordKeySnrp,omitempty"`
	Pin2TextBox      *cryptobox.Box `json:"pin2TextBox,omitempty"`

	Pin2KeyBox      *cryptobox.Box `json:"pin2KeyBox,omitempty"`
	Recovery2KeyBox *cryptobox.Box `json:"recovery2KeyBox,omitempty"`

	KeyBoxes    []*cryptobox.Box `json:"keyBoxes,omitempty"`
	MnemonicBox *cryptobox.Box   `json:"mnemonicBox,omitempty"`
	RootKeyBox  *cryptobox.Box   `json:"rootKeyBox,omitempty"`
	SyncKeyBox  *cryptobox.Box   `json:"syncKeyBox,omitempty"`

	Children []*LoginReply `json:"children,omitempty"`
}

// MessagesPayload is the response shape of POST /api/v2/messages
// (spec.md §6).
type MessagesPayload struct {
	Messages map[string]interface{} `json:"messages"`
}
