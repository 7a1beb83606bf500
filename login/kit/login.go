// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kit

import (
	"context"
	"net/http"
	"time"

	"edgelogin.dev/errors"
	"edgelogin.dev/login"
	"edgelogin.dev/login/authclient"
	"edgelogin.dev/login/builder"
	"edgelogin.dev/login/reconcile"
	"edgelogin.dev/login/stashstore"
	"edgelogin.dev/login/tree"
)

// DecryptLoginKey derives the loginKey from a LoginReply: a
// method-specific function, since a password login derives it from the
// reply's passwordBox while a loginId-based "return" login already
// knows it outright (spec.md §4.5).
type DecryptLoginKey func(reply *login.LoginReply) ([]byte, error)

// ServerLoginRequest carries everything ServerLogin needs to build the
// request body spec.md §4.5 composes: method-specific auth fields, OTP
// selection, and the device description.
type ServerLoginRequest struct {
	// Auth is the method-specific auth fragment, e.g. {"loginId": ...,
	// "loginAuth": ...} or {"userId": ..., "passwordAuth": ...}.
	Auth              map[string]interface{}
	Otp               GetStashOtpOptions
	DeviceDescription string
}

// ServerLogin runs the server login loop of spec.md §4.5: POST
// /v2/login, capture an OtpError's voucher by persisting it and
// rethrowing, or on success reconcile the reply into stashTree, persist,
// and build the resulting login tree.
func ServerLogin(ctx context.Context, stashTree *login.LoginStash, store *stashstore.Store, fetcher authclient.Fetcher, req ServerLoginRequest, decrypt DecryptLoginKey) (*login.LoginTree, *login.LoginStash, error) {
	const op errors.Op = "kit.ServerLogin"

	otpCode, err := GetStashOtp(stashTree, req.Otp)
	if err != nil {
		return nil, nil, errors.E(op, err)
	}

	request := map[string]interface{}{}
	for k, v := range req.Auth {
		request[k] = v
	}
	if otpCode != "" {
		request["otp"] = otpCode
	}
	if stashTree.VoucherID != "" {
		request["voucherId"] = stashTree.VoucherID
	}
	if stashTree.VoucherAuth != "" {
		request["voucherAuth"] = stashTree.VoucherAuth
	}
	if req.DeviceDescription != "" {
		request["deviceDescription"] = req.DeviceDescription
	}

	var reply login.LoginReply
	if err := fetcher.Fetch(ctx, http.MethodPost, "/v2/login", request, &reply); err != nil {
		captureVoucher(stashTree, store, err)
		return nil, nil, errors.E(op, err)
	}

	loginKey, err := decrypt(&reply)
	if err != nil {
		return nil, nil, errors.E(op, err)
	}

	newStash, err := reconcile.ApplyLoginReply(stashTree, loginKey, &reply)
	if err != nil {
		return nil, nil, errors.E(op, err)
	}
	newStash = touchLastLogin(newStash, reply.AppID)

	if err := store.SaveStash(newStash); err != nil {
		return nil, nil, errors.E(op, err)
	}

	newTree, err := builder.MakeLoginTree(newStash, loginKey, reply.AppID)
	if err != nil {
		return nil, nil, errors.E(op, err)
	}
	return newTree, newStash, nil
}

// captureVoucher implements spec.md §4.5 step 3: on an OtpError that
// either names a loginId we haven't seen before, or carries a fresh
// voucher, persist the voucher into the stash (best effort, errors
// swallowed) before the caller rethrows.
func captureVoucher(stashTree *login.LoginStash, store *stashstore.Store, err error) {
	if !errors.Is(errors.OtpErrorKind, err) {
		return
	}
	payload := errors.OtpPayloadOf(err)
	if payload == nil || payload.LoginID == "" {
		return
	}
	firstSighting := stashTree.LoginID == ""
	freshVoucher := payload.VoucherID != "" && payload.VoucherAuth != ""
	if !firstSighting && !freshVoucher {
		return
	}

	updated := *stashTree
	updated.LoginID = payload.LoginID
	if freshVoucher {
		updated.VoucherID = payload.VoucherID
		updated.VoucherAuth = payload.VoucherAuth
	}
	updated.LastLogin = time.Now()
	_ = store.SaveStash(&updated)
}

// touchLastLogin sets LastLogin=now on the stash node matching appID,
// the way spec.md §4.5 steps 3-4 and §4.4 step 2 require after any
// successful or voucher-capturing server round trip.
func touchLastLogin(stashTree *login.LoginStash, appID string) *login.LoginStash {
	now := time.Now()
	return tree.Update(stashTree,
		func(s *login.LoginStash) bool { return s.AppID == appID },
		func(s *login.LoginStash) *login.LoginStash {
			clone := *s
			clone.LastLogin = now
			return &clone
		},
	)
}

// SyncLogin POSTs /v2/login using loginTree's own auth material,
// treats the reply as authoritative via reconcile, rebuilds the
// in-memory tree, and persists (spec.md §4.5 "Sync").
func SyncLogin(ctx context.Context, loginTree *login.LoginTree, stashTree *login.LoginStash, store *stashstore.Store, fetcher authclient.Fetcher) (*login.LoginTree, *login.LoginStash, error) {
	const op errors.Op = "kit.SyncLogin"

	request, err := MakeAuthJSON(loginTree)
	if err != nil {
		return nil, nil, errors.E(op, err)
	}

	var reply login.LoginReply
	if err := fetcher.Fetch(ctx, http.MethodPost, "/v2/login", request, &reply); err != nil {
		return nil, nil, errors.E(op, err)
	}

	newStash, err := reconcile.ApplyLoginReply(stashTree, loginTree.LoginKey, &reply)
	if err != nil {
		return nil, nil, errors.E(op, err)
	}
	newStash = touchLastLogin(newStash, reply.AppID)

	if err := store.SaveStash(newStash); err != nil {
		return nil, nil, errors.E(op, err)
	}

	newTree, err := builder.MakeLoginTree(newStash, loginTree.LoginKey, loginTree.AppID)
	if err != nil {
		return nil, nil, errors.E(op, err)
	}
	return newTree, newStash, nil
}
