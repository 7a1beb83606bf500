// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kit

import (
	"context"
	"testing"
	"time"

	"edgelogin.dev/cryptobox"
	"edgelogin.dev/errors"
	"edgelogin.dev/login"
	"edgelogin.dev/login/stashstore"
)

func TestServerLoginReconcilesAndPersists(t *testing.T) {
	loginID := rootLoginIDForTest(0x21)
	loginKey := make([]byte, cryptobox.KeyLen)
	for i := range loginKey {
		loginKey[i] = byte(i + 1)
	}
	loginAuth := []byte("loginauthsecret-loginauthsecret")
	loginAuthBox, err := cryptobox.Encrypt(loginKey, loginAuth)
	if err != nil {
		t.Fatal(err)
	}

	stashTree := &login.LoginStash{
		AppID:    "",
		LoginID:  loginID,
		Username: "edge",
		Created:  time.Unix(0, 0),
	}
	store, err := stashstore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	reply := &login.LoginReply{
		AppID:        "",
		LoginID:      loginID,
		Created:      time.Unix(0, 0),
		LoginAuthBox: loginAuthBox,
	}
	fetcher := &fakeFetcher{reply: reply}

	decrypt := func(r *login.LoginReply) ([]byte, error) { return loginKey, nil }

	newTree, newStash, err := ServerLogin(context.Background(), stashTree, store, fetcher, ServerLoginRequest{
		Auth: map[string]interface{}{"loginId": loginID},
	}, decrypt)
	if err != nil {
		t.Fatalf("ServerLogin: %v", err)
	}
	if string(newTree.LoginAuth) != string(loginAuth) {
		t.Fatalf("LoginAuth = %q, want %q", newTree.LoginAuth, loginAuth)
	}
	if newStash.Username != "edge" {
		t.Fatalf("reconciled stash lost client-only username: %+v", newStash)
	}
	if newStash.LastLogin.IsZero() {
		t.Fatalf("expected LastLogin to be set")
	}

	loaded, err := store.LoadStashes()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 {
		t.Fatalf("want 1 persisted stash, got %d", len(loaded))
	}
}

func TestServerLoginCapturesVoucherAndRethrowsOnOtpError(t *testing.T) {
	stashTree := &login.LoginStash{
		AppID:    "",
		LoginID:  "",
		Username: "edge",
		Created:  time.Unix(0, 0),
	}
	store, err := stashstore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	otpErr := errors.E(errors.OtpErrorKind, &errors.OtpPayload{
		LoginID:     rootLoginIDForTest(0x22),
		VoucherID:   "voucher-1",
		VoucherAuth: "voucher-auth-1",
	}, errors.Str("otp required"))
	fetcher := &fakeFetcher{err: otpErr}

	decrypt := func(r *login.LoginReply) ([]byte, error) { return nil, nil }

	_, _, err = ServerLogin(context.Background(), stashTree, store, fetcher, ServerLoginRequest{
		Auth: map[string]interface{}{"loginId": ""},
	}, decrypt)
	if !errors.Is(errors.OtpErrorKind, err) {
		t.Fatalf("want OtpErrorKind rethrown, got %v", err)
	}

	loaded, err := store.LoadStashes()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 {
		t.Fatalf("want voucher capture persisted despite rethrow, got %d stashes", len(loaded))
	}
	if loaded[0].LoginID != rootLoginIDForTest(0x22) {
		t.Fatalf("loginId not captured from OtpError: %+v", loaded[0])
	}
	if loaded[0].VoucherID != "voucher-1" || loaded[0].VoucherAuth != "voucher-auth-1" {
		t.Fatalf("voucher not captured from OtpError: %+v", loaded[0])
	}
}

func TestServerLoginSkipsVoucherCaptureWhenNotFirstSightingAndNoFreshVoucher(t *testing.T) {
	stashTree := &login.LoginStash{
		AppID:     "",
		LoginID:   rootLoginIDForTest(0x23),
		Username:  "edge",
		Created:   time.Unix(0, 0),
		LastLogin: time.Unix(0, 0),
	}
	store, err := stashstore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveStash(stashTree); err != nil {
		t.Fatal(err)
	}

	otpErr := errors.E(errors.OtpErrorKind, &errors.OtpPayload{
		LoginID: rootLoginIDForTest(0x23),
	}, errors.Str("otp required"))
	fetcher := &fakeFetcher{err: otpErr}
	decrypt := func(r *login.LoginReply) ([]byte, error) { return nil, nil }

	_, _, err = ServerLogin(context.Background(), stashTree, store, fetcher, ServerLoginRequest{
		Auth: map[string]interface{}{"loginId": stashTree.LoginID},
	}, decrypt)
	if !errors.Is(errors.OtpErrorKind, err) {
		t.Fatalf("want OtpErrorKind rethrown, got %v", err)
	}

	loaded, err := store.LoadStashes()
	if err != nil {
		t.Fatal(err)
	}
	if !loaded[0].LastLogin.Equal(time.Unix(0, 0)) {
		t.Fatalf("LastLogin should not have been touched, got %v", loaded[0].LastLogin)
	}
}

func TestSyncLoginReconcilesAndPersists(t *testing.T) {
	loginID := rootLoginIDForTest(0x24)
	loginKey := make([]byte, cryptobox.KeyLen)
	for i := range loginKey {
		loginKey[i] = byte(i + 2)
	}
	loginAuth := []byte("loginauthsecret-loginauthsecret")
	loginAuthBox, err := cryptobox.Encrypt(loginKey, loginAuth)
	if err != nil {
		t.Fatal(err)
	}

	loginTree := &login.LoginTree{
		AppID:     "",
		LoginID:   loginID,
		LoginAuth: loginAuth,
		LoginKey:  loginKey,
	}
	stashTree := &login.LoginStash{
		AppID:    "",
		LoginID:  loginID,
		Username: "edge",
		Created:  time.Unix(0, 0),
	}
	store, err := stashstore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fetcher := &fakeFetcher{reply: &login.LoginReply{
		AppID:        "",
		LoginID:      loginID,
		Created:      time.Unix(0, 0),
		LoginAuthBox: loginAuthBox,
	}}

	newTree, _, err := SyncLogin(context.Background(), loginTree, stashTree, store, fetcher)
	if err != nil {
		t.Fatalf("SyncLogin: %v", err)
	}
	if string(newTree.LoginAuth) != string(loginAuth) {
		t.Fatalf("LoginAuth = %q, want %q", newTree.LoginAuth, loginAuth)
	}
	if fetcher.paths[0] != "POST /v2/login" {
		t.Fatalf("want POST /v2/login, got %v", fetcher.paths)
	}
}
