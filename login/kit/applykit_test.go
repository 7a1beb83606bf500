// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kit

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"edgelogin.dev/login"
	"edgelogin.dev/login/stashstore"
)

func rootLoginIDForTest(b byte) string {
	id := make([]byte, 32)
	for i := range id {
		id[i] = b
	}
	return base64.StdEncoding.EncodeToString(id)
}

func TestApplyKitUpdatesServerMemoryAndDisk(t *testing.T) {
	loginID := rootLoginIDForTest(0x11)
	loginTree := &login.LoginTree{
		AppID:     "",
		LoginID:   loginID,
		LoginAuth: []byte("loginauthsecret"),
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
	fetcher := &fakeFetcher{}

	k := &login.LoginKit{
		LoginID:    loginID,
		ServerPath: "/v2/login/otp",
		Server:     map[string]interface{}{"otpTimeout": 7200},
		Stash:      &login.LoginStash{OtpKey: "JBSWY3DPEHPK3PXP", OtpTimeout: 7200},
		Login:      &login.LoginTree{OtpKey: "JBSWY3DPEHPK3PXP", OtpTimeout: 7200},
	}

	newTree, newStash, err := ApplyKit(context.Background(), loginTree, stashTree, store, fetcher, k)
	if err != nil {
		t.Fatalf("ApplyKit: %v", err)
	}

	if len(fetcher.paths) != 1 || fetcher.paths[0] != "POST /v2/login/otp" {
		t.Fatalf("want one POST to /v2/login/otp, got %v", fetcher.paths)
	}
	if newTree.OtpKey != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("in-memory tree not updated: %+v", newTree)
	}
	if newStash.OtpKey != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("stash tree not updated: %+v", newStash)
	}

	loaded, err := store.LoadStashes()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded[0].OtpKey != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("disk not updated: %+v", loaded)
	}
}

func TestApplyKitMissingLoginFails(t *testing.T) {
	loginTree := &login.LoginTree{AppID: "", LoginID: "present"}
	stashTree := &login.LoginStash{AppID: "", LoginID: "present"}
	store, err := stashstore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fetcher := &fakeFetcher{}
	k := &login.LoginKit{LoginID: "absent", ServerPath: "/v2/login/otp"}

	if _, _, err := ApplyKit(context.Background(), loginTree, stashTree, store, fetcher, k); err == nil {
		t.Fatalf("want error for missing loginId")
	}
}

func TestApplyKitsAppliesSequentially(t *testing.T) {
	loginID := rootLoginIDForTest(0x12)
	loginTree := &login.LoginTree{AppID: "", LoginID: loginID, LoginAuth: []byte("loginauthsecret")}
	stashTree := &login.LoginStash{AppID: "", LoginID: loginID, Username: "edge", Created: time.Unix(0, 0)}

	store, err := stashstore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fetcher := &fakeFetcher{}

	kits := []*login.LoginKit{
		{LoginID: loginID, ServerPath: "/v2/login/otp", Stash: &login.LoginStash{OtpKey: "JBSWY3DPEHPK3PXP"}, Login: &login.LoginTree{OtpKey: "JBSWY3DPEHPK3PXP"}},
		{LoginID: loginID, ServerPath: "/v2/login/pin2", Stash: &login.LoginStash{Pin2Key: "cGlu"}, Login: &login.LoginTree{Pin: "1234"}},
	}

	newTree, newStash, err := ApplyKits(context.Background(), loginTree, stashTree, store, fetcher, kits)
	if err != nil {
		t.Fatalf("ApplyKits: %v", err)
	}
	if len(fetcher.paths) != 2 {
		t.Fatalf("want 2 sequential requests, got %d", len(fetcher.paths))
	}
	if newTree.OtpKey != "JBSWY3DPEHPK3PXP" || newTree.Pin != "1234" {
		t.Fatalf("both kits should be reflected in the tree: %+v", newTree)
	}
	if newStash.OtpKey != "JBSWY3DPEHPK3PXP" || newStash.Pin2Key != "cGlu" {
		t.Fatalf("both kits should be reflected in the stash: %+v", newStash)
	}
}
