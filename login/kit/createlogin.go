// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"edgelogin.dev/cryptobox"
	"edgelogin.dev/errors"
	"edgelogin.dev/login"
	"edgelogin.dev/login/authclient"
	"edgelogin.dev/login/builder"
	"edgelogin.dev/scrypt"
)

// CreateLoginRequest carries everything CreateLogin needs to
// assemble a fresh LoginStash and register it with the server (spec.md
// §4.5 "Account creation"). Username matters only for a root
// creation (ParentLoginKey == nil); a child creation ignores it.
type CreateLoginRequest struct {
	Username          string
	AppID             string
	ParentLoginKey    []byte
	Password          string
	Pin               string
	WalletInfo        *login.EdgeWalletInfo
	DeviceDescription string
	// BenchMs is passed to scrypt.NewSnrp, with a target latency of 0,
	// when password login material is attached (spec.md §4.6). Zero
	// selects NewSnrp's fixed parameters (n=131072, r=8, p=64); any
	// other value yields the baseline (n=16384, r=8, p=1).
	BenchMs int
}

// CreateLogin derives fresh login key material, optionally builds
// password/PIN/wallet-key sub-material, registers the account with
// POST /v2/login/create, and returns the resulting in-memory tree plus
// the assembled stash. CreateLogin does not persist the stash: for a
// root account the caller saves it directly via Store.SaveStash; for a
// child account the caller grafts the returned stash into the parent's
// ChildStashes (e.g. via ApplyKit) before saving the root.
func CreateLogin(ctx context.Context, fetcher authclient.Fetcher, req CreateLoginRequest) (*login.LoginTree, *login.LoginStash, error) {
	const op errors.Op = "kit.CreateLogin"

	isRoot := req.ParentLoginKey == nil

	var loginID []byte
	var err error
	if isRoot {
		loginID = hashUsername(req.Username)
	} else {
		loginID, err = cryptobox.Random(cryptobox.KeyLen)
		if err != nil {
			return nil, nil, errors.E(op, err)
		}
	}

	loginKey, err := cryptobox.Random(cryptobox.KeyLen)
	if err != nil {
		return nil, nil, errors.E(op, err)
	}
	loginAuth, err := cryptobox.Random(cryptobox.KeyLen)
	if err != nil {
		return nil, nil, errors.E(op, err)
	}
	loginAuthBox, err := cryptobox.Encrypt(loginKey, loginAuth)
	if err != nil {
		return nil, nil, errors.E(op, err)
	}

	now := time.Now()
	stash := &login.LoginStash{
		AppID:        req.AppID,
		LoginID:      base64.StdEncoding.EncodeToString(loginID),
		Created:      now,
		LastLogin:    now,
		LoginAuthBox: loginAuthBox,
	}
	if isRoot {
		stash.Username = req.Username
	}

	request := map[string]interface{}{
		"loginId":   stash.LoginID,
		"loginAuth": base64.StdEncoding.EncodeToString(loginAuth),
	}
	if req.DeviceDescription != "" {
		request["deviceDescription"] = req.DeviceDescription
	}

	var parentBox *cryptobox.Box
	if !isRoot {
		parentBox, err = cryptobox.Encrypt(req.ParentLoginKey, loginKey)
		if err != nil {
			return nil, nil, errors.E(op, err)
		}
		stash.ParentBox = parentBox
	}

	if req.Password != "" {
		if err := attachPassword(stash, loginKey, req.Password, req.BenchMs); err != nil {
			return nil, nil, errors.E(op, err)
		}
	}
	if req.Pin != "" {
		pin2TextBox, err := cryptobox.Encrypt(loginKey, []byte(req.Pin))
		if err != nil {
			return nil, nil, errors.E(op, err)
		}
		stash.Pin2TextBox = pin2TextBox
	}
	if req.WalletInfo != nil {
		infoJSON, err := json.Marshal(req.WalletInfo)
		if err != nil {
			return nil, nil, errors.E(op, err)
		}
		keyBox, err := cryptobox.Encrypt(loginKey, infoJSON)
		if err != nil {
			return nil, nil, errors.E(op, err)
		}
		stash.KeyBoxes = []*cryptobox.Box{keyBox}
	}

	request["data"] = stash

	if err := fetcher.Fetch(ctx, http.MethodPost, "/v2/login/create", request, nil); err != nil {
		return nil, nil, errors.E(op, err)
	}

	loginTree, err := builder.MakeLoginTree(stash, loginKey, req.AppID)
	if err != nil {
		return nil, nil, errors.E(op, err)
	}
	return loginTree, stash, nil
}

// attachPassword derives the password-login material spec.md §3 names
// and attaches it to stash: passwordKeySnrp/passwordBox let a future
// login recover loginKey from the password alone, while
// passwordAuthSnrp/passwordAuthBox cache a server-facing auth value
// derived the same way so callers who already hold loginKey don't need
// the plaintext password to authenticate again.
func attachPassword(stash *login.LoginStash, loginKey []byte, password string, benchMs int) error {
	authSnrp, err := scrypt.NewSnrp(benchMs, 0)
	if err != nil {
		return err
	}
	passwordAuth, err := scrypt.Derive([]byte(password), authSnrp)
	if err != nil {
		return err
	}
	passwordAuthBox, err := cryptobox.Encrypt(loginKey, passwordAuth)
	if err != nil {
		return err
	}

	keySnrp, err := scrypt.NewSnrp(benchMs, 0)
	if err != nil {
		return err
	}
	passwordKey, err := scrypt.Derive([]byte(password), keySnrp)
	if err != nil {
		return err
	}
	passwordBox, err := cryptobox.Encrypt(passwordKey, loginKey)
	if err != nil {
		return err
	}

	stash.PasswordAuthSnrp = authSnrp
	stash.PasswordAuthBox = passwordAuthBox
	stash.PasswordKeySnrp = keySnrp
	stash.PasswordBox = passwordBox
	return nil
}
