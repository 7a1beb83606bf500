// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kit

import (
	"encoding/base64"

	"edgelogin.dev/cryptobox"
	"edgelogin.dev/errors"
	"edgelogin.dev/login"
	"edgelogin.dev/login/stashstore"
	"edgelogin.dev/otp"
)

// GetStashOtpOptions carries the caller-supplied OTP overrides
// GetStashOtp chooses among (spec.md §4.5).
type GetStashOtpOptions struct {
	// Otp is either a user-typed numeric code, a base32 secret, or
	// empty.
	Otp string
	// OtpKey is an explicit base32 secret overriding stash.OtpKey.
	OtpKey string
}

// MakeAuthJSON chooses the strongest available authentication method on
// t and builds the request fragment a server call sends: prefer
// loginAuth, fall back to passwordAuth, and fail with NoAuth if neither
// is present. otp is included only when t.OtpKey is set.
func MakeAuthJSON(t *login.LoginTree) (map[string]interface{}, error) {
	const op errors.Op = "kit.MakeAuthJSON"

	request := map[string]interface{}{}
	switch {
	case t.LoginAuth != nil:
		request["loginId"] = t.LoginID
		request["loginAuth"] = base64.StdEncoding.EncodeToString(t.LoginAuth)
	case t.PasswordAuth != nil:
		request["userId"] = t.UserID
		request["passwordAuth"] = base64.StdEncoding.EncodeToString(t.PasswordAuth)
	default:
		return nil, errors.E(op, errors.AppID(t.AppID), errors.NoAuth)
	}

	if t.OtpKey != "" {
		code, err := otp.TOTP(t.OtpKey)
		if err != nil {
			return nil, errors.E(op, err)
		}
		request["otp"] = code
	}
	return request, nil
}

// GetStashOtp chooses an OTP value to send with a server request,
// following spec.md §4.5's priority: a short user-typed digit code
// verbatim, an explicit base32 secret run through TOTP, the stash's own
// otpKey, or nothing.
func GetStashOtp(stash *login.LoginStash, opts GetStashOtpOptions) (string, error) {
	if opts.Otp != "" {
		if isShortDigitCode(opts.Otp) {
			return opts.Otp, nil
		}
		return otp.TOTP(opts.Otp)
	}
	if opts.OtpKey != "" {
		return otp.TOTP(opts.OtpKey)
	}
	if stash != nil && stash.OtpKey != "" {
		return otp.TOTP(stash.OtpKey)
	}
	return "", nil
}

func isShortDigitCode(s string) bool {
	if len(s) >= 16 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// hashUsernameDomain is the HMAC domain-separation key hashUsername
// uses to derive a root stash's loginId from its username (spec.md §3
// invariant 3). The exact KDF is left unspecified by spec.md; HMAC is
// chosen over scrypt here because account creation has no benchMs
// calibration yet available (see DESIGN.md).
var hashUsernameDomain = []byte("edgelogin.dev/login/kit hashUsername")

// hashUsername derives a root stash's loginId deterministically from
// its normalized username.
func hashUsername(username string) []byte {
	return cryptobox.HMACSHA256(hashUsernameDomain, []byte(stashstore.NormalizeUsername(username)))
}
