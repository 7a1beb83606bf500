// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package otp implements RFC 6238 TOTP with the period and digit count
// spec.md §6 calls for (hotp.totp), plus the base32 key normalization
// spec.md §6 calls hotp.fixOtpKey. Adapted from a stdlib-only TOTP
// implementation found elsewhere in the retrieval pack (see DESIGN.md);
// the shape (Generate, Validate, NewSecret) is kept, the digit
// count and skew policy are fixed to the values the login tree core
// requires.
package otp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"math"
	"strings"
	"time"

	"edgelogin.dev/cryptobox"
	"edgelogin.dev/errors"
)

// Period is the TOTP time step, in seconds.
const Period = 30

// Digits is the number of digits in a generated code.
const Digits = 6

// Skew is the number of adjacent time steps Validate accepts on either
// side of the current one, to tolerate small clock drift between client
// and server.
const Skew = 1

// FixOtpKey normalizes a user- or server-supplied otpKey into the raw
// bytes TOTP expects: it strips spaces and hyphens, uppercases, and
// base32-decodes with padding tolerated either way. This mirrors
// hotp.fixOtpKey's role in spec.md §6 of accepting the loosely formatted
// keys real authenticator apps and QR codes produce.
func FixOtpKey(key string) ([]byte, error) {
	const op errors.Op = "otp.FixOtpKey"
	cleaned := strings.ToUpper(strings.NewReplacer(" ", "", "-", "").Replace(key))
	if n := len(cleaned) % 8; n != 0 {
		cleaned += strings.Repeat("=", 8-n)
	}
	secret, err := base32.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, errors.E(op, errors.Invalid, err)
	}
	return secret, nil
}

// TOTP generates the current TOTP code for the base32-encoded secret
// key, as spec.md §4.5's makeAuthJson and getStashOtp call for.
func TOTP(key string) (string, error) {
	secret, err := FixOtpKey(key)
	if err != nil {
		return "", err
	}
	return Generate(secret, timeNow()), nil
}

// timeNow is a var so tests can freeze time without depending on a
// mockable clock threaded through every call.
var timeNow = time.Now

// Generate produces a TOTP code for secret at time t.
func Generate(secret []byte, t time.Time) string {
	counter := uint64(t.Unix()) / uint64(Period)

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, counter)

	mac := hmac.New(sha1.New, secret)
	mac.Write(buf)
	hash := mac.Sum(nil)

	offset := hash[len(hash)-1] & 0x0f
	code := binary.BigEndian.Uint32(hash[offset:offset+4]) & 0x7fffffff

	mod := uint32(math.Pow10(Digits))
	return zeroPad(code%mod, Digits)
}

// Validate reports whether code matches secret at time t, within Skew
// time steps on either side.
func Validate(secret []byte, code string, t time.Time) bool {
	for i := -Skew; i <= Skew; i++ {
		check := t.Add(time.Duration(i*Period) * time.Second)
		if Generate(secret, check) == code {
			return true
		}
	}
	return false
}

// NewSecret generates a fresh random otpKey of length bytes, base32
// encoded without padding, suitable for storing as LoginStash.otpKey.
// A length below 16 is replaced by 20.
func NewSecret(length int) (string, error) {
	if length < 16 {
		length = 20
	}
	b, err := cryptobox.Random(length)
	if err != nil {
		return "", errors.E(errors.Op("otp.NewSecret"), err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b), nil
}

func zeroPad(n uint32, digits int) string {
	s := make([]byte, digits)
	for i := digits - 1; i >= 0; i-- {
		s[i] = byte('0' + n%10)
		n /= 10
	}
	return string(s)
}
