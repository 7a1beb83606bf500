// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package otp

import (
	"testing"
	"time"
)

func TestFixOtpKeyStripsFormatting(t *testing.T) {
	a, err := FixOtpKey("jbsw y3dp ehpk3pxp")
	if err != nil {
		t.Fatal(err)
	}
	b, err := FixOtpKey("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("FixOtpKey normalization mismatch: %x != %x", a, b)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	secret := []byte("12345678901234567890")
	at := time.Unix(59, 0)
	a := Generate(secret, at)
	b := Generate(secret, at)
	if a != b {
		t.Errorf("Generate not deterministic: %q != %q", a, b)
	}
	if len(a) != Digits {
		t.Errorf("Generate produced %d digits, want %d", len(a), Digits)
	}
}

func TestValidateAcceptsSkew(t *testing.T) {
	secret := []byte("12345678901234567890")
	base := time.Unix(1000000, 0)
	code := Generate(secret, base)
	if !Validate(secret, code, base.Add(Period*time.Second)) {
		t.Error("Validate rejected a code within one period of skew")
	}
	if Validate(secret, code, base.Add(3*Period*time.Second)) {
		t.Error("Validate accepted a code well outside the skew window")
	}
}

func TestNewSecretRoundTripsThroughFixOtpKey(t *testing.T) {
	secret, err := NewSecret(20)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := FixOtpKey(secret)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 20 {
		t.Errorf("round-tripped secret is %d bytes, want 20", len(decoded))
	}
}
