// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scrypt

import "testing"

func TestDeriveDeterministic(t *testing.T) {
	snrp := &Snrp{Salt: []byte("0123456789abcdef"), N: 16384, R: 8, P: 1}
	a, err := Derive([]byte("hunter2"), snrp)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Derive([]byte("hunter2"), snrp)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != KeyLen {
		t.Fatalf("Derive returned %d bytes, want %d", len(a), KeyLen)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Derive is not deterministic for identical inputs")
		}
	}
}

func TestDeriveDifferentSaltDiffers(t *testing.T) {
	a, err := Derive([]byte("hunter2"), &Snrp{Salt: []byte("aaaaaaaaaaaaaaaa"), N: 16384, R: 8, P: 1})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Derive([]byte("hunter2"), &Snrp{Salt: []byte("bbbbbbbbbbbbbbbb"), N: 16384, R: 8, P: 1})
	if err != nil {
		t.Fatal(err)
	}
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
		}
	}
	if same {
		t.Fatal("different salts produced identical keys")
	}
}

func TestChooseParamsZeroBenchReturnsFixed(t *testing.T) {
	n, r, p := chooseParams(0, 500)
	if n != 131072 || r != 8 || p != 64 {
		t.Errorf("chooseParams(0, 500) = (%d, %d, %d), want (131072, 8, 64)", n, r, p)
	}
}

func TestChooseParamsBelowBudgetReturnsBaseline(t *testing.T) {
	n, r, p := chooseParams(1000, 500)
	if n != 16384 || r != 8 || p != 1 {
		t.Errorf("chooseParams(1000, 500) = (%d, %d, %d), want baseline", n, r, p)
	}
}

func TestChooseParamsRStaysAtCap(t *testing.T) {
	// r's cap equals its starting value, so no budget ever moves r off 8
	// (spec.md §9 Open Question: preserved intentionally).
	_, r, _ := chooseParams(10, 10000)
	if r != 8 {
		t.Errorf("r = %d, want 8 (r cap equals its starting value)", r)
	}
}

func TestChooseParamsGrowsNWithBudget(t *testing.T) {
	n, _, _ := chooseParams(10, 100)
	if n <= 16384 {
		t.Errorf("n = %d, want > 16384 for a generous budget", n)
	}
	if n > 1<<17 {
		t.Errorf("n = %d, exceeds cap of %d", n, 1<<17)
	}
}

func TestNewSnrpProducesRandomSalt(t *testing.T) {
	a, err := NewSnrp(0, 1000)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSnrp(0, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Salt) != 32 || len(b.Salt) != 32 {
		t.Fatalf("salt lengths = %d, %d, want 32", len(a.Salt), len(b.Salt))
	}
	same := true
	for i := range a.Salt {
		if a.Salt[i] != b.Salt[i] {
			same = false
		}
	}
	if same {
		t.Error("NewSnrp produced identical salts on successive calls")
	}
}
