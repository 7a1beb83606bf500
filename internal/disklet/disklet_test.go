// Copyright 2017 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package disklet

import (
	"testing"

	"edgelogin.dev/errors"
)

func TestPutGetDelete(t *testing.T) {
	d, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.SetText("logins/abc.json", `{"a":1}`); err != nil {
		t.Fatal(err)
	}
	got, err := d.GetText("logins/abc.json")
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"a":1}` {
		t.Errorf("GetText = %q", got)
	}
	if err := d.Delete("logins/abc.json"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.GetText("logins/abc.json"); !errors.Is(errors.NotExist, err) {
		t.Errorf("GetText after delete: err = %v, want NotExist", err)
	}
}

func TestListAndJustFiles(t *testing.T) {
	d, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"logins/a.json", "logins/b.json"} {
		if err := d.SetText(name, "{}"); err != nil {
			t.Fatal(err)
		}
	}
	listing, err := d.List("logins")
	if err != nil {
		t.Fatal(err)
	}
	files := JustFiles(listing)
	if len(files) != 2 {
		t.Fatalf("JustFiles returned %d entries, want 2: %v", len(files), files)
	}
}

func TestDeleteMissingIsNotExist(t *testing.T) {
	d, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Delete("logins/missing.json"); !errors.Is(errors.NotExist, err) {
		t.Errorf("Delete missing: err = %v, want NotExist", err)
	}
}
