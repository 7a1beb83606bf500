// Copyright 2017 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disklet implements the path-keyed text store consumed by the
// stash store (spec.md §6): a small key-value abstraction over a
// directory of files, with paths as keys and UTF-8 text as values.
package disklet

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"edgelogin.dev/errors"
)

// Disklet is a path-keyed text store, consumed by login/stashstore. It is
// the local concrete implementation of the disk primitive spec.md §6
// describes as "consumed" (io.disklet.{list, getText, setText, delete}).
type Disklet interface {
	// List returns every path under prefix, in lexical order.
	// Directories are not distinguished from files; use JustFiles to
	// filter a listing down to regular files.
	List(prefix string) ([]string, error)

	// GetText returns the UTF-8 contents stored at path.
	GetText(path string) (string, error)

	// SetText writes text to path as a single, whole-file write.
	SetText(path string, text string) error

	// Delete removes the file at path. Deleting a path that does not
	// exist returns a NotExist error.
	Delete(path string) error
}

// New returns a Disklet rooted at base. The directory is created if it
// does not already exist.
func New(base string) (Disklet, error) {
	const op errors.Op = "disklet.New"
	if err := os.MkdirAll(base, 0700); err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	return &localDisklet{base: base}, nil
}

type localDisklet struct {
	base string
}

var _ Disklet = (*localDisklet)(nil)

func (d *localDisklet) fullPath(path string) string {
	return filepath.Join(d.base, filepath.FromSlash(path))
}

// List implements Disklet.
func (d *localDisklet) List(prefix string) ([]string, error) {
	const op errors.Op = "disklet.List"
	dir := d.fullPath(prefix)
	entries, err := ioutil.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, strings.TrimSuffix(prefix, "/")+"/"+name)
	}
	sort.Strings(names)
	return names, nil
}

// GetText implements Disklet.
func (d *localDisklet) GetText(path string) (string, error) {
	const op errors.Op = "disklet.GetText"
	b, err := ioutil.ReadFile(d.fullPath(path))
	if os.IsNotExist(err) {
		return "", errors.E(op, errors.NotExist, errors.Str(path))
	}
	if err != nil {
		return "", errors.E(op, errors.IO, err)
	}
	return string(b), nil
}

// SetText implements Disklet. The write is not partial: it writes to a
// temporary file in the same directory and renames it into place, so a
// reader never observes a half-written file.
func (d *localDisklet) SetText(path string, text string) error {
	const op errors.Op = "disklet.SetText"
	full := d.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0700); err != nil {
		return errors.E(op, errors.IO, err)
	}
	tmp := full + ".tmp"
	if err := ioutil.WriteFile(tmp, []byte(text), 0600); err != nil {
		return errors.E(op, errors.IO, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		return errors.E(op, errors.IO, err)
	}
	return nil
}

// Delete implements Disklet.
func (d *localDisklet) Delete(path string) error {
	const op errors.Op = "disklet.Delete"
	if err := os.Remove(d.fullPath(path)); err != nil {
		if os.IsNotExist(err) {
			return errors.E(op, errors.NotExist, errors.Str(path))
		}
		return errors.E(op, errors.IO, err)
	}
	return nil
}

// JustFiles filters a Disklet listing down to entries that are regular
// files (i.e. do not end in "/"), matching spec.md §4.1's description of
// loadStashes: "lists logins/, filters regular files".
func JustFiles(listing []string) []string {
	files := make([]string, 0, len(listing))
	for _, name := range listing {
		if !strings.HasSuffix(name, "/") {
			files = append(files, name)
		}
	}
	return files
}
