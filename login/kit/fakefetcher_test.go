// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kit

import (
	"context"

	"edgelogin.dev/login"
)

// fakeFetcher is a scripted authclient.Fetcher for tests that don't need
// a real HTTP round trip (that coverage lives in authclient_test.go).
type fakeFetcher struct {
	reply    *login.LoginReply
	err      error
	requests []map[string]interface{}
	paths    []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, method, path string, request map[string]interface{}, reply *login.LoginReply) error {
	f.requests = append(f.requests, request)
	f.paths = append(f.paths, method+" "+path)
	if f.err != nil {
		return f.err
	}
	if reply != nil && f.reply != nil {
		*reply = *f.reply
	}
	return nil
}

func (f *fakeFetcher) FetchMessages(ctx context.Context, loginIDs []string) (*login.MessagesPayload, error) {
	return &login.MessagesPayload{}, nil
}
