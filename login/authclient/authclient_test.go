// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"edgelogin.dev/errors"
	"edgelogin.dev/login"
)

func TestFetchSuccessUnmarshalsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("Authorization header = %q", got)
		}
		w.Write([]byte(`{"results":{"appId":"","loginId":"abc"}}`))
	}))
	defer server.Close()

	c := New(server.URL, "test-key", 5*time.Second)
	var reply login.LoginReply
	if err := c.Fetch(context.Background(), http.MethodPost, "/v2/login", map[string]interface{}{"otp": "123456"}, &reply); err != nil {
		t.Fatal(err)
	}
	if reply.LoginID != "abc" {
		t.Errorf("LoginID = %q, want %q", reply.LoginID, "abc")
	}
}

func TestFetchOtpErrorCarriesVoucher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(serverError{
			ErrorCode:   "OtpError",
			Message:     "otp required",
			LoginID:     "L",
			VoucherID:   "V",
			VoucherAuth: "A",
		})
	}))
	defer server.Close()

	c := New(server.URL, "test-key", 5*time.Second)
	err := c.Fetch(context.Background(), http.MethodPost, "/v2/login", map[string]interface{}{}, &login.LoginReply{})
	if !errors.Is(errors.OtpErrorKind, err) {
		t.Fatalf("err = %v, want OtpErrorKind", err)
	}
	payload := errors.OtpPayloadOf(err)
	if payload == nil || payload.LoginID != "L" || payload.VoucherID != "V" || payload.VoucherAuth != "A" {
		t.Errorf("OtpPayloadOf = %+v, want {L, V, A}", payload)
	}
}

func TestFetchMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			LoginIDs []string `json:"loginIds"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if len(body.LoginIDs) != 2 {
			t.Errorf("loginIds = %v, want 2 entries", body.LoginIDs)
		}
		w.Write([]byte(`{"messages":{"a":1}}`))
	}))
	defer server.Close()

	c := New(server.URL, "test-key", 5*time.Second)
	payload, err := c.FetchMessages(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(payload.Messages) != 1 {
		t.Errorf("Messages = %v, want 1 entry", payload.Messages)
	}
}

func TestFetchNetworkErrorOnBadHost(t *testing.T) {
	c := New("http://127.0.0.1:1", "test-key", 200*time.Millisecond)
	err := c.Fetch(context.Background(), http.MethodPost, "/v2/login", map[string]interface{}{}, &login.LoginReply{})
	if !errors.Is(errors.NetworkError, err) {
		t.Errorf("err = %v, want NetworkError", err)
	}
}
