// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package authclient implements loginFetch, the auth server transport
// spec.md §4.5/§6 treats as a consumed external interface: JSON request
// bodies, a Token-scheme Authorization header, and server error codes
// mapped to typed errors. Grounded on rpc/client.go's httpClient
// (baseURL, *http.Client, a tuned Transport) with protobuf framing
// swapped for JSON, since spec.md's wire protocol is JSON, not RPC.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"edgelogin.dev/errors"
	"edgelogin.dev/login"
)

// Fetcher is the loginFetch interface spec.md §1/§6 names as a consumed
// external collaborator: HTTP transport and OTP/voucher error mapping
// live behind it. The HTTP implementation returned by New sends each
// request once, without retry.
type Fetcher interface {
	// Fetch issues method to path with request marshaled as the JSON
	// body (callers put any method payload under its "data" key), and
	// unmarshals the response's "results" into reply when reply is
	// non-nil.
	Fetch(ctx context.Context, method, path string, request map[string]interface{}, reply *login.LoginReply) error

	// FetchMessages issues POST /api/v2/messages for the given login
	// ids.
	FetchMessages(ctx context.Context, loginIDs []string) (*login.MessagesPayload, error)
}

// httpFetcher is the concrete, HTTP-backed Fetcher.
type httpFetcher struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

var _ Fetcher = (*httpFetcher)(nil)

// New returns a Fetcher that talks to baseURL (e.g.
// "https://auth.example.com") using apiKey as the bearer token and
// timeout as the per-request deadline, mirroring the tuned transport
// httpClient builds in rpc/client.go.
func New(baseURL, apiKey string, timeout time.Duration) Fetcher {
	return &httpFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Fetch implements Fetcher. Per spec.md §6, the request body is
// {loginId|userId, loginAuth?|passwordAuth?, otp?, voucherId?,
// voucherAuth?, deviceDescription?, data: <methodPayload>}; this
// function's request argument already carries that whole shape,
// including "data" (set by callers such as ApplyKit from a kit's server
// field), and is marshaled unchanged.
func (c *httpFetcher) Fetch(ctx context.Context, method, path string, request map[string]interface{}, reply *login.LoginReply) error {
	const op errors.Op = "authclient.Fetch"
	body, err := json.Marshal(request)
	if err != nil {
		return errors.E(op, err)
	}
	respBody, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}
	var envelope struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return errors.E(op, errors.NetworkError, err)
	}
	if len(envelope.Results) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Results, reply); err != nil {
		return errors.E(op, errors.NetworkError, err)
	}
	return nil
}

// FetchMessages implements Fetcher.
func (c *httpFetcher) FetchMessages(ctx context.Context, loginIDs []string) (*login.MessagesPayload, error) {
	const op errors.Op = "authclient.FetchMessages"
	body, err := json.Marshal(map[string]interface{}{"loginIds": loginIDs})
	if err != nil {
		return nil, errors.E(op, err)
	}
	respBody, err := c.do(ctx, http.MethodPost, "/api/v2/messages", body)
	if err != nil {
		return nil, err
	}
	var payload login.MessagesPayload
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, errors.E(op, errors.NetworkError, err)
	}
	return &payload, nil
}

func (c *httpFetcher) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	const op errors.Op = "authclient.do"
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.E(op, errors.Invalid, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("X-Request-Id", uuid.New().String())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.E(op, errors.NetworkError, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.E(op, errors.NetworkError, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}
	return nil, classifyError(resp.StatusCode, respBody)
}

// serverError is the JSON shape an error response carries, per
// spec.md §6's parseReply description of mapping server error codes to
// typed errors.
type serverError struct {
	ErrorCode   string `json:"errorCode"`
	Message     string `json:"message"`
	LoginID     string `json:"loginId,omitempty"`
	VoucherID   string `json:"voucherId,omitempty"`
	VoucherAuth string `json:"voucherAuth,omitempty"`
	ResetToken  string `json:"resetToken,omitempty"`
}

// classifyError maps a non-2xx HTTP response to one of the typed errors
// spec.md §7 enumerates.
func classifyError(statusCode int, body []byte) error {
	const op errors.Op = "authclient.classifyError"
	var se serverError
	if err := json.Unmarshal(body, &se); err != nil {
		return errors.E(op, errors.NetworkError, errors.Errorf("status %d: %s", statusCode, body))
	}
	switch se.ErrorCode {
	case "UsernameError":
		return errors.E(op, errors.UsernameTaken, errors.Str(se.Message))
	case "OtpError":
		return errors.E(op, errors.OtpErrorKind, &errors.OtpPayload{
			LoginID:     se.LoginID,
			VoucherID:   se.VoucherID,
			VoucherAuth: se.VoucherAuth,
			ResetToken:  se.ResetToken,
		}, errors.Str(se.Message))
	case "PasswordError":
		return errors.E(op, errors.PasswordError, errors.Str(se.Message))
	case "Pin2Error":
		return errors.E(op, errors.Pin2Error, errors.Str(se.Message))
	case "Recovery2Error":
		return errors.E(op, errors.Recovery2Error, errors.Str(se.Message))
	default:
		return errors.E(op, errors.NetworkError, errors.Errorf("status %d: %s", statusCode, se.Message))
	}
}
