// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config creates a login tree core configuration from a YAML
// file and/or explicit overrides.
package config

import (
	"io"
	"io/ioutil"
	"os"
	osuser "os/user"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v2"

	"edgelogin.dev/errors"
)

// Config holds everything the login tree core needs to reach the auth
// server and the local disk that is not itself part of a login tree.
type Config struct {
	// AuthServer is the base URL for loginFetch requests, e.g.
	// "https://auth.example.com".
	AuthServer string

	// APIKey is sent as "Authorization: Token <APIKey>" on every
	// request (spec.md §6).
	APIKey string

	// DeviceDescription is attached to login and account-creation
	// requests for the server's audit log.
	DeviceDescription string

	// RequestTimeout bounds every loginFetch call. Defaults to 30s
	// per spec.md §5.
	RequestTimeout time.Duration

	// ScryptTargetMs is the latency budget handed to the scrypt
	// parameter chooser (spec.md §4.6).
	ScryptTargetMs int

	// StashDir is the root directory the stash store reads and
	// writes logins/<base58(loginId)>.json under.
	StashDir string
}

// defaultConfig returns a Config with every field at its default value.
func defaultConfig() Config {
	return Config{
		AuthServer:     "https://auth.example.com",
		RequestTimeout: 30 * time.Second,
		ScryptTargetMs: 1000,
		StashDir:       "",
	}
}

// Known top-level YAML keys. Any other key is a hard error, the same way
// the teacher's config package rejects unrecognized keys.
const (
	keyAuthServer        = "authserver"
	keyAPIKey            = "apikey"
	keyDeviceDescription = "devicedescription"
	keyRequestTimeoutMs  = "requesttimeoutms"
	keyScryptTargetMs    = "scrypttargetms"
	keyStashDir          = "stashdir"
)

// FromFile loads a Config from the named YAML file. If the file cannot
// be opened by that exact name and name is not absolute, $HOME/.edge is
// tried as a prefix, mirroring the teacher's $HOME/upspin fallback.
func FromFile(name string) (Config, error) {
	const op errors.Op = "config.FromFile"
	f, err := os.Open(name)
	if err != nil && !filepath.IsAbs(name) && os.IsNotExist(err) {
		home, errHome := Homedir()
		if errHome == nil {
			f, err = os.Open(filepath.Join(home, ".edge", name))
		}
	}
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, errors.E(op, errors.NotExist, err)
		}
		return Config{}, errors.E(op, err)
	}
	defer f.Close()
	return Init(f)
}

// Init parses a Config from r, a YAML document. A nil reader yields the
// defaults unchanged. StashDir defaults to $HOME/.edge if left unset
// after parsing, so stash files land in $HOME/.edge/logins/.
func Init(r io.Reader) (Config, error) {
	const op errors.Op = "config.Init"
	cfg := defaultConfig()
	if r == nil {
		return finishDefaults(cfg)
	}

	data, err := ioutil.ReadAll(r)
	if err != nil {
		return Config{}, errors.E(op, errors.IO, err)
	}
	if len(data) == 0 {
		return finishDefaults(cfg)
	}

	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, raw); err != nil {
		return Config{}, errors.E(op, errors.Invalid, errors.Errorf("parsing YAML: %v", err))
	}

	for k, v := range raw {
		switch k {
		case keyAuthServer:
			s, err := asString(v)
			if err != nil {
				return Config{}, errors.E(op, errors.Invalid, err)
			}
			cfg.AuthServer = s
		case keyAPIKey:
			s, err := asString(v)
			if err != nil {
				return Config{}, errors.E(op, errors.Invalid, err)
			}
			cfg.APIKey = s
		case keyDeviceDescription:
			s, err := asString(v)
			if err != nil {
				return Config{}, errors.E(op, errors.Invalid, err)
			}
			cfg.DeviceDescription = s
		case keyRequestTimeoutMs:
			ms, err := asInt(v)
			if err != nil {
				return Config{}, errors.E(op, errors.Invalid, err)
			}
			cfg.RequestTimeout = time.Duration(ms) * time.Millisecond
		case keyScryptTargetMs:
			ms, err := asInt(v)
			if err != nil {
				return Config{}, errors.E(op, errors.Invalid, err)
			}
			cfg.ScryptTargetMs = ms
		case keyStashDir:
			s, err := asString(v)
			if err != nil {
				return Config{}, errors.E(op, errors.Invalid, err)
			}
			cfg.StashDir = s
		default:
			return Config{}, errors.E(op, errors.Invalid, errors.Errorf("unrecognized key %q", k))
		}
	}
	return finishDefaults(cfg)
}

func finishDefaults(cfg Config) (Config, error) {
	if cfg.StashDir == "" {
		home, err := Homedir()
		if err != nil {
			return Config{}, errors.E(errors.Op("config.Init"), err)
		}
		cfg.StashDir = filepath.Join(home, ".edge")
	}
	return cfg, nil
}

func asString(v interface{}) (string, error) {
	switch vc := v.(type) {
	case string:
		return vc, nil
	case int, int64, bool:
		return errors.Errorf("%v", vc).Error(), nil
	}
	return "", errors.Errorf("unrecognized value %T for string key", v)
}

func asInt(v interface{}) (int, error) {
	switch vc := v.(type) {
	case int:
		return vc, nil
	case int64:
		return int(vc), nil
	}
	return 0, errors.Errorf("unrecognized value %T for integer key", v)
}

// Homedir returns the home directory of the OS's logged-in user.
func Homedir() (string, error) {
	u, err := osuser.Current()
	if u == nil {
		e := errors.Str("lookup of current user failed")
		if err != nil {
			e = errors.Errorf("%v: %v", e, err)
		}
		return "", e
	}
	h := u.HomeDir
	if h == "" {
		return "", errors.E(errors.NotExist, errors.Str("user home directory not found"))
	}
	return h, nil
}
