// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errors defines the error handling used throughout the login
// tree core. Its design follows the "self-describing error" idiom: a
// single Error type accumulates typed context (operation, kind, the
// identifiers involved) as it propagates, and Error() renders whatever
// context was set.
package errors

import (
	"bytes"
	"fmt"
	"runtime"

	"edgelogin.dev/log"
)

// Username identifies the user a login tree belongs to. It is given a
// unique type so the E dispatch can tell it apart from an Op.
type Username string

// AppID identifies a node's application scope within a login tree ("" is
// the root). It is given a unique type for the same reason as Username.
type AppID string

// Op describes the operation being performed, usually the name of the
// function that calls E, qualified by its package.
type Op string

// Error is the type that implements the error interface.
// It contains a number of fields, each of different type.
// An Error value may leave some values unset.
type Error struct {
	// Username is the login this error concerns, if any.
	Username Username
	// AppID is the node this error concerns, if any.
	AppID AppID
	// Op is the operation being performed.
	Op Op
	// Kind is the class of error, such as permission failure,
	// or Other if its class is unknown or irrelevant.
	Kind Kind
	// Otp carries the structured payload of an OtpError: the voucher
	// the server wants echoed back on the next attempt.
	Otp *OtpPayload
	// The underlying error that triggered this one, if any.
	Err error
}

// OtpPayload is the structured payload of an OtpError (spec.md §7).
type OtpPayload struct {
	LoginID     string
	VoucherID   string
	VoucherAuth string
	ResetToken  string
}

var zeroErr Error

// Separator is the string used to separate nested errors. By
// default, to make errors easier on the eye, nested errors are
// indented on a new line.
var Separator = ":\n\t"

// Kind defines the kind of error this is, so that callers can dispatch
// on error class without string matching.
type Kind uint8

// Kinds of errors, matching spec.md §7 plus the ambient I/O and
// validation kinds every implementation needs.
const (
	Other              Kind = iota // Unclassified error. This value is not printed in the error message.
	Invalid                        // Ill-formed argument.
	Permission                     // Permission denied.
	IO                             // External I/O error such as disk or network failure.
	Exist                          // Item already exists.
	NotExist                       // Item does not exist.
	UsernameTaken                  // Username already registered with the server.
	OtpErrorKind                   // Server demands (or renews) an OTP/voucher challenge.
	PasswordError                  // Password did not match.
	Pin2Error                      // PIN did not match.
	Recovery2Error                 // Recovery answers did not match.
	NetworkError                   // Timeout or transport failure talking to the server.
	KeyIntegrity                   // Missing parentBox, or an allowlisted field failed to decrypt.
	ServerLostChildren             // Reply has fewer children than the local stash for a subtree.
	MissingAuth                    // Decrypted node exposes neither loginAuth nor passwordAuth.
	NoAuth                         // No authentication material available to build a server request.
	MissingLogin                   // Kit's target loginId was not found in the tree.
	InvalidStash                   // Stash fails schema validation or has a malformed loginId.
)

func (k Kind) String() string {
	switch k {
	case Other:
		return "other error"
	case Invalid:
		return "invalid operation"
	case Permission:
		return "permission denied"
	case IO:
		return "I/O error"
	case Exist:
		return "item already exists"
	case NotExist:
		return "item does not exist"
	case UsernameTaken:
		return "username already taken"
	case OtpErrorKind:
		return "otp challenge required"
	case PasswordError:
		return "password did not match"
	case Pin2Error:
		return "pin did not match"
	case Recovery2Error:
		return "recovery answers did not match"
	case NetworkError:
		return "network error"
	case KeyIntegrity:
		return "key integrity error"
	case ServerLostChildren:
		return "server lost children"
	case MissingAuth:
		return "missing auth secret"
	case NoAuth:
		return "no auth material available"
	case MissingLogin:
		return "login not found in tree"
	case InvalidStash:
		return "invalid stash"
	}
	return "unknown error kind"
}

// E builds an error value from its arguments.
// The type of each argument determines its meaning.
// If more than one argument of a given type is presented,
// only the last one is recorded.
//
// The types are:
//	errors.Username
//		The login the error concerns.
//	errors.AppID
//		The node the error concerns.
//	errors.Op
//		The operation being performed, usually the method being invoked.
//	errors.Kind
//		The class of error, such as permission failure.
//	*errors.OtpPayload
//		The voucher payload of an OtpError.
//	error
//		The underlying error that triggered this one.
//
// If the error is printed, only those items that have been
// set to non-zero values will appear in the result.
//
// If Kind is not specified or Other, we set it to the Kind of
// the underlying error.
func E(args ...interface{}) error {
	if len(args) == 0 {
		return nil
	}
	e := &Error{}
	for _, arg := range args {
		switch arg := arg.(type) {
		case Username:
			e.Username = arg
		case AppID:
			e.AppID = arg
		case Op:
			e.Op = arg
		case Kind:
			e.Kind = arg
		case *OtpPayload:
			e.Otp = arg
		case *Error:
			// Make a copy.
			cp := *arg
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Error.Printf("errors.E: bad call from %s:%d: %v", file, line, args)
			return Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}
	prev, ok := e.Err.(*Error)
	if !ok {
		return e
	}

	// The previous error was also one of ours. Suppress duplications
	// so the message won't contain the same kind or identifier twice.
	if prev.Username == e.Username {
		prev.Username = ""
	}
	if prev.AppID == e.AppID {
		prev.AppID = ""
	}
	if prev.Kind == e.Kind {
		prev.Kind = Other
	}
	// If this error has Kind unset or Other, pull up the inner one.
	if e.Kind == Other {
		e.Kind = prev.Kind
		prev.Kind = Other
	}
	if e.Otp == nil {
		e.Otp = prev.Otp
		prev.Otp = nil
	}
	return e
}

// pad appends str to the buffer if the buffer already has some data.
func pad(b *bytes.Buffer, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

func (e *Error) Error() string {
	b := new(bytes.Buffer)
	if e.Username != "" {
		b.WriteString("user ")
		b.WriteString(string(e.Username))
	}
	if e.AppID != "" {
		pad(b, ", ")
		b.WriteString("app ")
		b.WriteString(string(e.AppID))
	}
	if e.Op != "" {
		pad(b, ": ")
		b.WriteString(string(e.Op))
	}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		// Indent on new line if we are cascading non-empty nested errors.
		if prevErr, ok := e.Err.(*Error); ok {
			if *prevErr != zeroErr {
				pad(b, Separator)
				b.WriteString(e.Err.Error())
			}
		} else {
			pad(b, ": ")
			b.WriteString(e.Err.Error())
		}
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

// Is reports whether err is an *Error whose Kind, once nested Other
// wrappers are unwound, equals kind.
func Is(kind Kind, err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	if e.Kind != Other {
		return e.Kind == kind
	}
	if e.Err != nil {
		return Is(kind, e.Err)
	}
	return false
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// otherwise it returns Other.
func KindOf(err error) Kind {
	e, ok := err.(*Error)
	if !ok {
		return Other
	}
	if e.Kind != Other {
		return e.Kind
	}
	if e.Err != nil {
		return KindOf(e.Err)
	}
	return Other
}

// OtpPayloadOf extracts the *OtpPayload from err if present anywhere in
// the chain.
func OtpPayloadOf(err error) *OtpPayload {
	e, ok := err.(*Error)
	if !ok {
		return nil
	}
	if e.Otp != nil {
		return e.Otp
	}
	if e.Err != nil {
		return OtpPayloadOf(e.Err)
	}
	return nil
}

// Recreate the errors.New functionality of the standard Go errors package
// so we can create simple text errors when needed.

// Str returns an error that formats as the given text. It is intended to
// be used as the error-typed argument to the E function.
func Str(text string) error {
	return &errorString{text}
}

// errorString is a trivial implementation of error.
type errorString struct {
	s string
}

func (e *errorString) Error() string {
	return e.s
}

// Errorf is equivalent to fmt.Errorf, but returns a value usable
// directly as the error-typed argument to E, so callers need only
// import this package for all error handling.
func Errorf(format string, args ...interface{}) error {
	return &errorString{fmt.Sprintf(format, args...)}
}
