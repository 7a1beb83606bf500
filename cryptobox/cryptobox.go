// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cryptobox implements the authenticated symmetric envelope
// ("EdgeBox") and the small set of raw primitives spec.md §3/§6 names as
// consumed pure functions: AES-CBC encryption authenticated with
// HMAC-SHA256, HMAC-SHA256 itself, and a cryptographic random source.
//
// No third-party package in the retrieval pack ships an AES-CBC envelope
// codec (see DESIGN.md); spec.md §1 fixes AES-CBC and HMAC-SHA256 as the
// algorithms, so this package builds the envelope directly from the
// standard library the way upspin.io/pack/ee builds its own envelopes.
package cryptobox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"

	"edgelogin.dev/errors"
)

// KeyLen is the size, in bytes, of every symmetric key this package
// accepts: a loginKey, a passwordKey, a pin2Key, and so on are all
// KeyLen bytes.
const KeyLen = 32

// Box is an authenticated-encryption envelope: an "EdgeBox" (spec.md
// §3). It carries everything needed to decrypt except the key.
type Box struct {
	// Algorithm names the cipher/MAC combination. Only "aes-cbc-hmac"
	// is currently produced or accepted.
	Algorithm string `json:"encryptionType"`
	// IV is the AES-CBC initialization vector.
	IV []byte `json:"iv_hex"`
	// Ciphertext is the AES-CBC output.
	Ciphertext []byte `json:"data_hex"`
	// MAC authenticates Algorithm, IV, and Ciphertext under a key
	// derived from the encryption key.
	MAC []byte `json:"hmac_hex"`
}

const algorithmAESCBCHMAC = "aes-cbc-hmac"

// Random returns n cryptographically random bytes.
func Random(n int) ([]byte, error) {
	const op errors.Op = "cryptobox.Random"
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	return b, nil
}

// HMACSHA256 returns HMAC-SHA256(key, data).
func HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// macKey derives the MAC key from the encryption key so a single 32-byte
// key drives both AES-CBC and its authenticator, the way NaCl's
// secretbox derives distinct subkeys from one shared secret.
func macKey(key []byte) []byte {
	return HMACSHA256(key, []byte("edgelogin.dev/cryptobox mac subkey"))
}

// Encrypt encrypts plaintext under key (which must be KeyLen bytes),
// returning an authenticated Box.
func Encrypt(key, plaintext []byte) (*Box, error) {
	const op errors.Op = "cryptobox.Encrypt"
	if len(key) != KeyLen {
		return nil, errors.E(op, errors.Invalid, errors.Errorf("key must be %d bytes, got %d", KeyLen, len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.E(op, errors.Invalid, err)
	}
	padded := pkcs7Pad(plaintext, block.BlockSize())
	iv, err := Random(block.BlockSize())
	if err != nil {
		return nil, errors.E(op, err)
	}
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	box := &Box{Algorithm: algorithmAESCBCHMAC, IV: iv, Ciphertext: ciphertext}
	box.MAC = HMACSHA256(macKey(key), authenticatedBytes(box))
	return box, nil
}

// Decrypt authenticates and decrypts box under key, returning the
// plaintext bytes.
func Decrypt(key []byte, box *Box) ([]byte, error) {
	const op errors.Op = "cryptobox.Decrypt"
	if len(key) != KeyLen {
		return nil, errors.E(op, errors.Invalid, errors.Errorf("key must be %d bytes, got %d", KeyLen, len(key)))
	}
	if box.Algorithm != algorithmAESCBCHMAC {
		return nil, errors.E(op, errors.Invalid, errors.Errorf("unsupported algorithm %q", box.Algorithm))
	}
	wantMAC := HMACSHA256(macKey(key), authenticatedBytes(box))
	if !hmac.Equal(wantMAC, box.MAC) {
		return nil, errors.E(op, errors.KeyIntegrity, errors.Str("mac mismatch"))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.E(op, errors.Invalid, err)
	}
	if len(box.Ciphertext) == 0 || len(box.Ciphertext)%block.BlockSize() != 0 {
		return nil, errors.E(op, errors.KeyIntegrity, errors.Str("ciphertext is not a multiple of the block size"))
	}
	if len(box.IV) != block.BlockSize() {
		return nil, errors.E(op, errors.KeyIntegrity, errors.Str("bad iv length"))
	}
	padded := make([]byte, len(box.Ciphertext))
	cipher.NewCBCDecrypter(block, box.IV).CryptBlocks(padded, box.Ciphertext)
	plaintext, err := pkcs7Unpad(padded, block.BlockSize())
	if err != nil {
		return nil, errors.E(op, errors.KeyIntegrity, err)
	}
	return plaintext, nil
}

// DecryptText is a convenience wrapper for boxes known to contain UTF-8
// text, such as the PIN stored in pin2TextBox (spec.md §4.3 step 5).
func DecryptText(key []byte, box *Box) (string, error) {
	b, err := Decrypt(key, box)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// authenticatedBytes returns the bytes the MAC is computed over: the
// algorithm tag, the IV, and the ciphertext, concatenated with an
// unambiguous JSON encoding so the MAC covers every field but itself.
func authenticatedBytes(box *Box) []byte {
	type authenticated struct {
		Algorithm  string `json:"encryptionType"`
		IV         []byte `json:"iv_hex"`
		Ciphertext []byte `json:"data_hex"`
	}
	b, _ := json.Marshal(authenticated{box.Algorithm, box.IV, box.Ciphertext})
	return b
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.Str("empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errors.Str("invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.Str("invalid padding")
		}
	}
	return data[:len(data)-padLen], nil
}
