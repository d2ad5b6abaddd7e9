// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package crypto supplies the cryptographic primitives the engine builds on:
// key derivation, a chunked streaming content cipher, a deterministic
// filename cipher, and a self-describing short-string cipher. None of these
// primitives support random access; the engine emulates that above this
// layer by replaying or rebuilding streams.
package crypto

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	dataKeySize   = 32 // secretbox key
	nameKeySize   = 16 // AES-128 for the EME name cipher
	nameTweakSize = 16 // EME tweak, one AES block
	keyMaterial   = dataKeySize + nameKeySize + nameTweakSize

	// scrypt cost parameters. N must be a power of two; these match the
	// values rclone's crypt backend uses for its own scrypt-derived keys.
	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

// Keys holds the key material derived once from a password and salt, split
// into independent keys for content encryption and filename encryption so
// that neither primitive leaks information usable against the other.
type Keys struct {
	DataKey   [dataKeySize]byte
	nameBlock gocipher.Block
	nameTweak [nameTweakSize]byte
}

// DeriveKeys derives content and filename keys from password and salt using
// scrypt. Deterministic: the same (password, salt) always yields the same
// Keys. salt should be at least 16 bytes; see Engine's per-install salt file
// for where it normally comes from.
func DeriveKeys(password string, salt []byte) (Keys, error) {
	material, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keyMaterial)
	if err != nil {
		return Keys{}, fmt.Errorf("scrypt.Key: %w", err)
	}

	var k Keys
	copy(k.DataKey[:], material[:dataKeySize])

	var nameKey [nameKeySize]byte
	copy(nameKey[:], material[dataKeySize:dataKeySize+nameKeySize])
	copy(k.nameTweak[:], material[dataKeySize+nameKeySize:])

	k.nameBlock, err = aes.NewCipher(nameKey[:])
	if err != nil {
		return Keys{}, fmt.Errorf("aes.NewCipher: %w", err)
	}

	return k, nil
}
