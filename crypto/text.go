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

package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// textNonceSize is the secretbox nonce size; one is generated per call to
// EncryptString so that encrypting the same string twice yields different
// ciphertext.
const textNonceSize = 24

// EncryptString seals a short value, such as an inode attribute record or a
// directory entry, into a single self-describing base64 token: the nonce
// followed by the sealed box. Unlike the chunked content cipher this has no
// streaming state, so it is the right tool for values small enough to hold
// in memory whole.
func EncryptString(plaintext string, keys Keys) string {
	var nonce [textNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		// crypto/rand only fails if the OS entropy source is broken, which
		// nothing downstream can recover from either.
		panic(fmt.Sprintf("crypto: reading random nonce: %v", err))
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &keys.DataKey)
	return base64.RawURLEncoding.EncodeToString(sealed)
}

// ErrInvalidText is returned when a token passed to DecryptString is not a
// well-formed EncryptString output.
var ErrInvalidText = errors.New("crypto: invalid encrypted text token")

// DecryptString inverts EncryptString.
func DecryptString(token string, keys Keys) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidText, err)
	}
	if len(raw) < textNonceSize+secretbox.Overhead {
		return "", ErrInvalidText
	}

	var nonce [textNonceSize]byte
	copy(nonce[:], raw[:textNonceSize])

	opened, ok := secretbox.Open(nil, raw[textNonceSize:], &nonce, &keys.DataKey)
	if !ok {
		return "", fmt.Errorf("%w: authentication failed", ErrInvalidText)
	}
	return string(opened), nil
}
