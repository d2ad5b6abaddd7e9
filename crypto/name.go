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
	"crypto/aes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/rfjakob/eme"
)

// nameBlockSize is the EME transform's block granularity; plaintext is
// padded up to a multiple of it before encryption.
const nameBlockSize = aes.BlockSize

// reserved names never pass through the filename cipher: the directory
// layout stores "." and ".." entries under these literal tokens so that
// readdir can recognize them without a decrypt round trip.
const (
	ReservedSelf   = "$."
	ReservedParent = "$.."
)

// ErrInvalidToken is returned when a directory entry's filename is not a
// well-formed encrypted token: it fails base64 decoding, is not a multiple
// of the cipher's block size, or is implausibly long for a filename.
var ErrInvalidToken = errors.New("crypto: invalid encrypted name token")

const maxNameTokenBytes = 2048

// EncryptName deterministically encrypts one path segment, returning a
// token safe to use as a host filesystem entry name. The same plaintext
// under the same Keys always yields the same token, which is what lets
// FindByName derive a lookup token without scanning a directory.
func EncryptName(plaintext string, keys Keys) string {
	if plaintext == "" {
		return ""
	}
	padded := pkcs7Pad(nameBlockSize, []byte(plaintext))
	ciphertext := eme.Transform(keys.nameBlock, keys.nameTweak[:], padded, eme.DirectionEncrypt)
	return normalizeToken(base64.RawURLEncoding.EncodeToString(ciphertext))
}

// DecryptName inverts EncryptName. It rejects tokens that cannot possibly
// have come from EncryptName, rather than handing eme.Transform malformed
// input.
func DecryptName(token string, keys Keys) (string, error) {
	if token == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(denormalizeToken(token))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}
	if len(raw) == 0 || len(raw)%nameBlockSize != 0 {
		return "", ErrInvalidToken
	}
	if len(raw) > maxNameTokenBytes {
		return "", ErrInvalidToken
	}

	padded := eme.Transform(keys.nameBlock, keys.nameTweak[:], raw, eme.DirectionDecrypt)
	plaintext, err := pkcs7Unpad(nameBlockSize, padded)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}
	return string(plaintext), nil
}

// normalizeToken and denormalizeToken are the hook the spec calls for to
// recover from host filesystems that cannot store a name exactly as
// produced by the encoder. base64.RawURLEncoding never emits characters a
// POSIX filesystem rejects, so today this is the identity transform; it
// exists so a future host-specific encoder has one place to plug into
// without touching the cipher itself.
func normalizeToken(s string) string   { return s }
func denormalizeToken(s string) string { return s }

// pkcs7Pad appends between 1 and blockSize padding bytes, each holding the
// pad length, so unpadding is unambiguous even when the input is already a
// multiple of blockSize.
func pkcs7Pad(blockSize int, buf []byte) []byte {
	n := blockSize - (len(buf) % blockSize)
	padded := make([]byte, len(buf)+n)
	copy(padded, buf)
	for i := len(buf); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// pkcs7Unpad strips and validates the padding pkcs7Pad appended.
func pkcs7Unpad(blockSize int, buf []byte) ([]byte, error) {
	if len(buf) == 0 || len(buf)%blockSize != 0 {
		return nil, errors.New("crypto: pkcs7: input is not a multiple of the block size")
	}
	n := int(buf[len(buf)-1])
	if n == 0 || n > blockSize || n > len(buf) {
		return nil, errors.New("crypto: pkcs7: invalid padding")
	}
	for _, b := range buf[len(buf)-n:] {
		if int(b) != n {
			return nil, errors.New("crypto: pkcs7: invalid padding")
		}
	}
	return buf[:len(buf)-n], nil
}
