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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptNameRoundTrip(t *testing.T) {
	keys := testKeys(t)

	for _, name := range []string{
		"",
		"a",
		"report.final.v2.docx",
		"a name with many characters exceeding one AES block in length",
	} {
		token := EncryptName(name, keys)
		got, err := DecryptName(token, keys)
		require.NoError(t, err)
		assert.Equal(t, name, got)
	}
}

func TestEncryptNameDeterministic(t *testing.T) {
	keys := testKeys(t)
	assert.Equal(t, EncryptName("invoice.pdf", keys), EncryptName("invoice.pdf", keys))
}

func TestEncryptNameNoCommonPrefix(t *testing.T) {
	keys := testKeys(t)
	a := EncryptName("alpha", keys)
	b := EncryptName("alphabet", keys)
	assert.NotEqual(t, a[:1], b[:1])
}

func TestDecryptNameRejectsGarbage(t *testing.T) {
	keys := testKeys(t)
	_, err := DecryptName("not-valid-base64!!!", keys)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecryptNameRejectsWrongKey(t *testing.T) {
	keys := testKeys(t)
	other, err := DeriveKeys("other-password", []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	token := EncryptName("payroll.csv", keys)
	_, err = DecryptName(token, other)
	assert.Error(t, err)
}

func TestReservedNamesNeverEmittedByEncryptName(t *testing.T) {
	keys := testKeys(t)
	for _, reserved := range []string{ReservedSelf, ReservedParent} {
		for _, candidate := range []string{"a", "b", "report.txt", "x"} {
			assert.NotEqual(t, reserved, EncryptName(candidate, keys))
		}
	}
}

func TestPKCS7PadUnpadRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 17, 31, 32, 33} {
		buf := make([]byte, n)
		for i := range buf {
			buf[i] = byte(i)
		}
		padded := pkcs7Pad(16, buf)
		assert.Equal(t, 0, len(padded)%16)
		assert.NotEqual(t, 0, len(padded)-len(buf))

		unpadded, err := pkcs7Unpad(16, padded)
		require.NoError(t, err)
		assert.Equal(t, buf, unpadded)
	}
}
