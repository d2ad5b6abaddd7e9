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

func TestEncryptStringRoundTrip(t *testing.T) {
	keys := testKeys(t)
	for _, s := range []string{"", "/var/lib/app", "symlink target with spaces"} {
		token := EncryptString(s, keys)
		got, err := DecryptString(token, keys)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestEncryptStringNotDeterministic(t *testing.T) {
	keys := testKeys(t)
	assert.NotEqual(t, EncryptString("same value", keys), EncryptString("same value", keys))
}

func TestDecryptStringRejectsGarbage(t *testing.T) {
	keys := testKeys(t)
	_, err := DecryptString("!!!not-base64!!!", keys)
	assert.ErrorIs(t, err, ErrInvalidText)
}

func TestDecryptStringRejectsWrongKey(t *testing.T) {
	keys := testKeys(t)
	other, err := DeriveKeys("other-password", []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	token := EncryptString("classified", keys)
	_, err = DecryptString(token, other)
	assert.ErrorIs(t, err, ErrInvalidText)
}
