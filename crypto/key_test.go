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

func TestDeriveKeysDeterministic(t *testing.T) {
	salt := []byte("fixed-test-salt-000000")

	k1, err := DeriveKeys("hunter2", salt)
	require.NoError(t, err)
	k2, err := DeriveKeys("hunter2", salt)
	require.NoError(t, err)

	assert.Equal(t, k1.DataKey, k2.DataKey)
	assert.Equal(t, EncryptName("report.txt", k1), EncryptName("report.txt", k2))
}

func TestDeriveKeysDiffer(t *testing.T) {
	salt := []byte("fixed-test-salt-000000")

	k1, err := DeriveKeys("hunter2", salt)
	require.NoError(t, err)
	k2, err := DeriveKeys("correct-horse-battery", salt)
	require.NoError(t, err)

	assert.NotEqual(t, k1.DataKey, k2.DataKey)

	otherSalt, err := DeriveKeys("hunter2", []byte("different-salt-000000"))
	require.NoError(t, err)
	assert.NotEqual(t, k1.DataKey, otherSalt.DataKey)
}
