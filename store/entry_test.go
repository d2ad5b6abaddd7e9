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

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeDirEntryRoundTrip(t *testing.T) {
	e := DirEntry{ChildIno: 12345, Kind: Directory}
	decoded, err := DecodeDirEntry(EncodeDirEntry(e))
	require.NoError(t, err)
	assert.Equal(t, e, decoded)
}

func TestDecodeDirEntryRejectsWrongLength(t *testing.T) {
	_, err := DecodeDirEntry([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeDirEntryRejectsInvalidKind(t *testing.T) {
	buf := EncodeDirEntry(DirEntry{ChildIno: 1, Kind: RegularFile})
	buf[8] = 9
	_, err := DecodeDirEntry(buf)
	assert.Error(t, err)
}
