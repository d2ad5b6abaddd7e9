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
	"encoding/binary"

	"github.com/cryptofs/cryptofs/errs"
)

// DirEntry is the tuple a directory entry file decrypts to: which inode the
// name refers to, and that inode's kind, so that readdir can report kinds
// without opening every child's attribute record.
type DirEntry struct {
	ChildIno uint64
	Kind     Kind
}

const dirEntryRecordSize = 8 + 1

// EncodeDirEntry serializes e into the fixed 9-byte layout
// (child_ino uint64 big-endian, kind byte), ready to pass to
// crypto.EncryptString.
func EncodeDirEntry(e DirEntry) []byte {
	buf := make([]byte, dirEntryRecordSize)
	binary.BigEndian.PutUint64(buf[:8], e.ChildIno)
	buf[8] = byte(e.Kind)
	return buf
}

// DecodeDirEntry inverts EncodeDirEntry.
func DecodeDirEntry(data []byte) (DirEntry, error) {
	if len(data) != dirEntryRecordSize {
		return DirEntry{}, errs.New(errs.Serialize, "dir entry record has length %d, want %d", len(data), dirEntryRecordSize)
	}
	kind := Kind(data[8])
	if !kind.Valid() {
		return DirEntry{}, errs.New(errs.Serialize, "invalid dir entry kind byte %d", data[8])
	}
	return DirEntry{
		ChildIno: binary.BigEndian.Uint64(data[:8]),
		Kind:     kind,
	}, nil
}
