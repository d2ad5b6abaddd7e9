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
	"crypto/rand"
	"encoding/binary"
	"os"

	"github.com/cryptofs/cryptofs/clock"
	"github.com/cryptofs/cryptofs/crypto"
	"github.com/cryptofs/cryptofs/errs"
	"github.com/cryptofs/cryptofs/layout"
)

// InodeStore reads and writes encrypted attribute records under a Layout's
// inodes directory (C4).
type InodeStore struct {
	layout *layout.Layout
	keys   crypto.Keys
	clock  clock.Clock
}

// NewInodeStore builds an InodeStore over l, encrypting and decrypting
// records with keys and stamping ctime updates from clock.
func NewInodeStore(l *layout.Layout, keys crypto.Keys, c clock.Clock) *InodeStore {
	return &InodeStore{layout: l, keys: keys, clock: c}
}

// WriteInode (re)creates inodes/<attr.Ino> by truncate-open and writes the
// encrypted serialization of attr.
func (s *InodeStore) WriteInode(attr Attr) error {
	token := crypto.EncryptString(string(EncodeAttr(attr)), s.keys)
	if err := os.WriteFile(s.layout.InodePath(attr.Ino), []byte(token), 0o600); err != nil {
		return errs.Wrap(errs.Io, err, "writing inode %d", attr.Ino)
	}
	return nil
}

// GetInode opens and decrypts inodes/<ino>. A missing file is reported as
// InodeNotFound.
func (s *InodeStore) GetInode(ino uint64) (Attr, error) {
	raw, err := os.ReadFile(s.layout.InodePath(ino))
	if err != nil {
		if os.IsNotExist(err) {
			return Attr{}, errs.Wrap(errs.InodeNotFound, err, "inode %d", ino)
		}
		return Attr{}, errs.Wrap(errs.Io, err, "reading inode %d", ino)
	}

	plaintext, err := crypto.DecryptString(string(raw), s.keys)
	if err != nil {
		return Attr{}, errs.Wrap(errs.Encryption, err, "decrypting inode %d", ino)
	}

	attr, err := DecodeAttr([]byte(plaintext))
	if err != nil {
		return Attr{}, err
	}
	return attr, nil
}

// ReplaceInode stamps attr.Ctime with the current time and writes it back.
func (s *InodeStore) ReplaceInode(attr Attr) (Attr, error) {
	attr.Ctime = s.clock.Now()
	if err := s.WriteInode(attr); err != nil {
		return Attr{}, err
	}
	return attr, nil
}

// GenerateNextInode draws a uniformly random inode number greater than
// layout.RootInode and not already present in the inode store, re-rolling
// on collision.
func (s *InodeStore) GenerateNextInode() (uint64, error) {
	for {
		var b [8]byte
		if _, err := rand.Read(b[:]); err != nil {
			return 0, errs.Wrap(errs.Io, err, "generating inode number")
		}
		candidate := binary.BigEndian.Uint64(b[:])
		if candidate <= layout.RootInode {
			continue
		}

		_, err := os.Stat(s.layout.InodePath(candidate))
		if os.IsNotExist(err) {
			return candidate, nil
		}
		if err != nil {
			return 0, errs.Wrap(errs.Io, err, "checking inode %d for collision", candidate)
		}
		// Exists; re-roll.
	}
}
