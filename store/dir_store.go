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
	"os"

	"github.com/cryptofs/cryptofs/crypto"
	"github.com/cryptofs/cryptofs/errs"
	"github.com/cryptofs/cryptofs/layout"
)

// Reserved literal names for the synthetic "." and ".." entries every
// directory carries. They bypass the filename cipher entirely.
const (
	SelfName   = crypto.ReservedSelf
	ParentName = crypto.ReservedParent
)

// EntryStore reads and writes the encrypted (child_ino, kind) tuples under
// a directory inode's content directory (C3).
type EntryStore struct {
	layout *layout.Layout
	keys   crypto.Keys
}

// NewEntryStore builds an EntryStore over l, encrypting and decrypting
// entry names and payloads with keys.
func NewEntryStore(l *layout.Layout, keys crypto.Keys) *EntryStore {
	return &EntryStore{layout: l, keys: keys}
}

// tokenFor returns the on-disk filename for a logical entry name: the
// reserved names pass through literally, everything else is encrypted.
func (s *EntryStore) tokenFor(name string) string {
	switch name {
	case ".":
		return SelfName
	case "..":
		return ParentName
	default:
		return crypto.EncryptName(name, s.keys)
	}
}

// Insert writes (or overwrites) the entry named name within parentIno's
// content directory. The encrypted filename already uniquely identifies
// the slot, so this is a truncate-on-open rather than an existence check.
func (s *EntryStore) Insert(parentIno uint64, name string, e DirEntry) error {
	path := s.layout.EntryPath(parentIno, s.tokenFor(name))
	token := crypto.EncryptString(string(EncodeDirEntry(e)), s.keys)
	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		return errs.Wrap(errs.Io, err, "writing dir entry %q in %d", name, parentIno)
	}
	return nil
}

// Lookup opens contents/<parentIno>/<encrypt_name(name)>, decrypts and
// deserializes the tuple. A missing entry is reported as NotFound.
func (s *EntryStore) Lookup(parentIno uint64, name string) (DirEntry, error) {
	path := s.layout.EntryPath(parentIno, s.tokenFor(name))
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DirEntry{}, errs.Wrap(errs.NotFound, err, "entry %q in %d", name, parentIno)
		}
		return DirEntry{}, errs.Wrap(errs.Io, err, "reading dir entry %q in %d", name, parentIno)
	}

	plaintext, err := crypto.DecryptString(string(raw), s.keys)
	if err != nil {
		return DirEntry{}, errs.Wrap(errs.Encryption, err, "decrypting dir entry %q in %d", name, parentIno)
	}
	return DecodeDirEntry([]byte(plaintext))
}

// Exists reports whether name resolves to a live entry within parentIno,
// without decoding its payload.
func (s *EntryStore) Exists(parentIno uint64, name string) (bool, error) {
	path := s.layout.EntryPath(parentIno, s.tokenFor(name))
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errs.Wrap(errs.Io, err, "stat dir entry %q in %d", name, parentIno)
}

// Remove deletes the on-disk entry file for name within parentIno.
func (s *EntryStore) Remove(parentIno uint64, name string) error {
	path := s.layout.EntryPath(parentIno, s.tokenFor(name))
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errs.Wrap(errs.NotFound, err, "entry %q in %d", name, parentIno)
		}
		return errs.Wrap(errs.Io, err, "removing dir entry %q in %d", name, parentIno)
	}
	return nil
}

// ListRaw returns the raw, still-encrypted on-disk names within parentIno's
// content directory, in host directory order. Callers decrypt each name
// individually so that one corrupt entry does not abort the whole listing.
func (s *EntryStore) ListRaw(parentIno uint64) ([]string, error) {
	entries, err := os.ReadDir(s.layout.ContentPath(parentIno))
	if err != nil {
		return nil, errs.Wrap(errs.Io, err, "listing contents of %d", parentIno)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// DecodeToken inverts tokenFor: it maps an on-disk filename back to the
// logical name readdir should report, decrypting it unless it is one of
// the two reserved literal tokens.
func (s *EntryStore) DecodeToken(token string) (string, error) {
	switch token {
	case SelfName:
		return ".", nil
	case ParentName:
		return "..", nil
	default:
		return crypto.DecryptName(token, s.keys)
	}
}

// ReadEncoded reads and decrypts the entry payload stored at the given
// already-encrypted on-disk token, without recomputing tokenFor. It is used
// by readdir, which enumerates on-disk tokens directly.
func (s *EntryStore) ReadEncoded(parentIno uint64, token string) (DirEntry, error) {
	path := s.layout.EntryPath(parentIno, token)
	raw, err := os.ReadFile(path)
	if err != nil {
		return DirEntry{}, errs.Wrap(errs.Io, err, "reading dir entry %q in %d", token, parentIno)
	}
	plaintext, err := crypto.DecryptString(string(raw), s.keys)
	if err != nil {
		return DirEntry{}, errs.Wrap(errs.Encryption, err, "decrypting dir entry %q in %d", token, parentIno)
	}
	return DecodeDirEntry([]byte(plaintext))
}
