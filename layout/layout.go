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

// Package layout maps the engine's logical objects (inodes, file and
// directory contents) onto paths under a data root, and bootstraps that
// root's directory skeleton.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
)

// RootInode is the inode number reserved for the filesystem root directory.
const RootInode uint64 = 1

const (
	inodesDirName   = "inodes"
	contentsDirName = "contents"
	securityDirName = "security"
)

// Layout resolves the on-disk paths that make up one engine's data root:
//
//	<root>/inodes/<ino>     encrypted attribute record
//	<root>/contents/<ino>   file content, or a directory of entries
//	<root>/security/        per-install material such as the KDF salt
type Layout struct {
	root string
}

// New binds a Layout to dataDir without touching the filesystem. Call
// EnsureSkeleton to create the directory structure.
func New(dataDir string) *Layout {
	return &Layout{root: dataDir}
}

// Root returns the data root path.
func (l *Layout) Root() string { return l.root }

// InodesDir returns the directory holding encrypted attribute records.
func (l *Layout) InodesDir() string { return filepath.Join(l.root, inodesDirName) }

// ContentsDir returns the directory holding file and directory content
// objects, keyed by inode number.
func (l *Layout) ContentsDir() string { return filepath.Join(l.root, contentsDirName) }

// SecurityDir returns the directory holding per-install security material.
func (l *Layout) SecurityDir() string { return filepath.Join(l.root, securityDirName) }

// InodePath returns the path of ino's encrypted attribute record.
func (l *Layout) InodePath(ino uint64) string {
	return filepath.Join(l.InodesDir(), fmt.Sprintf("%d", ino))
}

// ContentPath returns the path of ino's content object: a regular file for
// RegularFile inodes, or a directory for Directory inodes.
func (l *Layout) ContentPath(ino uint64) string {
	return filepath.Join(l.ContentsDir(), fmt.Sprintf("%d", ino))
}

// EntryPath returns the path of one directory entry file within parent
// ino's content directory. token is the already-encrypted filename (or one
// of the reserved literal names).
func (l *Layout) EntryPath(parentIno uint64, token string) string {
	return filepath.Join(l.ContentPath(parentIno), token)
}

// WriteTempPath returns the path of the scratch rebuild file a write handle
// uses while it is not writing directly to ContentPath(ino).
func (l *Layout) WriteTempPath(ino, fh uint64) string {
	return filepath.Join(l.ContentsDir(), fmt.Sprintf("%d.%d.tmp", ino, fh))
}

// SaltPath returns the path of the persisted key-derivation salt.
func (l *Layout) SaltPath() string {
	return filepath.Join(l.SecurityDir(), "key.salt")
}

// dirPerm is the mode used for every directory this package creates.
const dirPerm = 0o755

// EnsureSkeleton creates inodes/, contents/, and security/ under the data
// root if they do not already exist. It does not create the root inode;
// callers that need a root directory record call that separately once keys
// are available, since the record itself must be encrypted.
func (l *Layout) EnsureSkeleton() error {
	for _, dir := range []string{l.root, l.InodesDir(), l.ContentsDir(), l.SecurityDir()} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("layout: creating %s: %w", dir, err)
		}
	}
	return nil
}

// RootExists reports whether the root inode's attribute record has already
// been written, which is how the engine decides whether to bootstrap a new
// root directory or to trust an existing data root.
func (l *Layout) RootExists() (bool, error) {
	_, err := os.Stat(l.InodePath(RootInode))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("layout: stat %s: %w", l.InodePath(RootInode), err)
}
