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

package engine

import (
	"errors"
	"io"
	"iter"
	"os"

	"github.com/cryptofs/cryptofs/errs"
	"github.com/cryptofs/cryptofs/store"
)

// DirEntryResult is one element of a read_dir sequence: either a resolved
// name/kind pair or an error describing why one entry could not be decoded.
// A bad entry never aborts the rest of the listing.
type DirEntryResult struct {
	Name string
	Ino  uint64
	Kind store.Kind
	Err  error
}

// DirEntryPlusResult is one element of a read_dir_plus sequence: a
// DirEntryResult plus the child's full attribute record, when it could be
// loaded.
type DirEntryPlusResult struct {
	DirEntryResult
	Attr store.Attr
}

// CreateNod creates a new inode named name within parent and links it in.
// Regular files get an empty content stream; directories get a content
// directory seeded with the synthetic "." and ".." entries. attr.Ino is
// ignored; the engine assigns a fresh one. When read or write is requested
// for a RegularFile, the returned fh is the handle from Open; otherwise it
// is 0.
func (e *Engine) CreateNod(parent uint64, name string, attr store.Attr, read, write bool) (uint64, store.Attr, error) {
	parentAttr, err := e.requireDir(parent)
	if err != nil {
		return 0, store.Attr{}, err
	}
	if !attr.Kind.Valid() {
		return 0, store.Attr{}, errs.New(errs.InvalidInodeType, "create_nod: kind %d", attr.Kind)
	}
	if exists, err := e.entries.Exists(parent, name); err != nil {
		return 0, store.Attr{}, err
	} else if exists {
		return 0, store.Attr{}, errs.New(errs.AlreadyExists, "create_nod: %q already exists in %d", name, parent)
	}

	ino, err := e.inodes.GenerateNextInode()
	if err != nil {
		return 0, store.Attr{}, err
	}

	now := e.clock.Now()
	attr.Ino = ino
	attr.Atime = now
	attr.Mtime = now
	attr.Ctime = now
	attr.Crtime = now

	switch attr.Kind {
	case store.RegularFile:
		attr.Nlink = 1
		if err := e.writeEmptyContent(ino); err != nil {
			return 0, store.Attr{}, err
		}
	case store.Directory:
		attr.Nlink = 2
		if err := os.MkdirAll(e.layout.ContentPath(ino), 0o755); err != nil {
			return 0, store.Attr{}, errs.Wrap(errs.Io, err, "creating content directory %d", ino)
		}
		if err := e.entries.Insert(ino, ".", store.DirEntry{ChildIno: ino, Kind: store.Directory}); err != nil {
			return 0, store.Attr{}, err
		}
		if err := e.entries.Insert(ino, "..", store.DirEntry{ChildIno: parent, Kind: store.Directory}); err != nil {
			return 0, store.Attr{}, err
		}
	}

	if err := e.inodes.WriteInode(attr); err != nil {
		return 0, store.Attr{}, err
	}
	if err := e.entries.Insert(parent, name, store.DirEntry{ChildIno: ino, Kind: attr.Kind}); err != nil {
		return 0, store.Attr{}, err
	}

	parentAttr.Mtime = now
	parentAttr.Ctime = now
	if err := e.inodes.WriteInode(parentAttr); err != nil {
		return 0, store.Attr{}, err
	}

	var fh uint64
	if attr.Kind == store.RegularFile && (read || write) {
		fh, err = e.Open(ino, read, write)
		if err != nil {
			return 0, store.Attr{}, err
		}
	}
	return fh, attr, nil
}

// FindByName resolves name within parent and returns its attribute record.
// "." and ".." resolve through the reserved synthetic entries rather than
// the filename cipher.
func (e *Engine) FindByName(parent uint64, name string) (store.Attr, error) {
	if _, err := e.requireDir(parent); err != nil {
		return store.Attr{}, err
	}
	entry, err := e.entries.Lookup(parent, name)
	if err != nil {
		return store.Attr{}, err
	}
	return e.inodes.GetInode(entry.ChildIno)
}

// ExistsByName reports whether name resolves to a live entry within parent,
// without loading the child's inode.
func (e *Engine) ExistsByName(parent uint64, name string) (bool, error) {
	if _, err := e.requireDir(parent); err != nil {
		return false, err
	}
	return e.entries.Exists(parent, name)
}

// RemoveFile unlinks name from parent, requiring it to resolve to a
// RegularFile, and deletes that inode's attribute record and content.
func (e *Engine) RemoveFile(parent uint64, name string) error {
	if _, err := e.requireDir(parent); err != nil {
		return err
	}
	entry, err := e.entries.Lookup(parent, name)
	if err != nil {
		return err
	}
	if entry.Kind != store.RegularFile {
		return errs.New(errs.InvalidInodeType, "remove_file: %q in %d is not a regular file", name, parent)
	}

	if err := os.Remove(e.layout.InodePath(entry.ChildIno)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.Io, err, "removing inode %d", entry.ChildIno)
	}
	if err := os.Remove(e.layout.ContentPath(entry.ChildIno)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.Io, err, "removing content %d", entry.ChildIno)
	}
	if err := e.entries.Remove(parent, name); err != nil {
		return err
	}
	return e.touchParent(parent)
}

// dirEmptyLimit is how many entries RemoveDir reads before giving up and
// declaring the directory non-empty: "." and ".." plus one more means at
// least one real child exists.
const dirEmptyLimit = 3

// RemoveDir unlinks name from parent, requiring it to resolve to a Directory
// with no entries besides "." and "..", and deletes its content tree and
// attribute record.
func (e *Engine) RemoveDir(parent uint64, name string) error {
	if _, err := e.requireDir(parent); err != nil {
		return err
	}
	entry, err := e.entries.Lookup(parent, name)
	if err != nil {
		return err
	}
	if entry.Kind != store.Directory {
		return errs.New(errs.InvalidInodeType, "remove_dir: %q in %d is not a directory", name, parent)
	}

	empty, err := e.dirIsEmpty(entry.ChildIno)
	if err != nil {
		return err
	}
	if !empty {
		return errs.New(errs.NotEmpty, "remove_dir: %q in %d is not empty", name, parent)
	}

	if err := os.RemoveAll(e.layout.ContentPath(entry.ChildIno)); err != nil {
		return errs.Wrap(errs.Io, err, "removing content tree %d", entry.ChildIno)
	}
	if err := os.Remove(e.layout.InodePath(entry.ChildIno)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.Io, err, "removing inode %d", entry.ChildIno)
	}
	if err := e.entries.Remove(parent, name); err != nil {
		return err
	}
	return e.touchParent(parent)
}

// dirIsEmpty reports whether ino's content directory holds nothing besides
// "." and "..", reading at most dirEmptyLimit names so a large directory
// never needs a full scan to fail fast.
func (e *Engine) dirIsEmpty(ino uint64) (bool, error) {
	f, err := os.Open(e.layout.ContentPath(ino))
	if err != nil {
		return false, errs.Wrap(errs.Io, err, "opening content directory %d", ino)
	}
	defer f.Close()

	names, err := f.Readdirnames(dirEmptyLimit)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, errs.Wrap(errs.Io, err, "listing content directory %d", ino)
	}
	return len(names) <= 2, nil
}

// Rename moves the entry named name in parent to newName in newParent. If
// the destination already exists it is unlinked first — a deliberate
// departure from leaving the stale destination entry's inode and content
// orphaned on disk, which is what happens if the new entry is simply
// inserted over it without removing what it replaces. A destination that
// is a non-empty directory still fails with NotEmpty rather than being
// unlinked.
func (e *Engine) Rename(parent uint64, name string, newParent uint64, newName string) error {
	if _, err := e.requireDir(parent); err != nil {
		return err
	}
	if _, err := e.requireDir(newParent); err != nil {
		return err
	}
	if parent == newParent && name == newName {
		return nil
	}

	srcEntry, err := e.entries.Lookup(parent, name)
	if err != nil {
		return err
	}

	if destExists, err := e.entries.Exists(newParent, newName); err != nil {
		return err
	} else if destExists {
		destEntry, err := e.entries.Lookup(newParent, newName)
		if err != nil {
			return err
		}
		if destEntry.Kind == store.Directory {
			empty, err := e.dirIsEmpty(destEntry.ChildIno)
			if err != nil {
				return err
			}
			if !empty {
				return errs.New(errs.NotEmpty, "rename: destination %q in %d is not empty", newName, newParent)
			}
			if err := os.RemoveAll(e.layout.ContentPath(destEntry.ChildIno)); err != nil {
				return errs.Wrap(errs.Io, err, "removing content tree %d", destEntry.ChildIno)
			}
		} else if err := os.Remove(e.layout.ContentPath(destEntry.ChildIno)); err != nil && !os.IsNotExist(err) {
			return errs.Wrap(errs.Io, err, "removing content %d", destEntry.ChildIno)
		}
		if err := os.Remove(e.layout.InodePath(destEntry.ChildIno)); err != nil && !os.IsNotExist(err) {
			return errs.Wrap(errs.Io, err, "removing inode %d", destEntry.ChildIno)
		}
		if err := e.entries.Remove(newParent, newName); err != nil {
			return err
		}
	}

	if err := e.entries.Remove(parent, name); err != nil {
		return err
	}
	if err := e.entries.Insert(newParent, newName, srcEntry); err != nil {
		return err
	}

	if srcEntry.Kind == store.Directory {
		if err := e.entries.Insert(srcEntry.ChildIno, "..", store.DirEntry{ChildIno: newParent, Kind: store.Directory}); err != nil {
			return err
		}
	}

	now := e.clock.Now()
	movedAttr, err := e.inodes.GetInode(srcEntry.ChildIno)
	if err != nil {
		return err
	}
	movedAttr.Ctime = now
	if err := e.inodes.WriteInode(movedAttr); err != nil {
		return err
	}

	if err := e.touchParent(parent); err != nil {
		return err
	}
	if newParent != parent {
		if err := e.touchParent(newParent); err != nil {
			return err
		}
	}
	return nil
}

// ReadDir returns a lazy sequence over ino's directory entries: name, child
// inode, and kind, without loading each child's full attribute record. A
// decode failure for one entry is yielded as an error element rather than
// aborting the sequence.
func (e *Engine) ReadDir(ino uint64) (iter.Seq[DirEntryResult], error) {
	if _, err := e.requireDir(ino); err != nil {
		return nil, err
	}
	tokens, err := e.entries.ListRaw(ino)
	if err != nil {
		return nil, err
	}

	return func(yield func(DirEntryResult) bool) {
		for _, token := range tokens {
			name, entry, err := e.decodeDirToken(ino, token)
			if err != nil {
				if !yield(DirEntryResult{Err: err}) {
					return
				}
				continue
			}
			if !yield(DirEntryResult{Name: name, Ino: entry.ChildIno, Kind: entry.Kind}) {
				return
			}
		}
	}, nil
}

// ReadDirPlus is ReadDir, additionally loading and decrypting each child's
// full attribute record.
func (e *Engine) ReadDirPlus(ino uint64) (iter.Seq[DirEntryPlusResult], error) {
	if _, err := e.requireDir(ino); err != nil {
		return nil, err
	}
	tokens, err := e.entries.ListRaw(ino)
	if err != nil {
		return nil, err
	}

	return func(yield func(DirEntryPlusResult) bool) {
		for _, token := range tokens {
			name, entry, err := e.decodeDirToken(ino, token)
			if err != nil {
				if !yield(DirEntryPlusResult{DirEntryResult: DirEntryResult{Err: err}}) {
					return
				}
				continue
			}
			attr, err := e.inodes.GetInode(entry.ChildIno)
			if err != nil {
				if !yield(DirEntryPlusResult{DirEntryResult: DirEntryResult{Name: name, Ino: entry.ChildIno, Kind: entry.Kind, Err: err}}) {
					return
				}
				continue
			}
			if !yield(DirEntryPlusResult{DirEntryResult: DirEntryResult{Name: name, Ino: entry.ChildIno, Kind: entry.Kind}, Attr: attr}) {
				return
			}
		}
	}, nil
}

// decodeDirToken maps one raw on-disk token within parent's content
// directory back to its logical name and decoded entry.
func (e *Engine) decodeDirToken(parent uint64, token string) (string, store.DirEntry, error) {
	name, err := e.entries.DecodeToken(token)
	if err != nil {
		return "", store.DirEntry{}, errs.Wrap(errs.Encryption, err, "decoding entry token in %d", parent)
	}
	entry, err := e.entries.ReadEncoded(parent, token)
	if err != nil {
		return "", store.DirEntry{}, err
	}
	return name, entry, nil
}

