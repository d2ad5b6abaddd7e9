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
	"testing"
	"time"

	"github.com/cryptofs/cryptofs/errs"
	"github.com/cryptofs/cryptofs/layout"
	"github.com/cryptofs/cryptofs/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNodFile(t *testing.T) {
	e, _ := newTestEngine(t)
	fh, attr, err := e.CreateNod(layout.RootInode, "hello.txt", store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
	require.NoError(t, err)
	assert.Zero(t, fh)
	assert.NotZero(t, attr.Ino)
	assert.Equal(t, uint32(1), attr.Nlink)

	got, err := e.FindByName(layout.RootInode, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, attr.Ino, got.Ino)
	assert.Equal(t, store.RegularFile, got.Kind)
	assert.Zero(t, got.Size)
}

func TestCreateNodWithHandleReturnsOpenFh(t *testing.T) {
	e, _ := newTestEngine(t)
	fh, _, err := e.CreateNod(layout.RootInode, "hello.txt", store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, true)
	require.NoError(t, err)
	require.NotZero(t, fh)
	require.NoError(t, e.ReleaseHandle(fh))
}

func TestCreateNodDuplicateNameFails(t *testing.T) {
	e, _ := newTestEngine(t)
	_, _, err := e.CreateNod(layout.RootInode, "dup", store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
	require.NoError(t, err)

	_, _, err = e.CreateNod(layout.RootInode, "dup", store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
	requireCode(t, err, errs.AlreadyExists)
}

func TestCreateNodDirectorySeedsSelfAndParent(t *testing.T) {
	e, _ := newTestEngine(t)
	_, attr, err := e.CreateNod(layout.RootInode, "sub", store.Attr{Kind: store.Directory, Perm: 0o755}, false, false)
	require.NoError(t, err)

	self, err := e.FindByName(attr.Ino, ".")
	require.NoError(t, err)
	assert.Equal(t, attr.Ino, self.Ino)

	parent, err := e.FindByName(attr.Ino, "..")
	require.NoError(t, err)
	assert.Equal(t, layout.RootInode, parent.Ino)
}

func TestCreateNodUniqueInodeNumbers(t *testing.T) {
	e, _ := newTestEngine(t)
	seen := map[uint64]bool{layout.RootInode: true}
	for i := 0; i < 50; i++ {
		_, attr, err := e.CreateNod(layout.RootInode, nthName(i), store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
		require.NoError(t, err)
		assert.False(t, seen[attr.Ino], "inode %d reused", attr.Ino)
		seen[attr.Ino] = true
	}
}

func nthName(i int) string {
	return "f" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}

func TestCreateNodTouchesParentTimestamps(t *testing.T) {
	e, c := newTestEngine(t)
	before, err := e.GetInode(layout.RootInode)
	require.NoError(t, err)

	c.AdvanceTime(time.Minute)
	_, _, err = e.CreateNod(layout.RootInode, "child", store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
	require.NoError(t, err)

	after, err := e.GetInode(layout.RootInode)
	require.NoError(t, err)
	assert.True(t, after.Mtime.After(before.Mtime))
}

func TestRemoveFileRejectsDirectory(t *testing.T) {
	e, _ := newTestEngine(t)
	_, _, err := e.CreateNod(layout.RootInode, "sub", store.Attr{Kind: store.Directory, Perm: 0o755}, false, false)
	require.NoError(t, err)

	err = e.RemoveFile(layout.RootInode, "sub")
	requireCode(t, err, errs.InvalidInodeType)
}

func TestRemoveFileDeletesEntryAndInode(t *testing.T) {
	e, _ := newTestEngine(t)
	_, attr, err := e.CreateNod(layout.RootInode, "gone.txt", store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
	require.NoError(t, err)

	require.NoError(t, e.RemoveFile(layout.RootInode, "gone.txt"))

	_, err = e.FindByName(layout.RootInode, "gone.txt")
	requireCode(t, err, errs.NotFound)

	_, err = e.GetInode(attr.Ino)
	requireCode(t, err, errs.InodeNotFound)
}

func TestRemoveDirRejectsNonEmpty(t *testing.T) {
	e, _ := newTestEngine(t)
	_, sub, err := e.CreateNod(layout.RootInode, "sub", store.Attr{Kind: store.Directory, Perm: 0o755}, false, false)
	require.NoError(t, err)
	_, _, err = e.CreateNod(sub.Ino, "child.txt", store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
	require.NoError(t, err)

	err = e.RemoveDir(layout.RootInode, "sub")
	requireCode(t, err, errs.NotEmpty)
}

func TestRemoveDirSucceedsWhenEmpty(t *testing.T) {
	e, _ := newTestEngine(t)
	_, _, err := e.CreateNod(layout.RootInode, "sub", store.Attr{Kind: store.Directory, Perm: 0o755}, false, false)
	require.NoError(t, err)

	require.NoError(t, e.RemoveDir(layout.RootInode, "sub"))
	_, err = e.FindByName(layout.RootInode, "sub")
	requireCode(t, err, errs.NotFound)
}

func TestRenameIsNoOpOnIdentity(t *testing.T) {
	e, c := newTestEngine(t)
	_, attr, err := e.CreateNod(layout.RootInode, "same.txt", store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
	require.NoError(t, err)

	c.AdvanceTime(time.Minute)
	require.NoError(t, e.Rename(layout.RootInode, "same.txt", layout.RootInode, "same.txt"))

	got, err := e.FindByName(layout.RootInode, "same.txt")
	require.NoError(t, err)
	assert.Equal(t, attr.Ino, got.Ino)
}

func TestRenameReplacesExistingDestination(t *testing.T) {
	e, _ := newTestEngine(t)
	_, src, err := e.CreateNod(layout.RootInode, "src.txt", store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
	require.NoError(t, err)
	_, dst, err := e.CreateNod(layout.RootInode, "dst.txt", store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
	require.NoError(t, err)

	require.NoError(t, e.Rename(layout.RootInode, "src.txt", layout.RootInode, "dst.txt"))

	got, err := e.FindByName(layout.RootInode, "dst.txt")
	require.NoError(t, err)
	assert.Equal(t, src.Ino, got.Ino)

	_, err = e.GetInode(dst.Ino)
	requireCode(t, err, errs.InodeNotFound)

	_, err = e.FindByName(layout.RootInode, "src.txt")
	requireCode(t, err, errs.NotFound)
}

func TestRenameRejectsNonEmptyDirectoryDestination(t *testing.T) {
	e, _ := newTestEngine(t)
	_, _, err := e.CreateNod(layout.RootInode, "src", store.Attr{Kind: store.Directory, Perm: 0o755}, false, false)
	require.NoError(t, err)
	_, dst, err := e.CreateNod(layout.RootInode, "dst", store.Attr{Kind: store.Directory, Perm: 0o755}, false, false)
	require.NoError(t, err)
	_, _, err = e.CreateNod(dst.Ino, "occupant.txt", store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
	require.NoError(t, err)

	err = e.Rename(layout.RootInode, "src", layout.RootInode, "dst")
	requireCode(t, err, errs.NotEmpty)
}

func TestRenameAcrossDirectoriesUpdatesParentLink(t *testing.T) {
	e, _ := newTestEngine(t)
	_, dirA, err := e.CreateNod(layout.RootInode, "a", store.Attr{Kind: store.Directory, Perm: 0o755}, false, false)
	require.NoError(t, err)
	_, dirB, err := e.CreateNod(layout.RootInode, "b", store.Attr{Kind: store.Directory, Perm: 0o755}, false, false)
	require.NoError(t, err)
	_, moved, err := e.CreateNod(dirA.Ino, "sub", store.Attr{Kind: store.Directory, Perm: 0o755}, false, false)
	require.NoError(t, err)

	require.NoError(t, e.Rename(dirA.Ino, "sub", dirB.Ino, "sub"))

	got, err := e.FindByName(dirB.Ino, "sub")
	require.NoError(t, err)
	assert.Equal(t, moved.Ino, got.Ino)

	parent, err := e.FindByName(moved.Ino, "..")
	require.NoError(t, err)
	assert.Equal(t, dirB.Ino, parent.Ino)

	_, err = e.FindByName(dirA.Ino, "sub")
	requireCode(t, err, errs.NotFound)
}

func TestRenameTouchesBothParents(t *testing.T) {
	e, c := newTestEngine(t)
	_, dirA, err := e.CreateNod(layout.RootInode, "a", store.Attr{Kind: store.Directory, Perm: 0o755}, false, false)
	require.NoError(t, err)
	_, dirB, err := e.CreateNod(layout.RootInode, "b", store.Attr{Kind: store.Directory, Perm: 0o755}, false, false)
	require.NoError(t, err)
	_, _, err = e.CreateNod(dirA.Ino, "file.txt", store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
	require.NoError(t, err)

	beforeA, err := e.GetInode(dirA.Ino)
	require.NoError(t, err)
	beforeB, err := e.GetInode(dirB.Ino)
	require.NoError(t, err)

	c.AdvanceTime(time.Minute)
	require.NoError(t, e.Rename(dirA.Ino, "file.txt", dirB.Ino, "file.txt"))

	afterA, err := e.GetInode(dirA.Ino)
	require.NoError(t, err)
	afterB, err := e.GetInode(dirB.Ino)
	require.NoError(t, err)
	assert.True(t, afterA.Mtime.After(beforeA.Mtime))
	assert.True(t, afterB.Mtime.After(beforeB.Mtime))
}

func TestReadDirPlusListsAllEntries(t *testing.T) {
	e, _ := newTestEngine(t)
	names := []string{"one.txt", "two.txt", "three.txt"}
	for _, n := range names {
		_, _, err := e.CreateNod(layout.RootInode, n, store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
		require.NoError(t, err)
	}

	seq, err := e.ReadDirPlus(layout.RootInode)
	require.NoError(t, err)

	seen := map[string]bool{}
	for result := range seq {
		require.NoError(t, result.Err)
		seen[result.Name] = true
	}
	for _, n := range append(names, ".", "..") {
		assert.True(t, seen[n], "missing entry %q", n)
	}
}

func TestReadDirRejectsFileTarget(t *testing.T) {
	e, _ := newTestEngine(t)
	_, attr, err := e.CreateNod(layout.RootInode, "f.txt", store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
	require.NoError(t, err)

	_, err = e.ReadDir(attr.Ino)
	requireCode(t, err, errs.InvalidInodeType)
}

func TestExistsByName(t *testing.T) {
	e, _ := newTestEngine(t)
	ok, err := e.ExistsByName(layout.RootInode, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = e.CreateNod(layout.RootInode, "nope", store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
	require.NoError(t, err)

	ok, err = e.ExistsByName(layout.RootInode, "nope")
	require.NoError(t, err)
	assert.True(t, ok)
}
