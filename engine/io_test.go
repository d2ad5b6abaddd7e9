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
	"bytes"
	"testing"

	"github.com/cryptofs/cryptofs/errs"
	"github.com/cryptofs/cryptofs/layout"
	"github.com/cryptofs/cryptofs/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createFile(t *testing.T, e *Engine, name string) uint64 {
	t.Helper()
	_, attr, err := e.CreateNod(layout.RootInode, name, store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, false)
	require.NoError(t, err)
	return attr.Ino
}

func readAll(t *testing.T, e *Engine, ino uint64, size uint64) []byte {
	t.Helper()
	fh, err := e.Open(ino, true, false)
	require.NoError(t, err)
	defer func() { require.NoError(t, e.ReleaseHandle(fh)) }()

	buf := make([]byte, size)
	n, err := e.Read(ino, 0, buf, fh)
	require.NoError(t, err)
	return buf[:n]
}

// TestWriteReadRoundTrip is seed scenario S1: a write followed by a read
// from the start recovers exactly the bytes written.
func TestWriteReadRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	ino := createFile(t, e, "roundtrip.bin")

	payload := bytes.Repeat([]byte("cryptofs"), 10000) // spans multiple 64KiB chunks

	fh, err := e.Open(ino, false, true)
	require.NoError(t, err)
	require.NoError(t, e.WriteAll(ino, 0, payload, fh))
	require.NoError(t, e.ReleaseHandle(fh))

	attr, err := e.GetInode(ino)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(payload)), attr.Size)

	got := readAll(t, e, ino, attr.Size)
	assert.Equal(t, payload, got)
}

// TestTailPreservation is seed scenario S2: a write that lands entirely
// before the old end of file leaves the untouched suffix intact.
func TestTailPreservation(t *testing.T) {
	e, _ := newTestEngine(t)
	ino := createFile(t, e, "tail.bin")

	original := []byte("0123456789ABCDEFGHIJ")
	fh, err := e.Open(ino, false, true)
	require.NoError(t, err)
	require.NoError(t, e.WriteAll(ino, 0, original, fh))
	require.NoError(t, e.ReleaseHandle(fh))

	fh, err = e.Open(ino, false, true)
	require.NoError(t, err)
	require.NoError(t, e.WriteAll(ino, 2, []byte("XX"), fh))
	require.NoError(t, e.ReleaseHandle(fh))

	attr, err := e.GetInode(ino)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(original)), attr.Size)

	got := readAll(t, e, ino, attr.Size)
	want := []byte("01XX456789ABCDEFGHIJ")
	assert.Equal(t, want, got)
}

// TestHoleFill is seed scenario S3: a write that starts past the current
// end of file zero-fills the gap.
func TestHoleFill(t *testing.T) {
	e, _ := newTestEngine(t)
	ino := createFile(t, e, "hole.bin")

	fh, err := e.Open(ino, false, true)
	require.NoError(t, err)
	require.NoError(t, e.WriteAll(ino, 0, []byte("AB"), fh))
	require.NoError(t, e.WriteAll(ino, 10, []byte("CD"), fh))
	require.NoError(t, e.ReleaseHandle(fh))

	attr, err := e.GetInode(ino)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), attr.Size)

	got := readAll(t, e, ino, attr.Size)
	want := append([]byte("AB"), make([]byte, 8)...)
	want = append(want, []byte("CD")...)
	assert.Equal(t, want, got)
}

// TestTruncateShrink is seed scenario S4: truncating down to a size smaller
// than the current content discards everything past the new end.
func TestTruncateShrink(t *testing.T) {
	e, _ := newTestEngine(t)
	ino := createFile(t, e, "shrink.bin")

	fh, err := e.Open(ino, false, true)
	require.NoError(t, err)
	require.NoError(t, e.WriteAll(ino, 0, []byte("0123456789"), fh))
	require.NoError(t, e.ReleaseHandle(fh))

	require.NoError(t, e.Truncate(ino, 4))

	attr, err := e.GetInode(ino)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), attr.Size)
	assert.Equal(t, []byte("0123"), readAll(t, e, ino, attr.Size))
}

func TestTruncateGrowZeroFills(t *testing.T) {
	e, _ := newTestEngine(t)
	ino := createFile(t, e, "grow.bin")

	fh, err := e.Open(ino, false, true)
	require.NoError(t, err)
	require.NoError(t, e.WriteAll(ino, 0, []byte("ab"), fh))
	require.NoError(t, e.ReleaseHandle(fh))

	require.NoError(t, e.Truncate(ino, 6))

	attr, err := e.GetInode(ino)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), attr.Size)
	want := append([]byte("ab"), make([]byte, 4)...)
	assert.Equal(t, want, readAll(t, e, ino, attr.Size))
}

func TestTruncateToZeroEmptiesContent(t *testing.T) {
	e, _ := newTestEngine(t)
	ino := createFile(t, e, "zero.bin")

	fh, err := e.Open(ino, false, true)
	require.NoError(t, err)
	require.NoError(t, e.WriteAll(ino, 0, []byte("data"), fh))
	require.NoError(t, e.ReleaseHandle(fh))

	require.NoError(t, e.Truncate(ino, 0))

	attr, err := e.GetInode(ino)
	require.NoError(t, err)
	assert.Zero(t, attr.Size)
}

// TestWriterCommitInvalidatesReaders exercises handle-table testable
// property #8: a reader opened before a writer commits observes the
// committed bytes on its next read, rather than a view frozen at open time.
func TestWriterCommitInvalidatesReaders(t *testing.T) {
	e, _ := newTestEngine(t)
	ino := createFile(t, e, "shared.bin")

	wfh, err := e.Open(ino, false, true)
	require.NoError(t, err)
	require.NoError(t, e.WriteAll(ino, 0, []byte("version-1"), wfh))
	require.NoError(t, e.ReleaseHandle(wfh))

	rfh, err := e.Open(ino, true, false)
	require.NoError(t, err)

	wfh2, err := e.Open(ino, false, true)
	require.NoError(t, err)
	require.NoError(t, e.WriteAll(ino, 0, []byte("version-2"), wfh2))
	require.NoError(t, e.ReleaseHandle(wfh2))

	buf := make([]byte, len("version-2"))
	n, err := e.Read(ino, 0, buf, rfh)
	require.NoError(t, err)
	assert.Equal(t, "version-2", string(buf[:n]))
	require.NoError(t, e.ReleaseHandle(rfh))
}

func TestReadPastEndOfFileReturnsZero(t *testing.T) {
	e, _ := newTestEngine(t)
	ino := createFile(t, e, "short.bin")

	fh, err := e.Open(ino, false, true)
	require.NoError(t, err)
	require.NoError(t, e.WriteAll(ino, 0, []byte("abc"), fh))
	require.NoError(t, e.ReleaseHandle(fh))

	rfh, err := e.Open(ino, true, false)
	require.NoError(t, err)
	defer e.ReleaseHandle(rfh)

	buf := make([]byte, 10)
	n, err := e.Read(ino, 100, buf, rfh)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReadBackwardReplaysFromStart(t *testing.T) {
	e, _ := newTestEngine(t)
	ino := createFile(t, e, "replay.bin")

	fh, err := e.Open(ino, false, true)
	require.NoError(t, err)
	require.NoError(t, e.WriteAll(ino, 0, []byte("0123456789"), fh))
	require.NoError(t, e.ReleaseHandle(fh))

	rfh, err := e.Open(ino, true, false)
	require.NoError(t, err)
	defer e.ReleaseHandle(rfh)

	buf := make([]byte, 4)
	n, err := e.Read(ino, 6, buf, rfh)
	require.NoError(t, err)
	assert.Equal(t, "6789", string(buf[:n]))

	n, err = e.Read(ino, 0, buf, rfh)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf[:n]))
}

func TestOpenRejectsNeitherReadNorWrite(t *testing.T) {
	e, _ := newTestEngine(t)
	ino := createFile(t, e, "bad-open.bin")
	_, err := e.Open(ino, false, false)
	requireCode(t, err, errs.InvalidInput)
}

func TestOpenRejectsDirectory(t *testing.T) {
	e, _ := newTestEngine(t)
	_, attr, err := e.CreateNod(layout.RootInode, "adir", store.Attr{Kind: store.Directory, Perm: 0o755}, false, false)
	require.NoError(t, err)

	_, err = e.Open(attr.Ino, true, false)
	requireCode(t, err, errs.InvalidInodeType)
}

func TestReleaseUnknownHandleFails(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.ReleaseHandle(9999)
	requireCode(t, err, errs.InvalidFileHandle)
}

func TestReleaseHandleZeroIsNoOp(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.ReleaseHandle(0))
	require.NoError(t, e.Flush(0))
}

func TestCopyFileRangeCopiesBytes(t *testing.T) {
	e, _ := newTestEngine(t)
	srcIno := createFile(t, e, "src.bin")
	dstIno := createFile(t, e, "dst.bin")

	wfh, err := e.Open(srcIno, false, true)
	require.NoError(t, err)
	require.NoError(t, e.WriteAll(srcIno, 0, []byte("hello world"), wfh))
	require.NoError(t, e.ReleaseHandle(wfh))

	srcFh, err := e.Open(srcIno, true, false)
	require.NoError(t, err)
	dstFh, err := e.Open(dstIno, false, true)
	require.NoError(t, err)

	n, err := e.CopyFileRange(srcIno, 0, dstIno, 0, 5, srcFh, dstFh)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)

	require.NoError(t, e.ReleaseHandle(srcFh))
	require.NoError(t, e.ReleaseHandle(dstFh))

	attr, err := e.GetInode(dstIno)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(readAll(t, e, dstIno, attr.Size)))
}
