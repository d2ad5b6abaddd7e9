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
	"os"

	"github.com/cryptofs/cryptofs/crypto"
	"github.com/cryptofs/cryptofs/errs"
	"github.com/cryptofs/cryptofs/logger"
	"github.com/cryptofs/cryptofs/store"
)

// readHandle is a session over an open regular file's content, tracking how
// many plaintext bytes have already been drained from decryptor.
type readHandle struct {
	ino     uint64
	attr    store.Attr
	pos     uint64
	file    *os.File
	decoder *crypto.DecryptingSource
}

// writeHandle is a session over an open regular file's content. sinkPath is
// either the canonical content path or a rebuild temp path; tmp records
// which, so release and later rebuilds know whether to rename on commit.
type writeHandle struct {
	ino      uint64
	fh       uint64
	attr     store.Attr
	pos      uint64
	sinkPath string
	tmp      bool
	file     *os.File
	encoder  *crypto.EncryptingSink
}

// openReadStream opens ino's canonical content file for reading and wraps it
// in a fresh decryptor, positioned at plaintext offset 0.
func (e *Engine) openReadStream(ino uint64) (*os.File, *crypto.DecryptingSource, error) {
	path := e.layout.ContentPath(ino)
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Io, err, "opening content %d for read", ino)
	}
	dec, err := crypto.NewDecryptingSource(f, e.keys, ino)
	if err != nil {
		f.Close()
		return nil, nil, errs.Wrap(errs.Encryption, err, "decrypting content %d", ino)
	}
	return f, dec, nil
}

// openWriteStream opens path for read-write without truncating — the write
// handle's encryptor overwrites the stream from plaintext offset 0 forward,
// relying on the deterministic per-inode nonce (see crypto.deriveContentNonce)
// so that bytes it never touches stay correctly decryptable under the same
// header.
func (e *Engine) openWriteStream(ino uint64, path string) (*os.File, *crypto.EncryptingSink, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Io, err, "opening %s for write", path)
	}
	enc, err := crypto.NewEncryptingSink(f, e.keys, ino)
	if err != nil {
		f.Close()
		return nil, nil, errs.Wrap(errs.Encryption, err, "encrypting %s", path)
	}
	return f, enc, nil
}

// writeEmptyContent (re)creates ino's content file holding a valid,
// header-only encrypted stream that decrypts to zero bytes. create_nod and
// truncate(size=0) both need this rather than a bare empty file, since the
// chunked stream codec requires its header to be present even for an empty
// stream.
func (e *Engine) writeEmptyContent(ino uint64) error {
	f, err := os.OpenFile(e.layout.ContentPath(ino), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return errs.Wrap(errs.Io, err, "creating content %d", ino)
	}
	defer f.Close()

	enc, err := crypto.NewEncryptingSink(f, e.keys, ino)
	if err != nil {
		return errs.Wrap(errs.Encryption, err, "initializing content %d", ino)
	}
	if err := enc.Finish(); err != nil {
		return errs.Wrap(errs.Io, err, "finishing content %d", ino)
	}
	return nil
}

// Open opens ino for reading, writing, or both, returning the handle the
// caller should use for I/O. When both are requested, that handle is the
// write handle; a read handle is allocated too and tracked internally (per
// spec §4.6.1).
func (e *Engine) Open(ino uint64, read, write bool) (uint64, error) {
	if !read && !write {
		return 0, errs.New(errs.InvalidInput, "open: read and write cannot both be false")
	}
	if _, err := e.requireFile(ino); err != nil {
		return 0, err
	}

	var fh uint64
	if read {
		rfh, err := e.openReadHandle(ino)
		if err != nil {
			return 0, err
		}
		fh = rfh
	}
	if write {
		wfh, err := e.openWriteHandle(ino)
		if err != nil {
			return 0, err
		}
		fh = wfh
	}
	return fh, nil
}

func (e *Engine) openReadHandle(ino uint64) (uint64, error) {
	attr, err := e.inodes.GetInode(ino)
	if err != nil {
		return 0, err
	}
	f, dec, err := e.openReadStream(ino)
	if err != nil {
		return 0, err
	}
	fh := e.allocHandle()
	e.readHandles[fh] = &readHandle{ino: ino, attr: attr, file: f, decoder: dec}
	logger.Debugf("opened read handle %d on inode %d", fh, ino)
	e.metrics.ReadHandleOpened()
	return fh, nil
}

func (e *Engine) openWriteHandle(ino uint64) (uint64, error) {
	attr, err := e.inodes.GetInode(ino)
	if err != nil {
		return 0, err
	}
	path := e.layout.ContentPath(ino)
	f, enc, err := e.openWriteStream(ino, path)
	if err != nil {
		return 0, err
	}
	fh := e.allocHandle()
	e.writeHandles[fh] = &writeHandle{ino: ino, fh: fh, attr: attr, sinkPath: path, file: f, encoder: enc}
	logger.Debugf("opened write handle %d on inode %d", fh, ino)
	e.metrics.WriteHandleOpened()
	return fh, nil
}

// Flush pushes a write handle's buffered ciphertext to its underlying file
// without finalizing the stream or touching persisted attributes. fh == 0
// is a no-op, matching directories and unopened files.
func (e *Engine) Flush(fh uint64) error {
	if fh == 0 {
		return nil
	}
	wh, ok := e.writeHandles[fh]
	if !ok {
		return errs.New(errs.InvalidFileHandle, "flush: fh %d is not an open write handle", fh)
	}
	if err := wh.encoder.Flush(); err != nil {
		return errs.Wrap(errs.Io, err, "flushing fh %d", fh)
	}
	return nil
}

// ReleaseHandle finalizes and discards fh. Releasing a write handle commits
// its content (renaming a rebuild temp file over the canonical path if one
// was in use) and invalidates every live read handle on the same inode so
// later reads observe the committed bytes. fh == 0 is a no-op.
func (e *Engine) ReleaseHandle(fh uint64) error {
	if fh == 0 {
		return nil
	}

	if rh, ok := e.readHandles[fh]; ok {
		if err := e.inodes.WriteInode(rh.attr); err != nil {
			return err
		}
		rh.file.Close()
		delete(e.readHandles, fh)
		e.metrics.ReadHandleClosed()
		return nil
	}

	if wh, ok := e.writeHandles[fh]; ok {
		if err := e.inodes.WriteInode(wh.attr); err != nil {
			return err
		}
		if err := wh.encoder.Finish(); err != nil {
			wh.file.Close()
			return errs.Wrap(errs.Io, err, "finishing fh %d", fh)
		}
		wh.file.Close()

		if wh.tmp {
			if err := os.Rename(wh.sinkPath, e.layout.ContentPath(wh.ino)); err != nil {
				return errs.Wrap(errs.Io, err, "committing rebuild for inode %d", wh.ino)
			}
			logger.Debugf("committed rebuild for inode %d from fh %d", wh.ino, fh)
		}

		delete(e.writeHandles, fh)
		e.metrics.WriteHandleClosed()
		logger.Debugf("released write handle %d on inode %d", fh, wh.ino)
		return e.invalidateReaders(wh.ino)
	}

	return errs.New(errs.InvalidFileHandle, "release: fh %d is not an open handle", fh)
}

// invalidateReaders replaces every live read handle on ino with a fresh one
// positioned at byte 0, so subsequent reads observe the content a writer
// just committed rather than a decryptor state captured before the commit.
func (e *Engine) invalidateReaders(ino uint64) error {
	for fh, rh := range e.readHandles {
		if rh.ino != ino {
			continue
		}
		attr, err := e.inodes.GetInode(ino)
		if err != nil {
			return err
		}
		rh.file.Close()
		f, dec, err := e.openReadStream(ino)
		if err != nil {
			return err
		}
		e.readHandles[fh] = &readHandle{ino: ino, attr: attr, file: f, decoder: dec}
		logger.Debugf("invalidated read handle %d on inode %d after writer commit", fh, ino)
		e.metrics.InvalidationPerformed()
	}
	return nil
}
