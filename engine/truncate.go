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

// Truncate resizes ino's content to size. Shrinking reuses the write_all
// rebuild path (§4.6.3) with an empty write at the new size, after setting
// the private handle's cached size to size so no tail is copied; growing writes
// zero chunks through write_all at increasing offsets, the same sequence a
// caller appending zeros by hand would produce. Both cases open and release
// a private write handle, so a caller holding its own handle open across a
// Truncate call sees the content change on its next operation rather than
// mid-flight.
func (e *Engine) Truncate(ino uint64, size uint64) error {
	attr, err := e.requireFile(ino)
	if err != nil {
		return err
	}
	if size == attr.Size {
		return nil
	}

	switch {
	case size == 0:
		if err := e.writeEmptyContent(ino); err != nil {
			return err
		}

	case size < attr.Size:
		fh, err := e.Open(ino, false, true)
		if err != nil {
			return err
		}
		e.writeHandles[fh].attr.Size = size
		if err := e.WriteAll(ino, size, nil, fh); err != nil {
			e.ReleaseHandle(fh)
			return err
		}
		if err := e.ReleaseHandle(fh); err != nil {
			return err
		}

	default:
		fh, err := e.Open(ino, false, true)
		if err != nil {
			return err
		}
		zero := make([]byte, ioChunkSize)
		cur := attr.Size
		for cur < size {
			n := size - cur
			if n > uint64(len(zero)) {
				n = uint64(len(zero))
			}
			if err := e.WriteAll(ino, cur, zero[:n], fh); err != nil {
				e.ReleaseHandle(fh)
				return err
			}
			cur += n
		}
		if err := e.Flush(fh); err != nil {
			e.ReleaseHandle(fh)
			return err
		}
		if err := e.ReleaseHandle(fh); err != nil {
			return err
		}
	}

	attr.Size = size
	now := e.clock.Now()
	attr.Mtime = now
	attr.Ctime = now
	return e.inodes.WriteInode(attr)
}

// CopyFileRange copies up to n bytes from src at srcOffset into dst at
// dstOffset, using the existing read and write handles, and returns the
// number of bytes actually transferred (which may be less than n if src is
// shorter).
func (e *Engine) CopyFileRange(src uint64, srcOffset uint64, dst uint64, dstOffset uint64, n uint64, srcFh, dstFh uint64) (uint64, error) {
	if _, err := e.requireFile(src); err != nil {
		return 0, err
	}
	if _, err := e.requireFile(dst); err != nil {
		return 0, err
	}

	buf := make([]byte, n)
	read, err := e.Read(src, srcOffset, buf, srcFh)
	if err != nil {
		return 0, err
	}
	if read == 0 {
		return 0, nil
	}

	if err := e.WriteAll(dst, dstOffset, buf[:read], dstFh); err != nil {
		return 0, err
	}
	return uint64(read), nil
}
