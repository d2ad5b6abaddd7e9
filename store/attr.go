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

// Package store implements the two on-disk record formats the engine
// persists through the crypto package: inode attribute records (C4) and
// directory-entry tuples (C3). Both use a stable, hand-rolled binary layout
// so that any implementation sharing a key and cipher can read the other's
// data root.
package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/cryptofs/cryptofs/errs"
)

// Kind distinguishes the two inode kinds the engine supports. Any other
// value is rejected wherever an Attr is validated.
type Kind uint8

const (
	Directory Kind = iota
	RegularFile
)

func (k Kind) String() string {
	switch k {
	case Directory:
		return "Directory"
	case RegularFile:
		return "RegularFile"
	default:
		return "Invalid"
	}
}

// Valid reports whether k is one of the two recognized kinds.
func (k Kind) Valid() bool {
	return k == Directory || k == RegularFile
}

// Attr is the persisted metadata record for one inode, declared in the
// exact field order EncodeAttr writes them in.
type Attr struct {
	Ino     uint64
	Size    uint64
	Blocks  uint64
	Atime   time.Time
	Mtime   time.Time
	Ctime   time.Time
	Crtime  time.Time
	Kind    Kind
	Perm    uint16
	Nlink   uint32
	UID     uint32
	GID     uint32
	Rdev    uint32
	Blksize uint32
	Flags   uint32
}

// attrRecordVersion guards against decoding a record produced by an
// incompatible future layout.
const attrRecordVersion = 1

func encodeTime(buf *bytes.Buffer, t time.Time) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(t.UnixNano()))
	buf.Write(b[:])
}

func decodeTime(r *bytes.Reader) (time.Time, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(b[:]))).UTC(), nil
}

// EncodeAttr serializes attr into the engine's stable attribute-record
// format, in declared field order, ready to pass to crypto.EncryptString.
func EncodeAttr(attr Attr) []byte {
	var buf bytes.Buffer
	buf.WriteByte(attrRecordVersion)

	var u64 [8]byte
	putU64 := func(v uint64) {
		binary.BigEndian.PutUint64(u64[:], v)
		buf.Write(u64[:])
	}
	var u32 [4]byte
	putU32 := func(v uint32) {
		binary.BigEndian.PutUint32(u32[:], v)
		buf.Write(u32[:])
	}
	var u16 [2]byte
	putU16 := func(v uint16) {
		binary.BigEndian.PutUint16(u16[:], v)
		buf.Write(u16[:])
	}

	putU64(attr.Ino)
	putU64(attr.Size)
	putU64(attr.Blocks)
	encodeTime(&buf, attr.Atime)
	encodeTime(&buf, attr.Mtime)
	encodeTime(&buf, attr.Ctime)
	encodeTime(&buf, attr.Crtime)
	buf.WriteByte(byte(attr.Kind))
	putU16(attr.Perm)
	putU32(attr.Nlink)
	putU32(attr.UID)
	putU32(attr.GID)
	putU32(attr.Rdev)
	putU32(attr.Blksize)
	putU32(attr.Flags)

	return buf.Bytes()
}

// DecodeAttr inverts EncodeAttr. A malformed or truncated record yields a
// Serialize error.
func DecodeAttr(data []byte) (Attr, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return Attr{}, errs.Wrap(errs.Serialize, err, "reading attr record version")
	}
	if version != attrRecordVersion {
		return Attr{}, errs.New(errs.Serialize, "unsupported attr record version %d", version)
	}

	readU64 := func(field string) (uint64, error) {
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, errs.Wrap(errs.Serialize, err, "reading %s", field)
		}
		return binary.BigEndian.Uint64(b[:]), nil
	}
	readU32 := func(field string) (uint32, error) {
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, errs.Wrap(errs.Serialize, err, "reading %s", field)
		}
		return binary.BigEndian.Uint32(b[:]), nil
	}
	readU16 := func(field string) (uint16, error) {
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, errs.Wrap(errs.Serialize, err, "reading %s", field)
		}
		return binary.BigEndian.Uint16(b[:]), nil
	}

	var attr Attr
	if attr.Ino, err = readU64("ino"); err != nil {
		return Attr{}, err
	}
	if attr.Size, err = readU64("size"); err != nil {
		return Attr{}, err
	}
	if attr.Blocks, err = readU64("blocks"); err != nil {
		return Attr{}, err
	}
	if attr.Atime, err = decodeTime(r); err != nil {
		return Attr{}, errs.Wrap(errs.Serialize, err, "reading atime")
	}
	if attr.Mtime, err = decodeTime(r); err != nil {
		return Attr{}, errs.Wrap(errs.Serialize, err, "reading mtime")
	}
	if attr.Ctime, err = decodeTime(r); err != nil {
		return Attr{}, errs.Wrap(errs.Serialize, err, "reading ctime")
	}
	if attr.Crtime, err = decodeTime(r); err != nil {
		return Attr{}, errs.Wrap(errs.Serialize, err, "reading crtime")
	}

	kindByte, err := r.ReadByte()
	if err != nil {
		return Attr{}, errs.Wrap(errs.Serialize, err, "reading kind")
	}
	attr.Kind = Kind(kindByte)
	if !attr.Kind.Valid() {
		return Attr{}, errs.New(errs.Serialize, "invalid kind byte %d", kindByte)
	}

	if attr.Perm, err = readU16("perm"); err != nil {
		return Attr{}, err
	}
	if attr.Nlink, err = readU32("nlink"); err != nil {
		return Attr{}, err
	}
	if attr.UID, err = readU32("uid"); err != nil {
		return Attr{}, err
	}
	if attr.GID, err = readU32("gid"); err != nil {
		return Attr{}, err
	}
	if attr.Rdev, err = readU32("rdev"); err != nil {
		return Attr{}, err
	}
	if attr.Blksize, err = readU32("blksize"); err != nil {
		return Attr{}, err
	}
	if attr.Flags, err = readU32("flags"); err != nil {
		return Attr{}, err
	}

	if r.Len() != 0 {
		return Attr{}, errs.New(errs.Serialize, "trailing %d bytes after attr record", r.Len())
	}

	return attr, nil
}

// String is used by logging call sites; it intentionally omits every field
// but the ones useful for a log line.
func (a Attr) String() string {
	return fmt.Sprintf("Attr{ino=%d, kind=%s, size=%d}", a.Ino, a.Kind, a.Size)
}
