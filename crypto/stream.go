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

package crypto

import (
	"bufio"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// ChunkSize is the amount of plaintext sealed into each secretbox. Content
// files are a header followed by a sequence of sealed chunks; the final
// chunk may be shorter.
const ChunkSize = 64 * 1024

const (
	magicString = "CFSv1\x00\x00\x00"
	magicSize   = len(magicString)
	nonceSize   = 24
	overhead    = secretbox.Overhead
	headerSize  = magicSize
)

// ErrBadHeader is returned when a content stream does not begin with the
// expected magic bytes, meaning it was not produced by EncryptingSink (or is
// corrupt).
var ErrBadHeader = errors.New("crypto: bad content stream header")

// ErrAuthFailed is returned when a sealed chunk fails secretbox
// authentication, meaning the ciphertext was corrupted or tampered with.
var ErrAuthFailed = errors.New("crypto: chunk authentication failed")

// deriveContentNonce computes the starting nonce for streamID's content
// stream as HMAC-SHA256(dataKey, streamID), truncated to the secretbox
// nonce size. Unlike a randomly chosen nonce, this is the same every time a
// stream for the same ID is opened, which is what lets the engine close and
// reopen an encryptor or decryptor over the same content object — for
// replay-based reads, temp-file rebuilds, and tail preservation — and have
// every reopening agree byte-for-byte on the keystream at a given chunk
// index. That reuse is safe here because nothing in this engine's threat
// model (see its Non-goals) defends against an attacker who records
// ciphertext across edits; within that model the tradeoff buys the random
// access emulation §4.6 depends on.
func deriveContentNonce(keys Keys, streamID uint64) [nonceSize]byte {
	var idBytes [8]byte
	binary.BigEndian.PutUint64(idBytes[:], streamID)

	mac := hmac.New(sha256.New, keys.DataKey[:])
	mac.Write(idBytes[:])
	sum := mac.Sum(nil)

	var nonce [nonceSize]byte
	copy(nonce[:], sum[:nonceSize])
	return nonce
}

// EncryptingSink wraps a plaintext writer, turning every ChunkSize bytes of
// plaintext written to it into one sealed chunk written to the underlying
// stream. It is sequential-only: there is no way to seek an EncryptingSink,
// matching the streaming contract the engine relies on for writes.
type EncryptingSink struct {
	w         *bufio.Writer
	key       [dataKeySize]byte
	nonce     [nonceSize]byte
	chunksLen int
	buf       []byte
	finished  bool
}

// NewEncryptingSink writes the stream header to w and returns a sink ready
// to accept plaintext. streamID (the content object's inode number) seeds
// the chunk nonce sequence deterministically; see deriveContentNonce.
// Writes are buffered so a caller can Flush them to the underlying writer
// without finalizing the stream.
func NewEncryptingSink(w io.Writer, keys Keys, streamID uint64) (*EncryptingSink, error) {
	if _, err := w.Write([]byte(magicString)); err != nil {
		return nil, fmt.Errorf("crypto: writing header: %w", err)
	}

	return &EncryptingSink{
		w:     bufio.NewWriterSize(w, ChunkSize+overhead),
		key:   keys.DataKey,
		nonce: deriveContentNonce(keys, streamID),
		buf:   make([]byte, 0, ChunkSize),
	}, nil
}

// Write buffers p and seals and emits full ChunkSize chunks as they fill.
// A short final chunk is only sealed and emitted by Finish.
func (s *EncryptingSink) Write(p []byte) (int, error) {
	if s.finished {
		return 0, errors.New("crypto: write to finished EncryptingSink")
	}

	written := 0
	for len(p) > 0 {
		room := ChunkSize - len(s.buf)
		n := room
		if n > len(p) {
			n = len(p)
		}
		s.buf = append(s.buf, p[:n]...)
		p = p[n:]
		written += n

		if len(s.buf) == ChunkSize {
			if err := s.sealChunk(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Finish seals and emits any buffered remainder, flushes the writer, and
// marks the sink unusable. It does not close the underlying writer; callers
// that wrap a host file are responsible for that themselves once Finish
// returns.
func (s *EncryptingSink) Finish() error {
	if s.finished {
		return nil
	}
	s.finished = true
	if len(s.buf) > 0 {
		if err := s.sealChunk(); err != nil {
			return err
		}
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("crypto: flushing on finish: %w", err)
	}
	return nil
}

// Flush pushes any sealed chunks buffered so far to the underlying writer,
// without finalizing the stream: a partially filled, not-yet-sealed
// plaintext buffer is left in place for the next Write or Finish. It is the
// primitive behind the engine's flush(fh) operation.
func (s *EncryptingSink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("crypto: flush: %w", err)
	}
	return nil
}

func (s *EncryptingSink) sealChunk() error {
	nonce := s.chunkNonce(s.chunksLen)
	sealed := secretbox.Seal(nil, s.buf, &nonce, &s.key)
	if _, err := s.w.Write(sealed); err != nil {
		return fmt.Errorf("crypto: writing chunk: %w", err)
	}
	s.chunksLen++
	s.buf = s.buf[:0]
	return nil
}

// chunkNonce returns the nonce for the chunk at index, derived by treating
// the base nonce as a little-endian counter and adding index to it. Every
// EncryptingSink or DecryptingSource built over the same streamID computes
// the same sequence, so reopening mid-stream never desynchronizes it.
func (s *EncryptingSink) chunkNonce(index int) [nonceSize]byte {
	return addToNonce(s.nonce, index)
}

// DecryptingSource wraps a ciphertext reader, yielding plaintext as it opens
// sealed chunks. It is sequential-only, matching EncryptingSink: callers
// needing random access restart a fresh DecryptingSource from the beginning
// of the stream, which is what the engine's read handles do.
type DecryptingSource struct {
	r          io.Reader
	key        [dataKeySize]byte
	nonce      [nonceSize]byte
	chunkIndex int
	plain      []byte
	pos        int
	atEOF      bool
}

// NewDecryptingSource reads and validates the stream header from r and
// returns a source ready to yield plaintext. streamID must be the same
// value passed to NewEncryptingSink when the stream was produced.
func NewDecryptingSource(r io.Reader, keys Keys, streamID uint64) (*DecryptingSource, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrBadHeader
		}
		return nil, fmt.Errorf("crypto: reading header: %w", err)
	}
	if string(header) != magicString {
		return nil, ErrBadHeader
	}

	return &DecryptingSource{r: r, key: keys.DataKey, nonce: deriveContentNonce(keys, streamID)}, nil
}

// Read implements io.Reader, returning decrypted plaintext. It returns
// io.EOF once the underlying ciphertext stream is exhausted.
func (d *DecryptingSource) Read(p []byte) (int, error) {
	if d.pos >= len(d.plain) {
		if d.atEOF {
			return 0, io.EOF
		}
		if err := d.fill(); err != nil {
			return 0, err
		}
		if d.pos >= len(d.plain) {
			return 0, io.EOF
		}
	}

	n := copy(p, d.plain[d.pos:])
	d.pos += n
	return n, nil
}

// fill reads and opens the next sealed chunk, sized up to one full
// ChunkSize plus secretbox overhead. A short read followed by EOF is the
// final, possibly partial, chunk; a zero-length read marks the stream's end.
func (d *DecryptingSource) fill() error {
	sealed := make([]byte, ChunkSize+overhead)
	n, err := io.ReadFull(d.r, sealed)
	switch {
	case err == nil:
		// Full chunk; more may follow.
	case errors.Is(err, io.ErrUnexpectedEOF):
		// Short final chunk.
		sealed = sealed[:n]
		d.atEOF = true
	case errors.Is(err, io.EOF):
		d.atEOF = true
		d.plain = nil
		d.pos = 0
		return nil
	default:
		return fmt.Errorf("crypto: reading chunk: %w", err)
	}

	nonce := addToNonce(d.nonce, d.chunkIndex)
	opened, ok := secretbox.Open(nil, sealed, &nonce, &d.key)
	if !ok {
		return ErrAuthFailed
	}
	d.chunkIndex++

	d.plain = opened
	d.pos = 0
	if n < ChunkSize+overhead {
		d.atEOF = true
	}
	return nil
}

// addToNonce treats base as a little-endian counter and returns base+delta,
// carrying across byte boundaries. Both EncryptingSink and DecryptingSource
// derive a chunk's nonce this way from the same streamID-seeded base, so
// the sequence matches regardless of which side, or how many independent
// instances, compute it.
func addToNonce(base [nonceSize]byte, delta int) [nonceSize]byte {
	nonce := base
	carry := uint64(delta)
	for i := range nonce {
		if carry == 0 {
			break
		}
		sum := uint64(nonce[i]) + carry
		nonce[i] = byte(sum)
		carry = sum >> 8
	}
	return nonce
}
