// Copyright 2024 Google Inc. All Rights Reserved.
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

package main

import (
	"io"
	"os"

	"github.com/cryptofs/cryptofs/errs"
	"github.com/cryptofs/cryptofs/store"
	"github.com/spf13/cobra"
)

const putChunkSize = 64 * 1024

var putCmd = &cobra.Command{
	Use:   "put <local-file> <path>",
	Short: "Copy a local file's contents into the data directory at path, creating it if needed.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		localPath, remotePath := args[0], args[1]

		src, err := os.Open(localPath)
		if err != nil {
			return err
		}
		defer src.Close()

		e, err := openEngine()
		if err != nil {
			return err
		}

		parent, name, err := resolveParent(e, remotePath)
		if err != nil {
			return err
		}

		var ino, fh uint64
		if existing, err := e.FindByName(parent, name); err == nil {
			if existing.Kind != store.RegularFile {
				return errs.New(errs.InvalidInodeType, "put: %q is not a regular file", remotePath)
			}
			ino = existing.Ino
			fh, err = e.Open(ino, false, true)
			if err != nil {
				return err
			}
		} else {
			var attr store.Attr
			fh, attr, err = e.CreateNod(parent, name, store.Attr{Kind: store.RegularFile, Perm: 0o644}, false, true)
			if err != nil {
				return err
			}
			ino = attr.Ino
		}

		buf := make([]byte, putChunkSize)
		var offset uint64
		for {
			n, readErr := src.Read(buf)
			if n > 0 {
				if err := e.WriteAll(ino, offset, buf[:n], fh); err != nil {
					e.ReleaseHandle(fh)
					return err
				}
				offset += uint64(n)
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				e.ReleaseHandle(fh)
				return readErr
			}
		}
		return e.ReleaseHandle(fh)
	},
}
