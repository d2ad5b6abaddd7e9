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
	"os"

	"github.com/cryptofs/cryptofs/errs"
	"github.com/cryptofs/cryptofs/store"
	"github.com/spf13/cobra"
)

const getChunkSize = 64 * 1024

var getCmd = &cobra.Command{
	Use:   "get <path> <local-file>",
	Short: "Copy a file's decrypted contents out of the data directory to a local path.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		remotePath, localPath := args[0], args[1]

		e, err := openEngine()
		if err != nil {
			return err
		}

		attr, err := resolvePath(e, remotePath)
		if err != nil {
			return err
		}
		if attr.Kind != store.RegularFile {
			return errs.New(errs.InvalidInodeType, "get: %q is not a regular file", remotePath)
		}

		dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		defer dst.Close()

		fh, err := e.Open(attr.Ino, true, false)
		if err != nil {
			return err
		}
		defer e.ReleaseHandle(fh)

		buf := make([]byte, getChunkSize)
		for offset := uint64(0); offset < attr.Size; {
			n, err := e.Read(attr.Ino, offset, buf, fh)
			if err != nil {
				return err
			}
			if n == 0 {
				break
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return err
			}
			offset += uint64(n)
		}
		return nil
	},
}
