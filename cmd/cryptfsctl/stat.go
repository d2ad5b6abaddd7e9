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
	"fmt"

	"github.com/spf13/cobra"
)

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Print an inode's attribute record.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}

		attr, err := resolvePath(e, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ino:     %d\n", attr.Ino)
		fmt.Printf("kind:    %s\n", attr.Kind)
		fmt.Printf("size:    %d\n", attr.Size)
		fmt.Printf("perm:    %#o\n", attr.Perm)
		fmt.Printf("nlink:   %d\n", attr.Nlink)
		fmt.Printf("uid/gid: %d/%d\n", attr.UID, attr.GID)
		fmt.Printf("atime:   %s\n", attr.Atime)
		fmt.Printf("mtime:   %s\n", attr.Mtime)
		fmt.Printf("ctime:   %s\n", attr.Ctime)
		fmt.Printf("crtime:  %s\n", attr.Crtime)
		return nil
	},
}
