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

	"github.com/cryptofs/cryptofs/errs"
	"github.com/cryptofs/cryptofs/store"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory's entries.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}

		e, err := openEngine()
		if err != nil {
			return err
		}

		attr, err := resolvePath(e, path)
		if err != nil {
			return err
		}
		if attr.Kind != store.Directory {
			return errs.New(errs.InvalidInodeType, "ls: %q is not a directory", path)
		}

		seq, err := e.ReadDirPlus(attr.Ino)
		if err != nil {
			return err
		}
		for entry := range seq {
			if entry.Err != nil {
				fmt.Printf("%-20s <error: %v>\n", "?", entry.Err)
				continue
			}
			fmt.Printf("%-20s %-12s ino=%d size=%d\n", entry.Name, entry.Kind, entry.Ino, entry.Attr.Size)
		}
		return nil
	},
}
