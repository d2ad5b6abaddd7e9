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
	"github.com/cryptofs/cryptofs/engine"
	"github.com/cryptofs/cryptofs/errs"
	"github.com/cryptofs/cryptofs/layout"
	"github.com/cryptofs/cryptofs/store"
	"github.com/spf13/cobra"
)

var mkdirParents bool

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		if mkdirParents {
			return mkdirAll(e, args[0])
		}
		parent, name, err := resolveParent(e, args[0])
		if err != nil {
			return err
		}
		_, _, err = e.CreateNod(parent, name, store.Attr{Kind: store.Directory, Perm: 0o755}, false, false)
		return err
	},
}

func init() {
	mkdirCmd.Flags().BoolVarP(&mkdirParents, "parents", "p", false, "Create parent directories as needed, like mkdir -p.")
}

// mkdirAll creates every missing directory component of path, tolerating
// components that already exist.
func mkdirAll(e *engine.Engine, path string) error {
	parent, err := e.GetInode(layout.RootInode)
	if err != nil {
		return err
	}
	for _, seg := range splitPath(path) {
		child, err := e.FindByName(parent.Ino, seg)
		if err == nil {
			parent = child
			continue
		}
		if code, ok := errs.CodeOf(err); !ok || code != errs.NotFound {
			return err
		}
		_, child, err = e.CreateNod(parent.Ino, seg, store.Attr{Kind: store.Directory, Perm: 0o755}, false, false)
		if err != nil {
			return err
		}
		parent = child
	}
	return nil
}
