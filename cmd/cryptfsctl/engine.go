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
	"strings"

	"github.com/cryptofs/cryptofs/engine"
	"github.com/cryptofs/cryptofs/layout"
	"github.com/cryptofs/cryptofs/store"
)

// openEngine constructs an Engine over the configured data directory, using
// the password supplied on the command line or via $CRYPTOFS_PASSWORD.
func openEngine() (*engine.Engine, error) {
	if password == "" {
		return nil, fmt.Errorf("a password is required: pass --password or set $CRYPTOFS_PASSWORD")
	}
	return engine.New(config.DataDir, password)
}

// splitPath breaks a "/"-separated path into its non-empty segments. Both
// "" and "/" split to an empty slice, meaning the root directory.
func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// resolvePath walks path from the root inode, returning the attributes of
// the entry it names.
func resolvePath(e *engine.Engine, path string) (store.Attr, error) {
	attr, err := e.GetInode(layout.RootInode)
	if err != nil {
		return store.Attr{}, err
	}
	for _, seg := range splitPath(path) {
		attr, err = e.FindByName(attr.Ino, seg)
		if err != nil {
			return store.Attr{}, fmt.Errorf("resolving %q: %w", path, err)
		}
	}
	return attr, nil
}

// resolveParent splits path into the inode of its containing directory and
// its final path segment, which need not exist yet. It fails if path names
// the root itself, which has no parent segment to split off.
func resolveParent(e *engine.Engine, path string) (parentIno uint64, name string, err error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return 0, "", fmt.Errorf("%q has no parent", path)
	}
	parentAttr, err := resolvePath(e, strings.Join(segs[:len(segs)-1], "/"))
	if err != nil {
		return 0, "", err
	}
	return parentAttr.Ino, segs[len(segs)-1], nil
}
