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

// Package clock supplies the time source used to stamp inode attributes
// (atime/mtime/ctime/crtime). Abstracting it lets tests set and advance
// time deterministically instead of sleeping.
package clock

import "time"

// Clock is a source of the current time.
type Clock interface {
	// Now returns the current time according to the clock.
	Now() time.Time
}
