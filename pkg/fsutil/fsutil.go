// Copyright 2025 walteh LLC
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

// Package fsutil provides platform helpers for volume identity and
// free-space queries.
package fsutil

import (
	"os"
	"path/filepath"

	"gitlab.com/tozd/go/errors"
)

// 🔍 SameVolume reports whether two paths resolve to the same physical
// volume. Paths that do not exist yet are resolved through their nearest
// existing ancestor, which is best-effort: bind mounts can make device-id
// comparison unreliable.
func SameVolume(a, b string) (bool, error) {
	da, err := DeviceID(nearestExisting(a))
	if err != nil {
		return false, errors.Errorf("resolving volume of %s: %w", a, err)
	}
	db, err := DeviceID(nearestExisting(b))
	if err != nil {
		return false, errors.Errorf("resolving volume of %s: %w", b, err)
	}
	return da == db, nil
}

// 🧭 nearestExisting walks up from path until it finds a component that
// exists on disk. The filesystem root always exists, so this terminates.
func nearestExisting(path string) string {
	path = filepath.Clean(path)
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
