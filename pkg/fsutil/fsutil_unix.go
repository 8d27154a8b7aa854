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

//go:build !windows

package fsutil

import (
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sys/unix"
)

// 🆔 DeviceID returns the device number of the filesystem holding path.
func DeviceID(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, errors.Errorf("stat %s: %w", path, err)
	}
	return uint64(st.Dev), nil
}

// 💽 FreeSpace returns the bytes available to unprivileged callers on the
// volume holding path. The path is resolved through its nearest existing
// ancestor.
func FreeSpace(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(nearestExisting(path), &st); err != nil {
		return 0, errors.Errorf("statfs %s: %w", path, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}
