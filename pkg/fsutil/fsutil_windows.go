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

//go:build windows

package fsutil

import (
	"path/filepath"
	"strings"
	"unicode"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/sys/windows"
)

// 🆔 DeviceID identifies the volume holding path. Drive-letter paths map
// to the letter itself; UNC paths hash the \\server\share prefix.
func DeviceID(path string) (uint64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, errors.Errorf("resolving %s: %w", path, err)
	}
	vol := filepath.VolumeName(abs)
	if vol == "" {
		return 0, errors.Errorf("no volume in path %s", path)
	}
	if len(vol) == 2 && vol[1] == ':' {
		return uint64(unicode.ToUpper(rune(vol[0]))), nil
	}
	// UNC share: fold the prefix into a stable id.
	var id uint64
	for _, r := range strings.ToUpper(vol) {
		id = id*31 + uint64(r)
	}
	return id, nil
}

// 💽 FreeSpace returns the bytes available on the volume holding path.
func FreeSpace(path string) (uint64, error) {
	dir := nearestExisting(path)
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, errors.Errorf("encoding path %s: %w", dir, err)
	}
	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &totalFree); err != nil {
		return 0, errors.Errorf("querying free space of %s: %w", dir, err)
	}
	return free, nil
}
