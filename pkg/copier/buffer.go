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

package copier

import "runtime"

// 📏 buffer size tiers
const (
	KB = 1 << 10
	MB = 1 << 20
	GB = 1 << 30

	// MaxSameVolumeBuffer caps the doubled same-volume buffer.
	MaxSameVolumeBuffer = 256 * MB
	// MaxCrossVolumeBuffer caps cross-volume buffers to favor
	// streaming parallelism.
	MaxCrossVolumeBuffer = 64 * MB
)

// 📐 BufferSize selects the I/O chunk size for a file of the given
// size, before any device adjustment.
func BufferSize(fileSize int64) int {
	switch {
	case fileSize < 1*MB:
		return 4 * KB
	case fileSize < 10*MB:
		return 512 * KB
	case fileSize < 100*MB:
		return 2 * MB
	case fileSize < 1*GB:
		return 16 * MB
	case fileSize < 10*GB:
		return 64 * MB
	default:
		return 128 * MB
	}
}

// 🔧 AdjustBufferSize applies the device heuristic: same-volume copies
// double the buffer (capped), cross-volume copies are capped lower.
func AdjustBufferSize(buffer int, sameVolume bool) int {
	if sameVolume {
		buffer *= 2
		if buffer > MaxSameVolumeBuffer {
			buffer = MaxSameVolumeBuffer
		}
		return buffer
	}
	if buffer > MaxCrossVolumeBuffer {
		buffer = MaxCrossVolumeBuffer
	}
	return buffer
}

// 👷 IOWorkers returns the I/O-oriented pool size for batch fan-out.
// File I/O wait time dominates, so the pool is sized well above the
// core count.
func IOWorkers() int {
	n := 2 * runtime.NumCPU()
	if n < 4 {
		n = 4
	}
	if n > 32 {
		n = 32
	}
	return n
}
