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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferSizeTiers(t *testing.T) {
	tests := []struct {
		name string
		size int64
		want int
	}{
		{name: "empty", size: 0, want: 4 * KB},
		{name: "tiny", size: 1, want: 4 * KB},
		{name: "just_under_1mb", size: 1*MB - 1, want: 4 * KB},
		{name: "exactly_1mb", size: 1 * MB, want: 512 * KB},
		{name: "just_under_10mb", size: 10*MB - 1, want: 512 * KB},
		{name: "exactly_10mb", size: 10 * MB, want: 2 * MB},
		{name: "just_under_100mb", size: 100*MB - 1, want: 2 * MB},
		{name: "exactly_100mb", size: 100 * MB, want: 16 * MB},
		{name: "just_under_1gb", size: 1*GB - 1, want: 16 * MB},
		{name: "exactly_1gb", size: 1 * GB, want: 64 * MB},
		{name: "just_under_10gb", size: 10*GB - 1, want: 64 * MB},
		{name: "exactly_10gb", size: 10 * GB, want: 128 * MB},
		{name: "huge", size: 100 * GB, want: 128 * MB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BufferSize(tt.size))
		})
	}
}

func TestBufferSizeMonotonic(t *testing.T) {
	sizes := []int64{0, 1 * MB, 10 * MB, 100 * MB, 1 * GB, 10 * GB, 50 * GB}
	prev := 0
	for _, s := range sizes {
		got := BufferSize(s)
		assert.GreaterOrEqual(t, got, prev, "buffer size must not shrink as file size grows")
		prev = got
	}
}

func TestAdjustBufferSize(t *testing.T) {
	tests := []struct {
		name       string
		buffer     int
		sameVolume bool
		want       int
	}{
		{name: "same_volume_doubles", buffer: 16 * MB, sameVolume: true, want: 32 * MB},
		{name: "same_volume_cap", buffer: 128 * MB, sameVolume: true, want: 256 * MB},
		{name: "same_volume_over_cap", buffer: 200 * MB, sameVolume: true, want: 256 * MB},
		{name: "cross_volume_unchanged", buffer: 16 * MB, sameVolume: false, want: 16 * MB},
		{name: "cross_volume_cap", buffer: 128 * MB, sameVolume: false, want: 64 * MB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AdjustBufferSize(tt.buffer, tt.sameVolume))
		})
	}
}

func TestIOWorkersBounds(t *testing.T) {
	n := IOWorkers()
	assert.GreaterOrEqual(t, n, 4)
	assert.LessOrEqual(t, n, 32)
}
