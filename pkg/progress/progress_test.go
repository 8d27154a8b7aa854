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

package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

// 🕰️ fakeClock drives the tracker deterministically.
type fakeClock struct {
	at time.Time
}

func (c *fakeClock) now() time.Time { return c.at }

func (c *fakeClock) advance(d time.Duration) { c.at = c.at.Add(d) }

func newTestTracker() (*Tracker, *fakeClock) {
	clock := &fakeClock{at: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	tr := NewTracker()
	tr.now = clock.now
	return tr, clock
}

func TestCopiedSizeAggregatesFiles(t *testing.T) {
	tr, _ := newTestTracker()
	tr.StartOperation("op", 2, 300)
	tr.StartFile("op", "a.txt", 100)
	tr.StartFile("op", "b.txt", 200)

	tr.UpdateFile("op", "a.txt", 60)
	tr.UpdateFile("op", "b.txt", 40)

	snap, ok := tr.Snapshot("op")
	require.True(t, ok)
	assert.Equal(t, int64(100), snap.CopiedSize)
	assert.Equal(t, int64(300), snap.TotalSize)
	assert.Equal(t, 2, snap.TotalFiles)
}

func TestCopiedBytesAreMonotonic(t *testing.T) {
	tr, _ := newTestTracker()
	tr.StartOperation("op", 1, 100)
	tr.StartFile("op", "a.txt", 100)

	tr.UpdateFile("op", "a.txt", 50)
	tr.UpdateFile("op", "a.txt", 30) // stale update, must be dropped

	fp, ok := tr.File("op", "a.txt")
	require.True(t, ok)
	assert.Equal(t, int64(50), fp.Copied)
}

func TestFilesListsRecordsSorted(t *testing.T) {
	tr, _ := newTestTracker()
	tr.StartOperation("op", 2, 300)
	tr.StartFile("op", "b.txt", 200)
	tr.StartFile("op", "a.txt", 100)
	tr.UpdateFile("op", "a.txt", 100)
	tr.FinishFile("op", "a.txt", nil)
	tr.FinishFile("op", "b.txt", errors.New("read error"))

	files := tr.Files("op")
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Path)
	assert.NoError(t, files[0].Err)
	assert.Equal(t, "b.txt", files[1].Path)
	assert.Error(t, files[1].Err)

	assert.Nil(t, tr.Files("no-such-op"))
}

func TestFinishFileCountsFailures(t *testing.T) {
	tr, _ := newTestTracker()
	tr.StartOperation("op", 2, 200)
	tr.StartFile("op", "ok.txt", 100)
	tr.StartFile("op", "bad.txt", 100)

	tr.UpdateFile("op", "ok.txt", 100)
	tr.FinishFile("op", "ok.txt", nil)
	tr.FinishFile("op", "bad.txt", errors.New("read error"))

	snap, ok := tr.Snapshot("op")
	require.True(t, ok)
	assert.Equal(t, 1, snap.DoneFiles)
	assert.Equal(t, 1, snap.FailedFiles)
}

func TestElapsedExcludesPausedTime(t *testing.T) {
	tr, clock := newTestTracker()
	tr.StartOperation("op", 1, 100)

	clock.advance(2 * time.Second)
	require.True(t, tr.Pause("op"))
	clock.advance(5 * time.Second) // paused interval
	require.True(t, tr.Resume("op"))
	clock.advance(1 * time.Second)

	assert.Equal(t, 3*time.Second, tr.Elapsed("op"))
}

func TestElapsedWhilePaused(t *testing.T) {
	tr, clock := newTestTracker()
	tr.StartOperation("op", 1, 100)

	clock.advance(time.Second)
	require.True(t, tr.Pause("op"))
	clock.advance(10 * time.Second)

	assert.Equal(t, time.Second, tr.Elapsed("op"))
	assert.False(t, tr.Resume("missing"))
	assert.False(t, tr.Pause("op"), "double pause is rejected")
}

func TestRollingSpeedAndETA(t *testing.T) {
	tr, clock := newTestTracker()
	tr.StartOperation("op", 1, 10_000)
	tr.StartFile("op", "a.bin", 10_000)

	// 1000 bytes/sec over 4 samples.
	for i := int64(1); i <= 4; i++ {
		clock.advance(time.Second)
		tr.UpdateFile("op", "a.bin", i*1000)
	}

	snap, ok := tr.Snapshot("op")
	require.True(t, ok)
	assert.InDelta(t, 1000.0, snap.Speed, 1.0)
	// 6000 bytes remaining at ~1000 B/s.
	assert.InDelta(t, float64(6*time.Second), float64(snap.ETA), float64(100*time.Millisecond))
}

func TestRemoveDropsOperation(t *testing.T) {
	tr, _ := newTestTracker()
	tr.StartOperation("op", 1, 1)
	tr.Remove("op")

	_, ok := tr.Snapshot("op")
	assert.False(t, ok)
}
