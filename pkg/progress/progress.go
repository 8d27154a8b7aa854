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

// Package progress tracks per-file and per-operation byte counters,
// rolling throughput, ETA, and pause accounting for long-running file
// operations.
package progress

import (
	"sort"
	"sync"
	"time"
)

// 🪟 rolling window bounds for throughput smoothing
const (
	sampleWindow  = 5 * time.Second
	maxSamples    = 64
	minSampleSpan = 100 * time.Millisecond
)

// 📄 FileProgress tracks a single file transfer.
type FileProgress struct {
	Path      string
	Size      int64
	Copied    int64
	StartedAt time.Time
	EndedAt   time.Time
	Speed     float64 // bytes/sec at completion
	Err       error
}

// Done reports whether the file finished (successfully or not).
func (f *FileProgress) Done() bool {
	return !f.EndedAt.IsZero()
}

// 📈 sample is one point of cumulative operation bytes.
type sample struct {
	at    time.Time
	bytes int64
}

// 📦 operation aggregates file progress for one job.
type operation struct {
	totalFiles int
	totalSize  int64
	files      map[string]*FileProgress

	startedAt time.Time
	endedAt   time.Time

	paused      bool
	pausedAt    time.Time
	pausedTotal time.Duration

	samples []sample
}

// 📊 Snapshot is a point-in-time copy of an operation's progress,
// safe to hand to callers outside the tracker lock.
type Snapshot struct {
	TotalFiles  int
	DoneFiles   int
	FailedFiles int
	TotalSize   int64
	CopiedSize  int64
	Elapsed     time.Duration
	Speed       float64 // bytes/sec, rolling
	ETA         time.Duration
	Paused      bool
}

// 🎯 Tracker owns progress records keyed by job id. It carries its own
// lock, independent of any job bookkeeping, because byte updates arrive
// at far higher frequency than job-state transitions.
type Tracker struct {
	mu  sync.RWMutex
	ops map[string]*operation

	now func() time.Time // test hook
}

// 🏭 NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		ops: make(map[string]*operation),
		now: time.Now,
	}
}

// 🚀 StartOperation registers a new operation under id.
func (t *Tracker) StartOperation(id string, totalFiles int, totalSize int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops[id] = &operation{
		totalFiles: totalFiles,
		totalSize:  totalSize,
		files:      make(map[string]*FileProgress, totalFiles),
		startedAt:  t.now(),
	}
}

// 📄 StartFile registers one file of an operation.
func (t *Tracker) StartFile(id, path string, size int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[id]
	if !ok {
		return
	}
	op.files[path] = &FileProgress{
		Path:      path,
		Size:      size,
		StartedAt: t.now(),
	}
}

// ⬆️ UpdateFile records copied bytes for a file. Copied bytes are
// monotonic until the file finishes: stale lower values are dropped.
func (t *Tracker) UpdateFile(id, path string, copied int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[id]
	if !ok {
		return
	}
	fp, ok := op.files[path]
	if !ok || fp.Done() || copied <= fp.Copied {
		return
	}
	fp.Copied = copied
	op.addSample(t.now(), op.copiedLocked())
}

// ✅ FinishFile marks a file as done. A failure before any bytes were
// written resets its apparent progress to zero.
func (t *Tracker) FinishFile(id, path string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[id]
	if !ok {
		return
	}
	fp, ok := op.files[path]
	if !ok {
		return
	}
	now := t.now()
	fp.EndedAt = now
	fp.Err = err
	if err != nil && fp.Copied == 0 {
		fp.Copied = 0
	}
	if d := now.Sub(fp.StartedAt); d > 0 && fp.Copied > 0 {
		fp.Speed = float64(fp.Copied) / d.Seconds()
	}
}

// 🏁 FinishOperation stamps the operation end time.
func (t *Tracker) FinishOperation(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if op, ok := t.ops[id]; ok && op.endedAt.IsZero() {
		op.endedAt = t.now()
	}
}

// ⏸️ Pause suspends elapsed-time accounting for the operation.
func (t *Tracker) Pause(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[id]
	if !ok || op.paused {
		return false
	}
	op.paused = true
	op.pausedAt = t.now()
	return true
}

// ▶️ Resume ends a pause and folds its duration into the pause total.
func (t *Tracker) Resume(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[id]
	if !ok || !op.paused {
		return false
	}
	op.paused = false
	op.pausedTotal += t.now().Sub(op.pausedAt)
	// Drop stale throughput samples so the rolling speed does not see
	// the pause as a stall.
	op.samples = nil
	return true
}

// ⏱️ Elapsed returns the operation's wall-clock time excluding pauses.
func (t *Tracker) Elapsed(id string) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	op, ok := t.ops[id]
	if !ok {
		return 0
	}
	return op.elapsedLocked(t.now())
}

// 🗑️ Remove drops the operation's progress records.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ops, id)
}

// 📊 Snapshot returns a copy of the operation's current aggregate state.
func (t *Tracker) Snapshot(id string) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	op, ok := t.ops[id]
	if !ok {
		return Snapshot{}, false
	}
	now := t.now()
	copied := op.copiedLocked()
	speed := op.rollingSpeedLocked()
	snap := Snapshot{
		TotalFiles: op.totalFiles,
		TotalSize:  op.totalSize,
		CopiedSize: copied,
		Elapsed:    op.elapsedLocked(now),
		Speed:      speed,
		Paused:     op.paused,
	}
	for _, fp := range op.files {
		if fp.Done() {
			if fp.Err != nil {
				snap.FailedFiles++
			} else {
				snap.DoneFiles++
			}
		}
	}
	if remaining := op.totalSize - copied; remaining > 0 && speed > 0 {
		snap.ETA = time.Duration(float64(remaining) / speed * float64(time.Second))
	}
	return snap, true
}

// 📄 File returns a copy of one file's progress record.
func (t *Tracker) File(id, path string) (FileProgress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	op, ok := t.ops[id]
	if !ok {
		return FileProgress{}, false
	}
	fp, ok := op.files[path]
	if !ok {
		return FileProgress{}, false
	}
	return *fp, true
}

// 📋 Files returns copies of every file record of an operation, sorted
// by path.
func (t *Tracker) Files(id string) []FileProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	op, ok := t.ops[id]
	if !ok {
		return nil
	}
	out := make([]FileProgress, 0, len(op.files))
	for _, fp := range op.files {
		out = append(out, *fp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (op *operation) copiedLocked() int64 {
	var total int64
	for _, fp := range op.files {
		total += fp.Copied
	}
	return total
}

func (op *operation) elapsedLocked(now time.Time) time.Duration {
	end := op.endedAt
	if end.IsZero() {
		end = now
	}
	elapsed := end.Sub(op.startedAt) - op.pausedTotal
	if op.paused {
		elapsed -= end.Sub(op.pausedAt)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// addSample appends a throughput point and prunes the window.
func (op *operation) addSample(at time.Time, bytes int64) {
	op.samples = append(op.samples, sample{at: at, bytes: bytes})
	cutoff := at.Add(-sampleWindow)
	i := 0
	for i < len(op.samples)-1 && op.samples[i].at.Before(cutoff) {
		i++
	}
	op.samples = op.samples[i:]
	if len(op.samples) > maxSamples {
		op.samples = op.samples[len(op.samples)-maxSamples:]
	}
}

// rollingSpeedLocked averages throughput over the retained window.
func (op *operation) rollingSpeedLocked() float64 {
	if len(op.samples) < 2 {
		return 0
	}
	first, last := op.samples[0], op.samples[len(op.samples)-1]
	span := last.at.Sub(first.at)
	if span < minSampleSpan {
		return 0
	}
	return float64(last.bytes-first.bytes) / span.Seconds()
}
