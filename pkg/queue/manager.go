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

// Package queue owns the job queue, worker pool, and persisted history
// of the file operations engine. Jobs dispatch in priority order with
// FIFO tie-breaking; completion order across concurrent jobs is
// unspecified.
package queue

import (
	"container/heap"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/walteh/fileops/pkg/conflict"
	"github.com/walteh/fileops/pkg/copier"
	"github.com/walteh/fileops/pkg/mover"
	"github.com/walteh/fileops/pkg/progress"
	"github.com/walteh/fileops/pkg/verify"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 🔧 Options configures a Manager. Zero values get sensible defaults.
type Options struct {
	// Workers is the number of jobs that may run concurrently.
	Workers int
	// RetryAttempts and RetryBaseDelay drive per-file copy retries.
	RetryAttempts  int
	RetryBaseDelay time.Duration
	// HistoryPath is the JSON history file; empty disables persistence.
	HistoryPath string
	// AutoSaveHistory saves after every terminal transition.
	AutoSaveHistory bool
	// RenamePattern is the conflict rename template.
	RenamePattern string
	// AskFunc is consulted under the Ask conflict policy.
	AskFunc conflict.AskFunc
	// BufferSize overrides the adaptive per-file buffer when non-zero.
	BufferSize int
	// IgnorePatterns are doublestar globs excluded from directory
	// expansion, matched against source-relative paths.
	IgnorePatterns []string

	Tracker  *progress.Tracker
	Verifier *verify.Verifier
	Logger   *zerolog.Logger
}

// ⚙️ JobOptions are the per-job flags shared by copy and move.
type JobOptions struct {
	Verify           bool
	PreserveMetadata bool
	ConflictPolicy   conflict.Action
}

// 🎛️ Manager owns job records exclusively; the progress tracker owns
// progress records keyed by the same job ids. One coarse lock guards
// the job map and the priority queue — operations are long-running
// I/O, not tight loops, so contention here is acceptable.
type Manager struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	heap    jobHeap
	seq     uint64
	gates   map[string]*copier.Gate
	cancels map[string]context.CancelFunc

	notify  chan struct{}
	quit    chan struct{}
	wg      sync.WaitGroup
	started bool
	stopped bool

	workers        int
	retryAttempts  int
	retryBaseDelay time.Duration
	historyPath    string
	autoSave       bool
	renamePattern  string
	askFn          conflict.AskFunc
	bufferSize     int
	ignorePatterns []string

	tracker  *progress.Tracker
	verifier *verify.Verifier
	logger   zerolog.Logger
}

// 🏭 New creates a manager. Call Start to launch the worker pool.
func New(opts Options) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = 3
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 500 * time.Millisecond
	}
	if opts.RenamePattern == "" {
		opts.RenamePattern = conflict.DefaultRenamePattern
	}
	if opts.Tracker == nil {
		opts.Tracker = progress.NewTracker()
	}
	if opts.Verifier == nil {
		opts.Verifier = verify.New(verify.SHA256)
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Manager{
		jobs:           make(map[string]*Job),
		gates:          make(map[string]*copier.Gate),
		cancels:        make(map[string]context.CancelFunc),
		notify:         make(chan struct{}, 1),
		quit:           make(chan struct{}),
		workers:        opts.Workers,
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		historyPath:    opts.HistoryPath,
		autoSave:       opts.AutoSaveHistory,
		renamePattern:  opts.RenamePattern,
		askFn:          opts.AskFunc,
		bufferSize:     opts.BufferSize,
		ignorePatterns: opts.IgnorePatterns,
		tracker:        opts.Tracker,
		verifier:       opts.Verifier,
		logger:         logger,
	}
}

// Tracker exposes the progress tracker for callers that poll snapshots.
func (m *Manager) Tracker() *progress.Tracker {
	return m.tracker
}

// 🚀 Start launches the worker pool. Idempotent.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	m.wg.Add(m.workers)
	for i := 0; i < m.workers; i++ {
		go m.worker()
	}
}

// 📥 QueueCopy enqueues a copy job and returns its id immediately.
func (m *Manager) QueueCopy(sources, dests []string, priority Priority, opts JobOptions) (string, error) {
	return m.enqueue(KindCopy, sources, dests, priority, opts)
}

// 📥 QueueMove enqueues a move job.
func (m *Manager) QueueMove(sources, dests []string, priority Priority, opts JobOptions) (string, error) {
	return m.enqueue(KindMove, sources, dests, priority, opts)
}

// 📥 QueueVerify enqueues a verification job over source→copy pairs.
func (m *Manager) QueueVerify(sources, dests []string, priority Priority) (string, error) {
	return m.enqueue(KindVerify, sources, dests, priority, JobOptions{})
}

// 📥 QueueDelete enqueues a delete job over the given paths.
func (m *Manager) QueueDelete(sources []string, priority Priority) (string, error) {
	return m.enqueue(KindDelete, sources, nil, priority, JobOptions{})
}

func (m *Manager) enqueue(kind Kind, sources, dests []string, priority Priority, opts JobOptions) (string, error) {
	if len(sources) == 0 {
		return "", errors.Errorf("no source paths given")
	}
	if kind != KindDelete && len(sources) != len(dests) {
		return "", errors.Errorf("source and destination counts differ: %d vs %d", len(sources), len(dests))
	}

	job := &Job{
		ID:               uuid.NewString(),
		Kind:             kind,
		SourcePaths:      sources,
		DestPaths:        dests,
		Status:           StatusQueued,
		Priority:         priority,
		CreatedAt:        time.Now(),
		Verify:           opts.Verify,
		PreserveMetadata: opts.PreserveMetadata,
		ConflictPolicy:   opts.ConflictPolicy,
	}

	m.mu.Lock()
	job.seq = m.seq
	m.seq++
	m.jobs[job.ID] = job
	heap.Push(&m.heap, &queueItem{id: job.ID, priority: priority, seq: job.seq})
	m.mu.Unlock()

	m.logger.Debug().Str("job", job.ID).Str("kind", string(kind)).Int("priority", int(priority)).Msg("job queued")
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return job.ID, nil
}

// worker pulls queued jobs until the manager shuts down.
func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		job, ctx, gate, cancel := m.next()
		if job == nil {
			return
		}
		m.run(ctx, job, gate)
		cancel()
	}
}

// next claims the highest-priority queued job. The claim is a
// check-and-set under the manager lock, which is what guarantees at
// most one active execution per job id.
func (m *Manager) next() (*Job, context.Context, *copier.Gate, context.CancelFunc) {
	for {
		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			return nil, nil, nil, nil
		}
		for m.heap.Len() > 0 {
			item := heap.Pop(&m.heap).(*queueItem)
			job := m.jobs[item.id]
			if job == nil || job.Status != StatusQueued {
				continue // cancelled while queued
			}
			now := time.Now()
			job.Status = StatusInProgress
			job.StartedAt = &now
			gate := copier.NewGate()
			// Job lifetime is independent of the shutdown signal so a
			// drain can let in-flight work finish.
			ctx, cancel := context.WithCancel(m.logger.WithContext(context.Background()))
			m.gates[job.ID] = gate
			m.cancels[job.ID] = cancel
			m.mu.Unlock()
			return job, ctx, gate, cancel
		}
		m.mu.Unlock()

		select {
		case <-m.quit:
			return nil, nil, nil, nil
		case <-m.notify:
		}
	}
}

// run executes one job and applies its terminal transition.
func (m *Manager) run(ctx context.Context, job *Job, gate *copier.Gate) {
	defer func() {
		if r := recover(); r != nil {
			m.finish(ctx, job, StatusFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	m.logger.Info().Str("job", job.ID).Str("kind", string(job.Kind)).Msg("job started")
	err := m.dispatch(ctx, job, gate)

	switch {
	case ctx.Err() != nil || errors.Is(err, copier.ErrCancelled):
		m.finish(ctx, job, StatusCancelled, "")
	case err != nil:
		// Only an error escaping the whole backend call fails the job;
		// per-file failures live in the counters.
		m.finish(ctx, job, StatusFailed, err.Error())
	default:
		m.finish(ctx, job, StatusCompleted, "")
	}
}

func (m *Manager) finish(ctx context.Context, job *Job, status Status, errMsg string) {
	m.mu.Lock()
	now := time.Now()
	job.Status = status
	job.CompletedAt = &now
	job.Error = errMsg
	delete(m.gates, job.ID)
	if cancel, ok := m.cancels[job.ID]; ok {
		delete(m.cancels, job.ID)
		defer cancel()
	}
	m.mu.Unlock()

	m.tracker.FinishOperation(job.ID)
	m.logger.Info().Str("job", job.ID).Str("status", string(status)).
		Int("processed", job.ProcessedFiles).Int("failed", job.FailedFiles).Msg("job finished")

	if m.autoSave {
		if err := m.SaveHistory(); err != nil {
			m.logger.Warn().Err(err).Msg("could not save history")
		}
	}
}

func (m *Manager) dispatch(ctx context.Context, job *Job, gate *copier.Gate) error {
	switch job.Kind {
	case KindCopy, KindMove:
		return m.runTransfer(ctx, job, gate)
	case KindVerify:
		return m.runVerify(ctx, job, gate)
	case KindDelete:
		return m.runDelete(ctx, job, gate)
	default:
		return errors.Errorf("unknown job kind %q", string(job.Kind))
	}
}

// 🧱 workUnit is one file of a job after directory expansion.
type workUnit struct {
	src  string
	dst  string
	size int64
}

// expand resolves directory sources into per-file units and computes
// the job totals, premoved units included. Totals are frozen before
// the first byte moves.
func (m *Manager) expand(ctx context.Context, job *Job, sources, dests []string, createDirs bool, premoved []workUnit) ([]workUnit, []string, error) {
	var units []workUnit
	var dirSources []string

	for i, src := range sources {
		var dst string
		if i < len(dests) {
			dst = dests[i]
		}

		info, err := os.Stat(src)
		if err != nil {
			// Missing sources become per-file failures, not job failures.
			units = append(units, workUnit{src: src, dst: dst})
			continue
		}
		if !info.IsDir() {
			units = append(units, workUnit{src: src, dst: dst, size: info.Size()})
			continue
		}

		dirSources = append(dirSources, src)
		pairs, dirs, err := copier.EnumerateTree(ctx, src, dst, m.ignorePatterns)
		if err != nil {
			return nil, nil, err
		}
		if createDirs {
			for _, dir := range dirs {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return nil, nil, errors.Errorf("creating directory %s: %w", dir, err)
				}
			}
		}
		for _, pair := range pairs {
			var size int64
			if fi, err := os.Stat(pair.Source); err == nil {
				size = fi.Size()
			}
			units = append(units, workUnit{src: pair.Source, dst: pair.Dest, size: size})
		}
	}

	var total int64
	for _, u := range units {
		total += u.size
	}
	for _, u := range premoved {
		total += u.size
	}
	m.mu.Lock()
	job.TotalFiles = len(units) + len(premoved)
	job.TotalSize = total
	m.mu.Unlock()
	m.tracker.StartOperation(job.ID, job.TotalFiles, total)

	return units, dirSources, nil
}

// fastRenameDirs attempts a directory-level rename for each directory
// source of a move job. Renamed trees come back as already-finished
// units enumerated from the destination; everything else falls through
// to the per-file path.
func (m *Manager) fastRenameDirs(ctx context.Context, job *Job, mv *mover.Mover) (premoved []workUnit, sources, dests []string) {
	logger := zerolog.Ctx(ctx)

	for i, src := range job.SourcePaths {
		dst := job.DestPaths[i]
		info, err := os.Stat(src)
		if err != nil || !info.IsDir() || !mv.TryDirectoryRename(src, dst) {
			sources = append(sources, src)
			dests = append(dests, dst)
			continue
		}
		logger.Debug().Str("source", src).Str("dest", dst).Msg("directory moved by rename")
		pairs, _, err := copier.EnumerateTree(ctx, dst, dst, m.ignorePatterns)
		if err != nil {
			continue
		}
		for _, pair := range pairs {
			var size int64
			if fi, err := os.Stat(pair.Source); err == nil {
				size = fi.Size()
			}
			premoved = append(premoved, workUnit{src: pair.Source, dst: pair.Source, size: size})
		}
	}
	return premoved, sources, dests
}

// runTransfer executes copy and move jobs with per-file conflict
// resolution and an I/O-oriented fan-out. Files within one batch have
// no completion-order guarantee.
func (m *Manager) runTransfer(ctx context.Context, job *Job, gate *copier.Gate) error {
	resolver := conflict.NewResolver(job.ConflictPolicy,
		conflict.WithRenamePattern(m.renamePattern),
		conflict.WithAskFunc(m.askFn),
	)
	c := copier.New(m.verifier, copier.WithGate(gate))
	mv := mover.New(c)
	opts := copier.Options{
		Verify:           job.Verify,
		PreserveMetadata: job.PreserveMetadata,
		BufferSize:       m.bufferSize,
		IgnorePatterns:   m.ignorePatterns,
	}

	sources, dests := job.SourcePaths, job.DestPaths
	var premoved []workUnit
	if job.Kind == KindMove {
		premoved, sources, dests = m.fastRenameDirs(ctx, job, mv)
	}

	units, dirSources, err := m.expand(ctx, job, sources, dests, true, premoved)
	if err != nil {
		return err
	}

	for _, u := range premoved {
		m.tracker.StartFile(job.ID, u.dst, u.size)
		m.tracker.UpdateFile(job.ID, u.dst, u.size)
		m.fileDone(job, u.dst, u.size, nil)
	}

	g := new(errgroup.Group)
	g.SetLimit(copier.IOWorkers())
	for _, u := range units {
		u := u
		g.Go(func() error {
			m.transferOne(ctx, job, resolver, c, mv, u, opts)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // per-file outcomes live in the job counters

	for _, dir := range dirSources {
		if job.Kind == KindMove && ctx.Err() == nil {
			mover.PruneEmptyDirs(ctx, dir)
		}
	}

	if err := ctx.Err(); err != nil {
		return errors.Errorf("%w: %w", copier.ErrCancelled, err)
	}
	return nil
}

func (m *Manager) transferOne(ctx context.Context, job *Job, resolver *conflict.Resolver, c *copier.Copier, mv *mover.Mover, u workUnit, opts copier.Options) {
	res, err := resolver.Resolve(u.src, u.dst)
	if err != nil {
		m.tracker.StartFile(job.ID, u.dst, u.size)
		m.fileDone(job, u.dst, u.size, err)
		return
	}

	dst := u.dst
	if res.Action == conflict.ActionRename {
		dst = res.RenamedPath
	}
	m.tracker.StartFile(job.ID, dst, u.size)

	if res.Action == conflict.ActionSkip {
		// Skipped bytes count as processed so the operation can reach
		// completion.
		m.tracker.UpdateFile(job.ID, dst, u.size)
		m.fileDone(job, dst, u.size, nil)
		return
	}

	cb := func(done, total int64) {
		m.tracker.UpdateFile(job.ID, dst, done)
	}

	switch job.Kind {
	case KindMove:
		err = mv.MoveFile(ctx, u.src, dst, cb, opts)
	default:
		// Retries apply only to the copy step.
		_, err = c.CopyFileWithRetry(ctx, u.src, dst, cb, opts, m.retryAttempts, m.retryBaseDelay)
	}
	m.fileDone(job, dst, u.size, err)
}

// runVerify checks each source→destination pair on the CPU-bound pool.
// The pause gate is consulted at file boundaries.
func (m *Manager) runVerify(ctx context.Context, job *Job, gate *copier.Gate) error {
	units, _, err := m.expand(ctx, job, job.SourcePaths, job.DestPaths, false, nil)
	if err != nil {
		return err
	}

	g := new(errgroup.Group)
	g.SetLimit(m.verifier.Workers())
	for _, u := range units {
		u := u
		g.Go(func() error {
			if err := gate.Wait(ctx); err != nil {
				m.tracker.StartFile(job.ID, u.dst, u.size)
				m.fileDone(job, u.dst, u.size, errors.Errorf("%w: %w", copier.ErrCancelled, err))
				return nil
			}
			m.tracker.StartFile(job.ID, u.dst, u.size)
			verr := m.verifier.VerifyCopy(ctx, u.src, u.dst)
			if verr == nil {
				m.tracker.UpdateFile(job.ID, u.dst, u.size)
			}
			m.fileDone(job, u.dst, u.size, verr)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // per-file outcomes live in the job counters

	if err := ctx.Err(); err != nil {
		return errors.Errorf("%w: %w", copier.ErrCancelled, err)
	}
	return nil
}

// runDelete removes files then prunes the emptied source trees. The
// pause gate is consulted before each removal.
func (m *Manager) runDelete(ctx context.Context, job *Job, gate *copier.Gate) error {
	var units []workUnit
	var dirSources []string

	for _, src := range job.SourcePaths {
		info, err := os.Stat(src)
		if err != nil {
			units = append(units, workUnit{src: src, dst: src})
			continue
		}
		if !info.IsDir() {
			units = append(units, workUnit{src: src, dst: src, size: info.Size()})
			continue
		}
		dirSources = append(dirSources, src)
		walkErr := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			var size int64
			if fi, err := d.Info(); err == nil {
				size = fi.Size()
			}
			units = append(units, workUnit{src: path, dst: path, size: size})
			return nil
		})
		if walkErr != nil {
			return errors.Errorf("enumerating %s: %w", src, walkErr)
		}
	}

	var total int64
	for _, u := range units {
		total += u.size
	}
	m.mu.Lock()
	job.TotalFiles = len(units)
	job.TotalSize = total
	m.mu.Unlock()
	m.tracker.StartOperation(job.ID, len(units), total)

	for _, u := range units {
		if err := gate.Wait(ctx); err != nil {
			return errors.Errorf("%w: %w", copier.ErrCancelled, err)
		}
		m.tracker.StartFile(job.ID, u.dst, u.size)
		err := os.Remove(u.src)
		if err == nil {
			m.tracker.UpdateFile(job.ID, u.dst, u.size)
		}
		m.fileDone(job, u.dst, u.size, err)
	}

	for _, dir := range dirSources {
		if err := os.RemoveAll(dir); err != nil {
			m.logger.Warn().Str("dir", dir).Err(err).Msg("could not remove source directory")
		}
	}
	return nil
}

// fileDone folds one file outcome into the job counters. Cancelled
// files count neither as processed nor as failed.
func (m *Manager) fileDone(job *Job, path string, size int64, err error) {
	m.tracker.FinishFile(job.ID, path, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case err == nil:
		job.ProcessedFiles++
		job.ProcessedSize += size
	case errors.Is(err, copier.ErrCancelled):
	default:
		job.FailedFiles++
	}
}

// ⏸️ Pause suspends an in-progress job at its next chunk boundary.
func (m *Manager) Pause(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != StatusInProgress {
		return false
	}
	job.Status = StatusPaused
	if gate := m.gates[id]; gate != nil {
		gate.Pause()
	}
	m.tracker.Pause(id)
	return true
}

// ▶️ Resume releases a paused job.
func (m *Manager) Resume(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != StatusPaused {
		return false
	}
	job.Status = StatusInProgress
	if gate := m.gates[id]; gate != nil {
		gate.Resume()
	}
	m.tracker.Resume(id)
	return true
}

// 🛑 Cancel cancels a queued or running job. Cancellation of running
// work is cooperative: the copy loop observes it at the next chunk
// boundary and cleans up its partial destination.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return false
	}
	switch job.Status {
	case StatusQueued:
		now := time.Now()
		job.Status = StatusCancelled
		job.CompletedAt = &now
		return true
	case StatusInProgress, StatusPaused:
		if cancel := m.cancels[id]; cancel != nil {
			cancel()
		}
		if gate := m.gates[id]; gate != nil {
			gate.Resume() // unblock waiters so they can observe the cancel
		}
		if job.Status == StatusPaused {
			m.tracker.Resume(id)
		}
		return true
	default:
		return false
	}
}

// 🔍 Job returns a copy of the job record.
func (m *Manager) Job(id string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// 📋 ActiveJobs lists in-progress and paused jobs.
func (m *Manager) ActiveJobs() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Job
	for _, job := range m.jobs {
		if job.Status == StatusInProgress || job.Status == StatusPaused {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// 📋 QueuedJobs lists queued jobs in dispatch order.
func (m *Manager) QueuedJobs() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Job
	for _, job := range m.jobs {
		if job.Status == StatusQueued {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// 📊 Progress returns a snapshot of a job's progress.
func (m *Manager) Progress(id string) (progress.Snapshot, bool) {
	return m.tracker.Snapshot(id)
}

// 🛑 Shutdown stops dispatching new jobs. With wait it blocks until
// in-flight workers drain (bounded by ctx), then flushes history.
func (m *Manager) Shutdown(ctx context.Context, wait bool) error {
	m.mu.Lock()
	alreadyStopped := m.stopped
	m.stopped = true
	m.mu.Unlock()
	if !alreadyStopped {
		close(m.quit)
	}

	if wait {
		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return errors.Errorf("waiting for workers: %w", ctx.Err())
		}
	}

	if m.historyPath != "" {
		return m.SaveHistory()
	}
	return nil
}
