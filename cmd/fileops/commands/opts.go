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

// Package commands holds the fileops subcommands.
package commands

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/walteh/fileops/pkg/config"
	"github.com/walteh/fileops/pkg/log"
	"github.com/walteh/fileops/pkg/progress"
	"github.com/walteh/fileops/pkg/queue"
	"github.com/walteh/fileops/pkg/verify"
	"gitlab.com/tozd/go/errors"
)

// 🎛️ RootOpts carries the shared dependencies of all subcommands.
type RootOpts struct {
	Config *config.Config
	Logger *log.Logger
}

// NewRootOpts creates uninitialized options. Init runs after flag
// parsing, so commands always see the loaded config.
func NewRootOpts() *RootOpts {
	return &RootOpts{
		Config: config.Default(),
		Logger: log.New(os.Stdout, zerolog.InfoLevel),
	}
}

// Init loads the config file and configures logging.
func (o *RootOpts) Init(ctx context.Context, configFile string, debug bool) error {
	if configFile != "" {
		cfg, err := config.Load(ctx, configFile)
		if err != nil {
			return errors.Errorf("loading config: %w", err)
		}
		o.Config = cfg
	}

	level, err := zerolog.ParseLevel(o.Config.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if debug {
		level = zerolog.DebugLevel
		pterm.EnableDebugMessages()
	}
	o.Logger = log.New(os.Stdout, level)
	return nil
}

// newManager builds a queue manager from the loaded config.
func (o *RootOpts) newManager() (*queue.Manager, error) {
	delay, err := o.Config.RetryDelayDuration()
	if err != nil {
		return nil, err
	}
	mgr := queue.New(queue.Options{
		Workers:         o.Config.Workers,
		RetryAttempts:   o.Config.RetryAttempts,
		RetryBaseDelay:  delay,
		HistoryPath:     o.Config.HistoryPath,
		AutoSaveHistory: o.Config.AutoSaveHistory,
		RenamePattern:   o.Config.RenamePattern,
		BufferSize:      o.Config.BufferSize,
		IgnorePatterns:  o.Config.IgnorePatterns,
		Verifier:        verify.New(o.Config.Algorithm()),
	})
	if err := mgr.LoadHistory(); err != nil {
		return nil, err
	}
	return mgr, nil
}

// parsePriority maps the --priority flag to a queue priority.
func parsePriority(s string) (queue.Priority, error) {
	switch s {
	case "critical":
		return queue.PriorityCritical, nil
	case "high":
		return queue.PriorityHigh, nil
	case "normal", "":
		return queue.PriorityNormal, nil
	case "low":
		return queue.PriorityLow, nil
	}
	return queue.PriorityNormal, errors.Errorf("unknown priority %q (want critical, high, normal, or low)", s)
}

// expandPairs applies cp-style destination semantics: a single source
// may target the destination path directly; multiple sources always
// land inside it.
func expandPairs(sources []string, dest string) ([]string, []string, error) {
	if len(sources) == 0 {
		return nil, nil, errors.Errorf("no source paths given")
	}

	destInfo, destErr := os.Stat(dest)
	intoDir := destErr == nil && destInfo.IsDir()

	if len(sources) == 1 && !intoDir {
		return sources, []string{dest}, nil
	}

	dests := make([]string, len(sources))
	for i, src := range sources {
		dests[i] = filepath.Join(dest, filepath.Base(src))
	}
	return sources, dests, nil
}

// watchJob renders a progress bar until the job reaches a terminal
// status, then returns the final record.
func watchJob(ctx context.Context, mgr *queue.Manager, id string) (queue.Job, error) {
	bar, err := pterm.DefaultProgressbar.
		WithTotal(100).
		WithTitle("working").
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		bar = nil
	}

	lastPercent := 0
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		job, ok := mgr.Job(id)
		if !ok {
			return queue.Job{}, errors.Errorf("job %s disappeared", id)
		}

		if bar != nil {
			if snap, ok := mgr.Progress(id); ok && snap.TotalSize > 0 {
				percent := int(float64(snap.CopiedSize) / float64(snap.TotalSize) * 100)
				if percent > 100 {
					percent = 100
				}
				if percent > lastPercent {
					bar.Add(percent - lastPercent)
					lastPercent = percent
				}
				bar.UpdateTitle(formatRate(snap.Speed, snap.ETA))
			}
		}

		if job.Status.Terminal() {
			if bar != nil {
				bar.Add(100 - lastPercent)
				bar.Stop() //nolint:errcheck // rendering only
			}
			return job, nil
		}

		select {
		case <-ctx.Done():
			mgr.Cancel(id)
		case <-ticker.C:
		}
	}
}

func formatRate(speed float64, eta time.Duration) string {
	if speed <= 0 {
		return "working"
	}
	return pterm.Sprintf("%s/s, %s left", humanBytes(int64(speed)), eta.Round(time.Second))
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return pterm.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return pterm.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// fileOutcome maps a tracked file record to its console outcome line.
func fileOutcome(kind queue.Kind, fp progress.FileProgress) log.FileOperation {
	op := log.FileOperation{Path: fp.Path, Size: fp.Size}
	if fp.Err != nil {
		op.Outcome = log.OutcomeFailed
		op.Detail = fp.Err.Error()
		return op
	}
	switch kind {
	case queue.KindMove:
		op.Outcome = log.OutcomeMoved
	case queue.KindVerify:
		op.Outcome = log.OutcomeVerified
	case queue.KindDelete:
		op.Outcome = log.OutcomeDeleted
	default:
		op.Outcome = log.OutcomeCopied
	}
	return op
}

// reportFiles prints the per-file section for a finished job.
func (o *RootOpts) reportFiles(ctx context.Context, mgr *queue.Manager, job queue.Job) {
	var dest string
	if len(job.DestPaths) > 0 {
		dest = job.DestPaths[0]
	}

	o.Logger.LogNewline()
	o.Logger.StartJob(ctx, log.JobOperation{
		ID:          job.ID,
		Kind:        string(job.Kind),
		Destination: dest,
		TotalFiles:  job.TotalFiles,
	})
	for _, fp := range mgr.Tracker().Files(job.ID) {
		o.Logger.LogFileOperation(ctx, fileOutcome(job.Kind, fp))
	}
	o.Logger.EndJob(ctx)
	o.Logger.LogNewline()
}

// reportJob prints the terminal summary for a finished job.
func (o *RootOpts) reportJob(job queue.Job) error {
	switch job.Status {
	case queue.StatusCompleted:
		if job.FailedFiles > 0 {
			o.Logger.Warningf("%s finished: %d/%d files done, %d failed",
				string(job.Kind), job.ProcessedFiles, job.TotalFiles, job.FailedFiles)
			return errors.Errorf("%d of %d files failed", job.FailedFiles, job.TotalFiles)
		}
		o.Logger.Successf("%s finished: %d files, %s",
			string(job.Kind), job.ProcessedFiles, humanBytes(job.ProcessedSize))
		return nil
	case queue.StatusCancelled:
		o.Logger.Warningf("%s cancelled after %d of %d files", string(job.Kind), job.ProcessedFiles, job.TotalFiles)
		return nil
	default:
		return errors.Errorf("%s failed: %s", string(job.Kind), job.Error)
	}
}

// runJob queues one job, waits for it, flushes history, and reports.
func (o *RootOpts) runJob(ctx context.Context, mgr *queue.Manager, id string) error {
	mgr.Start()
	job, err := watchJob(ctx, mgr, id)
	if err != nil {
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mgr.Shutdown(shutdownCtx, true); err != nil {
		o.Logger.Warningf("saving history: %v", err)
	}

	o.reportFiles(ctx, mgr, job)
	return o.reportJob(job)
}
