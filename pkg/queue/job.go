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

package queue

import (
	"time"

	"github.com/walteh/fileops/pkg/conflict"
)

// 🏷️ Kind is the type of work a job performs.
type Kind string

const (
	KindCopy   Kind = "copy"
	KindMove   Kind = "move"
	KindDelete Kind = "delete"
	KindVerify Kind = "verify"
)

// 🔢 Priority orders job dispatch. Lower values dequeue first.
type Priority int

const (
	PriorityCritical Priority = 0
	PriorityHigh     Priority = 1
	PriorityNormal   Priority = 2
	PriorityLow      Priority = 3
)

// 📊 Status is a job's position in its state machine:
// queued → in_progress ⇄ paused, in_progress → completed|failed|cancelled,
// queued → cancelled.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// 📦 Job is one queued unit of work covering one or more
// source→destination path pairs. Its JSON form is the history record.
type Job struct {
	ID          string     `json:"operation_id"`
	Kind        Kind       `json:"operation_type"`
	SourcePaths []string   `json:"source_paths"`
	DestPaths   []string   `json:"dest_paths"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	Verify           bool            `json:"verify"`
	PreserveMetadata bool            `json:"preserve_metadata"`
	ConflictPolicy   conflict.Action `json:"conflict_action"`

	TotalSize      int64 `json:"total_size"`
	ProcessedSize  int64 `json:"processed_size"`
	TotalFiles     int   `json:"total_files"`
	ProcessedFiles int   `json:"processed_files"`
	FailedFiles    int   `json:"failed_files"`

	// seq breaks priority ties so equal-priority jobs dispatch FIFO.
	seq uint64
}

// 🗂️ queueItem is the heap entry for one queued job.
type queueItem struct {
	id       string
	priority Priority
	seq      uint64
}

// ⛰️ jobHeap orders by priority, then by submission sequence. The
// explicit sequence tie-break is what guarantees FIFO among equal
// priorities.
type jobHeap []*queueItem

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) {
	*h = append(*h, x.(*queueItem))
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
