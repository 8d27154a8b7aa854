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
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"gitlab.com/tozd/go/errors"
)

// 💾 SaveHistory writes all terminal jobs to the history file as a JSON
// array, oldest first. The write goes through a temp file and rename so
// a crash never leaves a torn history.
func (m *Manager) SaveHistory() error {
	if m.historyPath == "" {
		return nil
	}

	m.mu.Lock()
	records := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if job.Status.Terminal() {
			records = append(records, *job)
		}
	}
	m.mu.Unlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Errorf("encoding history: %w", err)
	}

	dir := filepath.Dir(m.historyPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Errorf("creating history directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return errors.Errorf("creating temp history file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Errorf("writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Errorf("closing history file: %w", err)
	}
	if err := os.Rename(tmpName, m.historyPath); err != nil {
		os.Remove(tmpName)
		return errors.Errorf("replacing history file: %w", err)
	}
	return nil
}

// 📖 LoadHistory merges the persisted history into the job map. Only
// terminal records load; a live job with the same id wins.
func (m *Manager) LoadHistory() error {
	if m.historyPath == "" {
		return nil
	}
	data, err := os.ReadFile(m.historyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Errorf("reading history: %w", err)
	}

	var records []Job
	if err := json.Unmarshal(data, &records); err != nil {
		return errors.Errorf("decoding history %s: %w", m.historyPath, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range records {
		record := records[i]
		if !record.Status.Terminal() {
			continue
		}
		if _, exists := m.jobs[record.ID]; exists {
			continue
		}
		m.jobs[record.ID] = &record
	}
	return nil
}

// 📜 History returns terminal jobs, newest first.
func (m *Manager) History() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Job
	for _, job := range m.jobs {
		if job.Status.Terminal() {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// 🧹 ClearHistory drops all terminal jobs and their progress records,
// then rewrites the history file. Returns the number cleared.
func (m *Manager) ClearHistory() (int, error) {
	m.mu.Lock()
	var cleared []string
	for id, job := range m.jobs {
		if job.Status.Terminal() {
			cleared = append(cleared, id)
		}
	}
	for _, id := range cleared {
		delete(m.jobs, id)
	}
	m.mu.Unlock()

	for _, id := range cleared {
		m.tracker.Remove(id)
	}
	if err := m.SaveHistory(); err != nil {
		return len(cleared), err
	}
	return len(cleared), nil
}
