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
	"context"
	"sync"
)

// 🚧 Gate is a pause point checked at each buffer-chunk boundary.
// Waiters block while the gate is paused and resume cleanly when it is
// released. The channel-swap pattern lets any number of waiters wake on
// a single Resume.
type Gate struct {
	mu     sync.Mutex
	paused bool
	ch     chan struct{}
}

// 🏭 NewGate creates an open gate.
func NewGate() *Gate {
	ch := make(chan struct{})
	close(ch) // start unpaused
	return &Gate{ch: ch}
}

// ⏸️ Pause closes the gate. No-op if already paused.
func (g *Gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		return
	}
	g.paused = true
	g.ch = make(chan struct{})
}

// ▶️ Resume opens the gate and wakes all waiters. No-op if open.
func (g *Gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		return
	}
	g.paused = false
	close(g.ch)
}

// Paused reports whether the gate is currently closed.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// ⏳ Wait blocks while the gate is paused. It returns early with the
// context's error if ctx is cancelled during the wait.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
