/*
 * Copyright (c) CERN 2016
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package perf

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type (
	// Marker holds data indicating the progress of a paced engine
	Marker struct {
		Timestamp time.Time `json:"timestamp"`
		Engine    string    `json:"engine"`
		Started   time.Time `json:"started"`
		// Throughput so far, in Gbit/s
		Throughput       float64 `json:"throughput"`
		TransferredBytes uint64  `json:"transferred"`
		LateBytes        uint64  `json:"late"`
		Done             bool    `json:"done"`
	}

	// Progress is updated by one running engine
	Progress struct {
		name        string
		started     atomic.Int64
		transferred atomic.Uint64
		late        atomic.Uint64
		finished    atomic.Int64
	}

	// Board holds the progress of all the engines of a process
	Board struct {
		mutex   sync.Mutex
		entries map[string]*Progress
	}
)

// NewBoard creates an empty board
func NewBoard() *Board {
	return &Board{entries: make(map[string]*Progress)}
}

// Register adds a new engine to the board. Registering the same name twice
// returns the existing entry.
func (b *Board) Register(name string) *Progress {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if p, ok := b.entries[name]; ok {
		return p
	}
	p := &Progress{name: name}
	b.entries[name] = p
	return p
}

// Snapshot returns the markers of all the registered engines, sorted by name
func (b *Board) Snapshot() []Marker {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	now := time.Now()
	markers := make([]Marker, 0, len(b.entries))
	for _, p := range b.entries {
		markers = append(markers, p.marker(now))
	}
	sort.Slice(markers, func(i, j int) bool {
		return markers[i].Engine < markers[j].Engine
	})
	return markers
}

// Start marks the engine as running
func (p *Progress) Start(t time.Time) {
	p.started.Store(t.UnixNano())
}

// Add accounts for one processed block
func (p *Progress) Add(bytes uint64, late bool) {
	p.transferred.Add(bytes)
	if late {
		p.late.Add(bytes)
	}
}

// Finish marks the engine as done. The throughput stays the one at this time.
func (p *Progress) Finish() {
	p.finished.Store(time.Now().UnixNano())
}

func (p *Progress) marker(now time.Time) Marker {
	m := Marker{
		Timestamp:        now,
		Engine:           p.name,
		TransferredBytes: p.transferred.Load(),
		LateBytes:        p.late.Load(),
	}
	end := now
	if finished := p.finished.Load(); finished != 0 {
		m.Done = true
		end = time.Unix(0, finished)
	}
	if started := p.started.Load(); started != 0 {
		m.Started = time.Unix(0, started)
		if elapsed := end.Sub(m.Started).Seconds(); elapsed > 0 {
			m.Throughput = float64(m.TransferredBytes) * 8 / elapsed / 1e9
		}
	}
	return m
}
