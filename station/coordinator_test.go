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

package station

import (
	"context"
	"errors"
	"github.com/CedricDViou/cobalt2-compliance/transfer"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/types/perf"
	"sync"
	"testing"
	"time"
)

type fakePlacement struct {
	nodes   int
	failOn  int
	mutex   sync.Mutex
	binds   map[int]int
	failErr error
}

func newFakePlacement(nodes int) *fakePlacement {
	return &fakePlacement{nodes: nodes, failOn: -1, binds: make(map[int]int)}
}

func (p *fakePlacement) NodeCount() int {
	return p.nodes
}

func (p *fakePlacement) BindToNode(node int) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if node == p.failOn {
		return p.failErr
	}
	p.binds[node]++
	return nil
}

const block = 64 * 1024

func testStages() []bench.TransferConfig {
	return []bench.TransferConfig{
		{Label: "write", Kind: transfer.KindWrite, TotalBytes: 4 * block, BlockSize: block, RateBps: 1e8},
		{Label: "copy", Kind: transfer.KindCopy, TotalBytes: 8 * block, BlockSize: block, RateBps: 1e8},
		{Label: "xpose", Kind: transfer.KindTranspose, TotalBytes: 8 * block, BlockSize: block, RateBps: 1e8, ChunkElements: 1024},
	}
}

func TestRoundRobinPlacement(t *testing.T) {
	policy := newFakePlacement(2)
	board := perf.NewBoard()
	c := &Coordinator{Stations: 3, Stages: testStages(), Placement: policy, Board: board}

	reports, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 9 {
		t.Fatal("Expecting 9 reports, got ", len(reports))
	}
	// Stations 0 and 2 on node 0, station 1 on node 1
	if policy.binds[0] != 6 || policy.binds[1] != 3 {
		t.Error("Unexpected placement ", policy.binds)
	}
	if reports[0].Station != 0 || reports[0].Stage != 0 || reports[8].Station != 2 || reports[8].Stage != 2 {
		t.Error("Reports must be sorted by station and stage")
	}
	if len(board.Snapshot()) != 9 {
		t.Error("Every engine must be on the board")
	}
}

func TestStopIsPerStation(t *testing.T) {
	c := &Coordinator{Stations: 2, Stages: testStages(), Placement: newFakePlacement(1)}
	reports, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range reports {
		// The write stage finishes first and stops the others of its station
		if r.Stage != 0 && r.Bytes > 6*block {
			t.Errorf("Station %d stage %d did not stop early: %d blocks", r.Station, r.Stage, r.Bytes/block)
		}
		if r.Stage == 0 && r.Bytes != 4*block {
			t.Errorf("Station %d: the first finisher must complete its volume", r.Station)
		}
	}
}

func TestStartTogether(t *testing.T) {
	c := &Coordinator{Stations: 4, Stages: testStages(), Placement: newFakePlacement(2)}
	reports, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	first, last := reports[0].Started, reports[0].Started
	for _, r := range reports {
		if r.Started.Before(first) {
			first = r.Started
		}
		if r.Started.After(last) {
			last = r.Started
		}
	}
	if spread := last.Sub(first); spread > 20*time.Millisecond {
		t.Error("Engines started too far apart: ", spread)
	}
}

func TestSetupFailureAborts(t *testing.T) {
	policy := newFakePlacement(2)
	policy.failOn = 1
	policy.failErr = errors.New("no such node")
	c := &Coordinator{Stations: 2, Stages: testStages(), Placement: policy}

	done := make(chan error)
	go func() {
		_, err := c.Run(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, policy.failErr) {
			t.Error("Expecting the bind error, got ", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("A setup failure must not deadlock the other engines")
	}
}

func TestValidate(t *testing.T) {
	c := &Coordinator{Stations: 0, Stages: testStages(), Placement: newFakePlacement(1)}
	if err := c.Validate(); err != ErrNoStations {
		t.Error("Expecting ErrNoStations, got ", err)
	}
	c.Stations = 1
	c.Stages[0].RateBps = 0
	if err := c.Validate(); !errors.Is(err, bench.ErrNoRate) {
		t.Error("Expecting ErrNoRate, got ", err)
	}
}

func TestSummaryOfRun(t *testing.T) {
	c := &Coordinator{Stations: 1, Stages: testStages()[:1], Placement: newFakePlacement(1)}
	reports, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	s := bench.Summarize(reports)
	if s.DesiredGbps != 0.1 || s.Count != 1 {
		t.Error("Unexpected summary ", s)
	}
}
