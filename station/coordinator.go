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

// Package station runs the pipeline stages of many simulated stations
// concurrently, each station placed on its own NUMA node.
package station

import (
	"context"
	"errors"
	"fmt"
	"github.com/CedricDViou/cobalt2-compliance/engine"
	"github.com/CedricDViou/cobalt2-compliance/placement"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/types/perf"
	log "github.com/sirupsen/logrus"
	"runtime"
	"sync"
)

type (
	// Coordinator runs Stations x len(Stages) paced engines
	Coordinator struct {
		Stations  int
		Stages    []bench.TransferConfig
		Placement placement.Policy
		// Board receives the progress of every engine. Optional.
		Board *perf.Board
	}

	result struct {
		report bench.Report
		err    error
	}
)

var (
	// ErrNoStations is returned when there is nothing to run
	ErrNoStations = errors.New("At least one station and one stage are required")
)

// Validate checks the coordinator can run
func (c *Coordinator) Validate() error {
	if c.Stations <= 0 || len(c.Stages) == 0 {
		return ErrNoStations
	}
	if c.Placement == nil || c.Placement.NodeCount() <= 0 {
		return placement.ErrUnavailable
	}
	for i := range c.Stages {
		if err := c.Stages[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// NodeFor returns the node a station runs on
func (c *Coordinator) NodeFor(station int) int {
	return station % c.Placement.NodeCount()
}

// Run starts all the engines together, and waits for all of them.
// Each station has its own stop signal, so a slow station does not cut the
// measurement of another one.
// Any setup failure aborts the whole run.
func (c *Coordinator) Run(ctx context.Context) ([]bench.Report, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	nEngines := c.Stations * len(c.Stages)
	barrier := engine.NewBarrier(nEngines)
	results := make(chan result, nEngines)

	log.Infof("Detected %d NUMA nodes.", c.Placement.NodeCount())
	log.Infof("Using %d threads.", nEngines)

	var wg sync.WaitGroup
	for station := 0; station < c.Stations; station++ {
		stop := &engine.StopSignal{}
		node := c.NodeFor(station)
		for stage := range c.Stages {
			wg.Add(1)
			go func(station, stage int) {
				defer wg.Done()
				report, err := c.runEngine(ctx, barrier, stop, node, station, stage)
				results <- result{report, err}
			}(station, stage)
		}
	}
	wg.Wait()
	close(results)

	reports := make([]bench.Report, 0, nEngines)
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		reports = append(reports, r.report)
	}
	if firstErr != nil {
		return nil, firstErr
	}

	bench.SortReports(reports)
	return reports, nil
}

// runEngine binds the current thread, allocates and runs one engine.
// The thread is never unlocked: it exits with the goroutine, and its
// binding with it.
func (c *Coordinator) runEngine(ctx context.Context, barrier *engine.Barrier, stop *engine.StopSignal,
	node, station, stage int) (bench.Report, error) {
	runtime.LockOSThread()

	cfg := c.Stages[stage]
	l := log.WithFields(log.Fields{"station": station, "stage": stage, "node": node})

	if err := c.Placement.BindToNode(node); err != nil {
		err = fmt.Errorf("station %d: %w", station, err)
		barrier.Abort(err)
		return bench.Report{}, err
	}

	l.Debug("Initialising ", cfg.Label)
	params := engine.Params{
		Config:  cfg,
		Barrier: barrier,
		Stop:    stop,
		Station: station,
		Stage:   stage,
	}
	if c.Board != nil {
		params.Progress = c.Board.Register(fmt.Sprintf("%02d/%02d %s", station, stage, cfg.Label))
	}

	e, err := engine.New(params)
	if err != nil {
		err = fmt.Errorf("station %d: %w", station, err)
		barrier.Abort(err)
		return bench.Report{}, err
	}
	return e.Run(ctx)
}
