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

// Package engine runs transfer operations on a block of memory, holding
// them to a target bit rate with absolute deadlines.
package engine

import (
	"context"
	"fmt"
	"github.com/CedricDViou/cobalt2-compliance/timing"
	"github.com/CedricDViou/cobalt2-compliance/transfer"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/types/perf"
	log "github.com/sirupsen/logrus"
	"time"
)

type (
	// Params defines the configuration for an engine
	Params struct {
		Config bench.TransferConfig
		// Barrier all the engines meet at before starting. Optional.
		Barrier *Barrier
		// Stop is shared by the engines of the same scope. Optional.
		Stop *StopSignal
		// Progress is updated after every block. Optional.
		Progress *perf.Progress

		Station, Stage int
	}

	// Engine is one paced transfer. It owns its buffers.
	Engine struct {
		params   Params
		op       transfer.Operation
		src, dst []int32
	}
)

// New validates the configuration and allocates the buffers of the engine.
// Placement must already be applied to the calling thread, so the buffers
// land on the intended node.
func New(params Params) (*Engine, error) {
	if err := params.Config.Validate(); err != nil {
		return nil, err
	}
	op, err := transfer.New(params.Config.Kind, params.Config.ChunkElements)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		params: params,
		op:     op,
		src:    make([]int32, params.Config.Elements()),
		dst:    make([]int32, params.Config.Elements()),
	}
	// Touch every page now, so allocation happens before the measurement
	transfer.Write{}.Apply(nil, e.src)
	transfer.Write{}.Apply(nil, e.dst)
	return e, nil
}

// Label returns the description of the stage being run
func (e *Engine) Label() string {
	return e.params.Config.Label
}

func (e *Engine) stopped(ctx context.Context) bool {
	if e.params.Stop != nil && e.params.Stop.Raised() {
		return true
	}
	return ctx.Err() != nil
}

// Run waits for all the engines at the barrier, then processes blocks until
// the configured volume is done, the stop signal is raised, or ctx is done.
// Missed deadlines are counted, never retried.
func (e *Engine) Run(ctx context.Context) (bench.Report, error) {
	cfg := &e.params.Config
	l := log.WithFields(log.Fields{
		"station": e.params.Station,
		"stage":   e.params.Stage,
	})

	if e.params.Barrier != nil {
		if err := e.params.Barrier.ArriveAndWait(); err != nil {
			return bench.Report{}, fmt.Errorf("%s: %w", cfg.Label, err)
		}
	}
	l.Debug("Starting ", cfg.Label)

	var offset, late uint64
	var timer timing.Timer

	origin := timing.Now()
	started := time.Now()
	if e.params.Progress != nil {
		e.params.Progress.Start(started)
	}

	timer.Start()
	for !e.stopped(ctx) && offset < cfg.TotalBytes {
		offset += cfg.BlockSize

		isLate, err := timing.WaitUntilContext(ctx, timing.Deadline(origin, offset, cfg.RateBps))
		if err != nil {
			offset -= cfg.BlockSize
			break
		}
		if isLate {
			late += cfg.BlockSize
		}

		e.op.Apply(e.src, e.dst)

		if e.params.Progress != nil {
			e.params.Progress.Add(cfg.BlockSize, isLate)
		}
	}
	timer.Stop()

	// Let the others bail early, so only overlapping speeds are measured
	if e.params.Stop != nil && e.params.Stop.Raise() {
		l.Debug("First to finish: ", cfg.Label)
	}
	if e.params.Progress != nil {
		e.params.Progress.Finish()
	}

	report := bench.Report{
		Label:       cfg.Label,
		Kind:        cfg.Kind,
		Station:     e.params.Station,
		Stage:       e.params.Stage,
		DesiredGbps: cfg.DesiredGbps(),
		Multiplier:  e.op.Multiplier(),
		Bytes:       offset,
		Seconds:     timer.Seconds(),
		Started:     started,
	}
	if report.Seconds > 0 {
		report.Gbps = float64(offset) / report.Seconds / bench.GBPS
	}
	if offset > 0 {
		report.LatePerc = 100.0 * float64(late) / float64(offset)
	}

	l.WithFields(log.Fields{
		"gbps": report.Gbps,
		"late": report.LatePerc,
	}).Infof("%-5s (%s): Ran for %.2fs at %.2f Gbit/s, %.2f%% late.",
		cfg.Kind.Short(), cfg.Label, report.Seconds, report.Gbps, report.LatePerc)

	return report, nil
}
