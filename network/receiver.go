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

package network

import (
	"context"
	"fmt"
	"github.com/CedricDViou/cobalt2-compliance/engine"
	"github.com/CedricDViou/cobalt2-compliance/timing"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/types/perf"
	log "github.com/sirupsen/logrus"
)

type (
	// Receiver drains one endpoint as fast as it can
	Receiver struct {
		Params   Params
		Port     int
		Endpoint Endpoint
		// Barrier all the receivers meet at before starting. Optional.
		Barrier *engine.Barrier
		// Progress is updated after every batch. Optional.
		Progress *perf.Progress
	}
)

// Run waits for a first message, which sets the baseline packet number, and
// then does Params.Batches batch receives. The baseline is not counted.
// Cancelling ctx closes the endpoint, so a blocked receive returns.
func (r *Receiver) Run(ctx context.Context) (bench.ReceiveReport, error) {
	if err := r.Params.Validate(); err != nil {
		return bench.ReceiveReport{}, err
	}

	l := log.WithField("port", r.Port)
	bufs := NewBuffers(r.Params.BatchSize, MaxMessageSize)

	stop := context.AfterFunc(ctx, func() {
		r.Endpoint.Close()
	})
	defer stop()

	if r.Barrier != nil {
		if err := r.Barrier.ArriveAndWait(); err != nil {
			return bench.ReceiveReport{}, fmt.Errorf("port %d: %w", r.Port, err)
		}
	}

	l.Info("Waiting for first UDP packet...")
	var n int
	var lens []int
	var err error
	for n == 0 {
		if n, lens, err = r.Endpoint.ReceiveBatch(bufs[:1]); err != nil {
			return bench.ReceiveReport{}, r.receiveError(ctx, err)
		}
	}
	tracker := NewLossTracker(r.sequence(bufs[0], lens[0], 0))

	l.Info("Receiving UDP packets...")
	var timer timing.Timer
	timer.Start()
	if r.Progress != nil {
		r.Progress.Start(timer.Begin)
	}

	for i := 0; i < r.Params.Batches; i++ {
		if n, lens, err = r.Endpoint.ReceiveBatch(bufs); err != nil {
			return bench.ReceiveReport{}, r.receiveError(ctx, err)
		}
		var batchBytes uint64
		for j := 0; j < n; j++ {
			tracker.Observe(r.sequence(bufs[j], lens[j], tracker.First), lens[j])
			batchBytes += uint64(lens[j])
		}
		if r.Progress != nil {
			r.Progress.Add(batchBytes, false)
		}
	}
	timer.Stop()
	if r.Progress != nil {
		r.Progress.Finish()
	}

	report := bench.ReceiveReport{
		Port:     r.Port,
		Received: tracker.Received,
		Lost:     tracker.Lost(),
		Bytes:    tracker.Bytes,
		LossPerc: tracker.LossPerc(),
		Seconds:  timer.Seconds(),
	}
	if report.Seconds > 0 {
		report.Gbps = float64(report.Bytes) / bench.GBPS / report.Seconds
	}

	l.WithFields(log.Fields{
		"gbps": report.Gbps,
		"loss": report.LossPerc,
	}).Infof("Received %.2f GByte over %.2f seconds. Speed: %.2f Gbit/s",
		float64(report.Bytes)/bench.GByte, report.Seconds, report.Gbps)
	l.Infof("Received %d messages, lost %d messages.", report.Received, report.Lost)

	return report, nil
}

// sequence returns the packet number of msg, or fallback if it is too short to carry one
func (r *Receiver) sequence(msg []byte, length int, fallback uint64) uint64 {
	if length < SequenceSize {
		return fallback
	}
	return Sequence(msg)
}

func (r *Receiver) receiveError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("port %d: recvmmsg() failed: %w", r.Port, err)
}
