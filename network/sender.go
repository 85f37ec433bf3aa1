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

// Package network sends and receives paced UDP streams, the way an antenna
// field feeds a correlator node.
package network

import (
	"context"
	"errors"
	"fmt"
	"github.com/CedricDViou/cobalt2-compliance/engine"
	"github.com/CedricDViou/cobalt2-compliance/timing"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/types/perf"
	log "github.com/sirupsen/logrus"
)

type (
	// Params defines the shape of a stream
	Params struct {
		MessageSize int
		BatchSize   int
		Batches     int
		Oversend    int
		RateBps     float64
	}

	// Sender emits a paced stream on one endpoint
	Sender struct {
		Params   Params
		Port     int
		Endpoint Endpoint
		// Barrier all the senders meet at before starting. Optional.
		Barrier *engine.Barrier
		// Progress is updated after every message. Optional.
		Progress *perf.Progress
	}
)

var (
	// ErrBadParams is returned when a stream can not be built from the parameters
	ErrBadParams = errors.New("Invalid stream parameters")
)

// DefaultParams returns the parameters of one antenna field stream
func DefaultParams() Params {
	return Params{
		MessageSize: MaxMessageSize,
		BatchSize:   DefaultBatchSize,
		Batches:     DefaultBatches,
		Oversend:    DefaultOversend,
		RateBps:     DefaultRateBps,
	}
}

// Validate checks the parameters
func (p *Params) Validate() error {
	switch {
	case p.MessageSize < SequenceSize || p.MessageSize > MaxMessageSize:
		return fmt.Errorf("%w: message size must be between %d and %d", ErrBadParams, SequenceSize, MaxMessageSize)
	case p.BatchSize <= 0 || p.Batches <= 0:
		return fmt.Errorf("%w: empty batches", ErrBadParams)
	case p.Oversend <= 0:
		return fmt.Errorf("%w: oversend must be at least 1", ErrBadParams)
	}
	return nil
}

// Messages returns how many messages a sender emits
func (p *Params) Messages() uint64 {
	return uint64(p.Batches) * uint64(p.BatchSize) * uint64(p.Oversend)
}

// Run sends Messages() messages, each one on its own absolute deadline.
// Late messages are sent anyway. Messages the endpoint refuses are counted
// as dropped, never retried.
func (s *Sender) Run(ctx context.Context) (bench.SendReport, error) {
	if err := s.Params.Validate(); err != nil {
		return bench.SendReport{}, err
	}
	if s.Params.RateBps <= 0 {
		return bench.SendReport{}, fmt.Errorf("%w: rate must be positive", ErrBadParams)
	}

	l := log.WithField("port", s.Port)
	msg := NewBuffers(1, s.Params.MessageSize)
	for i := range msg[0] {
		msg[0][i] = 0x2a
	}

	if s.Barrier != nil {
		if err := s.Barrier.ArriveAndWait(); err != nil {
			return bench.SendReport{}, fmt.Errorf("port %d: %w", s.Port, err)
		}
	}

	var report = bench.SendReport{Port: s.Port}
	var late uint64
	var timer timing.Timer
	var warned bool

	total := s.Params.Messages()
	size := uint64(s.Params.MessageSize)

	timer.Start()
	if s.Progress != nil {
		s.Progress.Start(timer.Begin)
	}
	origin := timing.FromTime(timer.Begin)

	// Packet numbers start at 1. Packet n is due once n messages fit in the rate.
	for seq := uint64(1); seq <= total; seq++ {
		isLate, err := timing.WaitUntilContext(ctx, timing.Deadline(origin, seq*size, s.Params.RateBps))
		if err != nil {
			break
		}
		if isLate {
			late++
		}

		PutSequence(msg[0], seq)
		n, err := s.Endpoint.SendBatch(msg)
		if n < 1 {
			report.Dropped++
			if !warned {
				l.WithError(err).Warn("Send failed, counting the message as dropped")
				warned = true
			}
		} else {
			report.Sent++
		}

		if s.Progress != nil {
			s.Progress.Add(size, isLate)
		}
	}
	timer.Stop()
	if s.Progress != nil {
		s.Progress.Finish()
	}

	report.Seconds = timer.Seconds()
	if report.Seconds > 0 {
		report.Gbps = float64(report.Sent*size) / report.Seconds / bench.GBPS
	}
	if attempted := report.Sent + report.Dropped; attempted > 0 {
		report.LatePerc = 100.0 * float64(late) / float64(attempted)
	}

	l.WithFields(log.Fields{
		"gbps": report.Gbps,
		"late": report.LatePerc,
	}).Infof("Port %d: Sent %d messages in %.2fs at %.2f Gbit/s, %.2f%% late.",
		s.Port, report.Sent, report.Seconds, report.Gbps, report.LatePerc)

	return report, nil
}
