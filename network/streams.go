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
	"errors"
	"fmt"
	"github.com/CedricDViou/cobalt2-compliance/engine"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/types/perf"
	log "github.com/sirupsen/logrus"
	"sync"
)

type (
	// Streams runs one sender, or one receiver, per port. All of them start
	// together.
	Streams struct {
		Host      string
		FirstPort int
		Ports     int
		Params    Params
		// Open creates the endpoints. Defaults to the UDP Open.
		Open Opener
		// Board receives the progress of every port. Optional.
		Board *perf.Board
	}
)

var (
	// ErrNoPorts is returned when there is no port to use
	ErrNoPorts = errors.New("At least one port is required")
)

func (s *Streams) validate() error {
	if s.Ports <= 0 {
		return ErrNoPorts
	}
	if s.FirstPort <= 0 || s.FirstPort+s.Ports-1 > 65535 {
		return fmt.Errorf("%w: ports %d to %d are out of range", ErrBadParams, s.FirstPort, s.FirstPort+s.Ports-1)
	}
	return s.Params.Validate()
}

func (s *Streams) opener() Opener {
	if s.Open != nil {
		return s.Open
	}
	return Open
}

func (s *Streams) progress(mode Mode, port int) *perf.Progress {
	if s.Board == nil {
		return nil
	}
	return s.Board.Register(fmt.Sprintf("%s/%d", mode, port))
}

// openAll opens every port, or none
func (s *Streams) openAll(mode Mode) ([]Endpoint, error) {
	open := s.opener()
	endpoints := make([]Endpoint, 0, s.Ports)
	for i := 0; i < s.Ports; i++ {
		ep, err := open(s.Host, s.FirstPort+i, mode)
		if err != nil {
			closeAll(endpoints)
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

func closeAll(endpoints []Endpoint) {
	for _, ep := range endpoints {
		if err := ep.Close(); err != nil {
			log.Debug("Closing endpoint: ", err)
		}
	}
}

// runPorts calls run for every port in parallel, and collects the results in port order
func runPorts[T any](n int, run func(i int) (T, error)) ([]T, error) {
	results := make([]T, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = run(i)
		}(i)
	}
	wg.Wait()

	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		// Ports cancelled because of a failing peer report the peer error
		if !errors.Is(err, context.Canceled) {
			return nil, err
		}
		if first == nil {
			first = err
		}
	}
	if first != nil {
		return nil, first
	}
	return results, nil
}

// Send runs a paced sender on every port
func (s *Streams) Send(ctx context.Context) ([]bench.SendReport, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	log.Infof("Target host: %s", s.Host)
	log.Infof("First port:  %d", s.FirstPort)
	log.Infof("Port count:  %d", s.Ports)

	endpoints, err := s.openAll(ModeSend)
	if err != nil {
		return nil, err
	}
	defer closeAll(endpoints)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	barrier := engine.NewBarrier(s.Ports)
	return runPorts(s.Ports, func(i int) (bench.SendReport, error) {
		sender := &Sender{
			Params:   s.Params,
			Port:     s.FirstPort + i,
			Endpoint: endpoints[i],
			Barrier:  barrier,
			Progress: s.progress(ModeSend, s.FirstPort+i),
		}
		report, err := sender.Run(ctx)
		if err != nil {
			// Wakes up the ports past the barrier too
			barrier.Abort(err)
			cancel()
		}
		return report, err
	})
}

// Receive runs a receiver on every port
func (s *Streams) Receive(ctx context.Context) ([]bench.ReceiveReport, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	log.Infof("Listen host: %s", s.Host)
	log.Infof("First port:  %d", s.FirstPort)
	log.Infof("Port count:  %d", s.Ports)

	endpoints, err := s.openAll(ModeReceive)
	if err != nil {
		return nil, err
	}
	defer closeAll(endpoints)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	barrier := engine.NewBarrier(s.Ports)
	return runPorts(s.Ports, func(i int) (bench.ReceiveReport, error) {
		receiver := &Receiver{
			Params:   s.Params,
			Port:     s.FirstPort + i,
			Endpoint: endpoints[i],
			Barrier:  barrier,
			Progress: s.progress(ModeReceive, s.FirstPort+i),
		}
		report, err := receiver.Run(ctx)
		if err != nil {
			// Wakes up the ports past the barrier too
			barrier.Abort(err)
			cancel()
		}
		return report, err
	})
}
