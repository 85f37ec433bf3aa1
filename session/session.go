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

// Package session holds what every benchmark binary sets up around a run:
// the result sinks, the progress board and its status endpoint, and the
// signal handling.
package session

import (
	"context"
	"errors"
	"github.com/CedricDViou/cobalt2-compliance/config"
	"github.com/CedricDViou/cobalt2-compliance/sink"
	"github.com/CedricDViou/cobalt2-compliance/status"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/types/perf"
	"github.com/CedricDViou/cobalt2-compliance/util"
	"github.com/CedricDViou/cobalt2-compliance/version"
	log "github.com/sirupsen/logrus"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ProgressInterval is how often progress is published to the broker
const ProgressInterval = 5 * time.Second

var (
	// ErrInterrupted is returned by Finish when the run was cut short by a signal
	ErrInterrupted = errors.New("Run interrupted, results not stored")
)

type (
	// Session wraps one benchmark run
	Session struct {
		Run   *bench.Run
		Board *perf.Board
		Sinks sink.Multi

		ctx    context.Context
		cancel context.CancelFunc
		status *status.Server
	}
)

// Open sets up the sinks and the status endpoint configured in viper
func Open(test bench.TestName) (*Session, error) {
	return OpenWith(test, config.SinkConfig(), config.StatusAddress())
}

// OpenWith sets up the given sinks, and the status endpoint if statusAddr is not empty
func OpenWith(test bench.TestName, sinks sink.Config, statusAddr string) (*Session, error) {
	var err error
	s := &Session{
		Run:   bench.NewRun(test, version.Version, util.Hostname()),
		Board: perf.NewBoard(),
	}
	s.ctx, s.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if s.Sinks, err = sink.Open(sinks); err != nil {
		s.cancel()
		return nil, err
	}

	if statusAddr != "" {
		if s.status, err = status.NewServer(test, s.Run.Host, s.Board); err != nil {
			s.Close()
			return nil, err
		}
		errc, err := s.status.Go(statusAddr)
		if err != nil {
			s.status = nil
			s.Close()
			return nil, err
		}
		go func() {
			for err := range errc {
				log.WithError(err).Error("Status endpoint stopped")
			}
		}()
	}

	for _, target := range s.Sinks {
		if publisher, ok := target.(*sink.Publisher); ok {
			go publisher.Watch(s.ctx, s.Run.Host, s.Board, ProgressInterval)
		}
	}

	util.OnExit(func() {
		s.Close()
	})

	log.WithFields(log.Fields{
		"run":  s.Run.ID,
		"test": test,
	}).Info("Starting run")
	return s, nil
}

// Context is cancelled on SIGINT or SIGTERM
func (s *Session) Context() context.Context {
	return s.ctx
}

// Finish stamps the run, and stores it in every sink. Interrupted runs are
// not stored, their reports only cover part of the volume.
func (s *Session) Finish(summary bench.Summary) error {
	s.Run.Finished = time.Now()
	s.Run.Summary = summary
	if s.status != nil {
		s.status.Service.Finished(summary)
	}
	if s.ctx.Err() != nil {
		return ErrInterrupted
	}
	return s.Sinks.Store(s.Run)
}

// Close stops the status endpoint and closes the sinks. It can be called
// more than once.
func (s *Session) Close() {
	s.cancel()
	if s.status != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		s.status.Shutdown(ctx)
		cancel()
		s.status = nil
	}
	if s.Sinks != nil {
		if err := s.Sinks.Close(); err != nil {
			log.WithError(err).Warn("Failed to close the sinks")
		}
		s.Sinks = nil
	}
}
