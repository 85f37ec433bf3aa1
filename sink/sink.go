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

// Package sink stores the results of benchmark runs.
package sink

import (
	"encoding/json"
	"errors"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	log "github.com/sirupsen/logrus"
)

type (
	// Sink stores finished runs
	Sink interface {
		Store(run *bench.Run) error
		Close() error
	}

	// Multi stores a run in all of its sinks
	Multi []Sink

	// Log dumps runs into the log
	Log struct{}

	// Config tells which sinks are enabled. Empty means disabled.
	Config struct {
		History  string
		Redis    string
		Amqp     string
		Database string
	}
)

var (
	// ErrNotFound is returned when a run is not stored
	ErrNotFound = errors.New("Run not found")
)

// Store stores the run in every sink. A failing sink does not prevent the
// others from getting the run.
func (m Multi) Store(run *bench.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}
	var errs []error
	for _, s := range m {
		if err := s.Store(run); err != nil {
			log.WithError(err).WithField("run", run.ID).Errorf("Failed to store the run in %T", s)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Store logs the run as JSON
func (Log) Store(run *bench.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"run":  run.ID,
		"test": run.Test,
		"host": run.Host,
	}).Debug(string(data))
	return nil
}

// Close does nothing
func (Log) Close() error {
	return nil
}

// Open creates every sink enabled in the configuration. On error, the sinks
// already open are closed.
func Open(cfg Config) (Multi, error) {
	sinks := Multi{Log{}}

	if cfg.History != "" {
		history, err := OpenHistory(cfg.History)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		log.Info("Storing results in ", cfg.History)
		sinks = append(sinks, history)
	}
	if cfg.Redis != "" {
		log.Info("Publishing scores to ", cfg.Redis)
		sinks = append(sinks, NewScoreboard(cfg.Redis))
	}
	if cfg.Amqp != "" {
		publisher, err := NewPublisher(cfg.Amqp)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		log.Info("Publishing results to ", cfg.Amqp)
		sinks = append(sinks, publisher)
	}
	if cfg.Database != "" {
		db, err := NewDatabase(cfg.Database)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		log.Info("Storing results in the database")
		sinks = append(sinks, db)
	}
	return sinks, nil
}
