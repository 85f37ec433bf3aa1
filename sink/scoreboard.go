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

package sink

import (
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/gomodule/redigo/redis"
	log "github.com/sirupsen/logrus"
	"strings"
	"time"
)

const (
	// KeySeparator is used to join scoreboard keys together
	KeySeparator = "#"
	// ScorePrefix starts every scoreboard key
	ScorePrefix = "cobalt"
)

type (
	// Scoreboard keeps the last summary of every host and test, so a fleet of
	// nodes can be compared at a glance
	Scoreboard struct {
		pool *redis.Pool
	}

	// Score is the last summary stored for a host and test
	Score struct {
		ID          string  `redis:"id"`
		Version     string  `redis:"version"`
		Finished    string  `redis:"finished"`
		DesiredGbps float64 `redis:"desired_gbps"`
		Gbps        float64 `redis:"gbps"`
		Percent     float64 `redis:"percent"`
		LatePerc    float64 `redis:"late_perc"`
		LossPerc    float64 `redis:"loss_perc"`
		WriteGbps   float64 `redis:"write_gbps"`
		ReadGbps    float64 `redis:"read_gbps"`
		Count       int     `redis:"count"`
	}
)

// NewScoreboard connects lazily to the redis server at addr
func NewScoreboard(addr string) *Scoreboard {
	return NewScoreboardWithPool(&redis.Pool{
		MaxIdle:     2,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
	})
}

// NewScoreboardWithPool uses an existing pool
func NewScoreboardWithPool(pool *redis.Pool) *Scoreboard {
	return &Scoreboard{pool: pool}
}

func scoreKey(keys ...string) string {
	return strings.Join(append([]string{ScorePrefix}, keys...), KeySeparator)
}

// Store replaces the score of the run host and test
func (s *Scoreboard) Store(run *bench.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}

	score := Score{
		ID:          string(run.ID),
		Version:     run.Version,
		Finished:    run.Finished.Format(time.RFC3339),
		DesiredGbps: run.Summary.DesiredGbps,
		Gbps:        run.Summary.Gbps,
		Percent:     run.Summary.Percent,
		LatePerc:    run.Summary.LatePerc,
		LossPerc:    run.Summary.LossPerc,
		Count:       run.Summary.Count,
	}
	if run.DeviceSummary != nil {
		score.WriteGbps = run.DeviceSummary.WriteGbps
		score.ReadGbps = run.DeviceSummary.ReadGbps
	}

	conn := s.pool.Get()
	defer conn.Close()

	key := scoreKey(run.Host, string(run.Test))
	l := log.WithField("key", key)

	if _, err := conn.Do("HSET", redis.Args{}.Add(key).AddFlat(&score)...); err != nil {
		return err
	}
	if _, err := conn.Do("SADD", scoreKey("hosts", string(run.Test)), run.Host); err != nil {
		return err
	}
	l.WithField("gbps", score.Gbps).Debug("Updated score")
	return nil
}

// Last returns the last score of the given host and test
func (s *Scoreboard) Last(host string, test bench.TestName) (*Score, error) {
	conn := s.pool.Get()
	defer conn.Close()

	values, err := redis.Values(conn.Do("HGETALL", scoreKey(host, string(test))))
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	var score Score
	if err = redis.ScanStruct(values, &score); err != nil {
		return nil, err
	}
	return &score, nil
}

// Hosts returns the hosts that have a score for the given test
func (s *Scoreboard) Hosts(test bench.TestName) ([]string, error) {
	conn := s.pool.Get()
	defer conn.Close()
	return redis.Strings(conn.Do("SMEMBERS", scoreKey("hosts", string(test))))
}

// Close closes the connection pool
func (s *Scoreboard) Close() error {
	return s.pool.Close()
}
