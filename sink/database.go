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
	"database/sql"
	"encoding/json"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

// Schema creates the tables used by the database sink
const Schema = `
CREATE TABLE IF NOT EXISTS t_bench_runs (
	run_id       VARCHAR(36) PRIMARY KEY,
	test         VARCHAR(32) NOT NULL,
	version      VARCHAR(16) NOT NULL,
	host         VARCHAR(255) NOT NULL,
	started      TIMESTAMP WITH TIME ZONE NOT NULL,
	finished     TIMESTAMP WITH TIME ZONE NOT NULL,
	desired_gbps DOUBLE PRECISION,
	gbps         DOUBLE PRECISION,
	late_perc    DOUBLE PRECISION,
	loss_perc    DOUBLE PRECISION,
	details      JSONB
)`

type (
	// Database stores runs in PostgreSQL
	Database struct {
		db *sql.DB
	}
)

// NewDatabase connects to the database, and creates the tables if needed
func NewDatabase(addr string) (*Database, error) {
	db, err := sql.Open("postgres", addr)
	if err != nil {
		return nil, err
	}
	d := &Database{db}
	if err = d.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Init creates the tables if needed
func (d *Database) Init() error {
	_, err := d.db.Exec(Schema)
	return err
}

// Store inserts the run. A run already stored is replaced.
func (d *Database) Store(run *bench.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}
	details, err := json.Marshal(run)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(
		`INSERT INTO t_bench_runs
			(run_id, test, version, host, started, finished, desired_gbps, gbps, late_perc, loss_perc, details) VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id) DO UPDATE SET details = EXCLUDED.details
		`, string(run.ID), string(run.Test), run.Version, run.Host, run.Started, run.Finished,
		run.Summary.DesiredGbps, run.Summary.Gbps, run.Summary.LatePerc, run.Summary.LossPerc, string(details))
	if err == nil {
		log.WithField("run", run.ID).Debug("Inserted run in the database")
	}
	return err
}

// Get returns the run with the given id
func (d *Database) Get(id bench.RunID) (*bench.Run, error) {
	rows, err := d.db.Query("SELECT details FROM t_bench_runs WHERE run_id = $1", string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, ErrNotFound
	}
	var details string
	if err = rows.Scan(&details); err != nil {
		return nil, err
	}
	var run bench.Run
	if err = json.Unmarshal([]byte(details), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns the ids of the runs of a host, newest first
func (d *Database) List(host string) ([]bench.RunID, error) {
	rows, err := d.db.Query("SELECT run_id FROM t_bench_runs WHERE host = $1 ORDER BY started DESC", host)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []bench.RunID
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, bench.RunID(id))
	}
	return ids, rows.Err()
}

// Close closes the connection to the database
func (d *Database) Close() error {
	return d.db.Close()
}
