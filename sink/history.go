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
	"encoding/json"
	"fmt"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	log "github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	ldbutil "github.com/syndtr/goleveldb/leveldb/util"
)

const (
	runPrefix   = "run/"
	indexPrefix = "id/"
)

type (
	// History keeps the runs of this host in a local db.
	// Runs are keyed by start time, so they are listed in order.
	History struct {
		db *leveldb.DB
	}
)

// OpenHistory opens, or creates, the local db
func OpenHistory(path string) (*History, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("Could not open the history at %s: %w", path, err)
	}
	return &History{db: db}, nil
}

// NewHistory wraps an already open db
func NewHistory(db *leveldb.DB) *History {
	return &History{db: db}
}

func runKey(run *bench.Run) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", runPrefix, run.Started.UnixNano(), run.ID))
}

func indexKey(id bench.RunID) []byte {
	return []byte(indexPrefix + string(id))
}

// Store puts the run in the db. Storing the same run twice replaces it.
func (h *History) Store(run *bench.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	if previous, err := h.db.Get(indexKey(run.ID), nil); err == nil {
		batch.Delete(previous)
	}
	key := runKey(run)
	batch.Put(key, data)
	batch.Put(indexKey(run.ID), key)

	log.WithField("run", run.ID).Debug("Storing run in the history")
	return h.db.Write(batch, nil)
}

// Get returns the run with the given id
func (h *History) Get(id bench.RunID) (*bench.Run, error) {
	key, err := h.db.Get(indexKey(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	data, err := h.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var run bench.Run
	if err = json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns up to limit runs, newest first. An empty test matches all
// of them, and limit <= 0 means no limit.
func (h *History) List(test bench.TestName, limit int) ([]*bench.Run, error) {
	runs := make([]*bench.Run, 0)

	iter := h.db.NewIterator(ldbutil.BytesPrefix([]byte(runPrefix)), nil)
	defer iter.Release()

	for ok := iter.Last(); ok; ok = iter.Prev() {
		var run bench.Run
		if err := json.Unmarshal(iter.Value(), &run); err != nil {
			log.WithError(err).Warn("Failed to parse entry in the history: ", string(iter.Key()))
			continue
		}
		if test != "" && run.Test != test {
			continue
		}
		runs = append(runs, &run)
		if limit > 0 && len(runs) >= limit {
			break
		}
	}
	return runs, iter.Error()
}

// Delete removes the run with the given id
func (h *History) Delete(id bench.RunID) error {
	key, err := h.db.Get(indexKey(id), nil)
	if err == leveldb.ErrNotFound {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Delete(key)
	batch.Delete(indexKey(id))
	return h.db.Write(batch, nil)
}

// Close closes the local db
func (h *History) Close() error {
	return h.db.Close()
}
