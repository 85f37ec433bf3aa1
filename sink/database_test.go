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
	"os"
	"testing"
	"time"
)

// Set COBALT_TEST_DATABASE to a connection string to run against PostgreSQL
func TestDatabase(t *testing.T) {
	addr := os.Getenv("COBALT_TEST_DATABASE")
	if addr == "" {
		t.Skip("COBALT_TEST_DATABASE not set")
	}

	db, err := NewDatabase(addr)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	run := testRun(bench.TestDevice, time.Now().Truncate(time.Microsecond))
	if err := db.Store(run); err != nil {
		t.Fatal(err)
	}
	if err := db.Store(run); err != nil {
		t.Fatal("Storing twice must replace, got ", err)
	}

	stored, err := db.Get(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID != run.ID || stored.Summary.Gbps != run.Summary.Gbps {
		t.Error("Unexpected run ", stored)
	}

	ids, err := db.List(run.Host)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, id := range ids {
		found = found || id == run.ID
	}
	if !found {
		t.Error("Expecting the run in the list")
	}

	if _, err := db.Get("00000000-0000-0000-0000-000000000000"); err != ErrNotFound {
		t.Error("Expecting ErrNotFound, got ", err)
	}
}
