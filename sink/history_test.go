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
	"testing"
	"time"
)

func openTestHistory(t *testing.T) *History {
	history, err := OpenHistory(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { history.Close() })
	return history
}

func TestHistoryStoreAndGet(t *testing.T) {
	history := openTestHistory(t)
	run := testRun(bench.TestMemory, time.Now())
	run.Reports = []bench.Report{{Label: "UDP receive", Station: 1, Gbps: 3.01}}

	if err := history.Store(run); err != nil {
		t.Fatal(err)
	}
	stored, err := history.Get(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID != run.ID || stored.Summary.Gbps != 53.5 {
		t.Error("Unexpected run ", stored)
	}
	if len(stored.Reports) != 1 || stored.Reports[0].Label != "UDP receive" {
		t.Error("Reports were not stored ", stored.Reports)
	}

	if _, err := history.Get("missing"); err != ErrNotFound {
		t.Error("Expecting ErrNotFound, got ", err)
	}
}

func TestHistoryList(t *testing.T) {
	history := openTestHistory(t)
	origin := time.Date(2016, 3, 1, 12, 0, 0, 0, time.UTC)

	older := testRun(bench.TestMemory, origin)
	device := testRun(bench.TestDevice, origin.Add(time.Hour))
	newer := testRun(bench.TestMemory, origin.Add(2*time.Hour))
	for _, run := range []*bench.Run{newer, older, device} {
		if err := history.Store(run); err != nil {
			t.Fatal(err)
		}
	}

	all, err := history.List("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != newer.ID || all[1].ID != device.ID || all[2].ID != older.ID {
		t.Error("Expecting the runs newest first")
	}

	memory, err := history.List(bench.TestMemory, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(memory) != 2 {
		t.Error("Expecting 2 memory runs, got ", len(memory))
	}

	limited, err := history.List("", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].ID != newer.ID {
		t.Error("Expecting only the newest run")
	}
}

func TestHistoryReplace(t *testing.T) {
	history := openTestHistory(t)
	run := testRun(bench.TestSend, time.Now())
	if err := history.Store(run); err != nil {
		t.Fatal(err)
	}
	run.Started = run.Started.Add(time.Minute)
	run.Summary.Gbps = 9
	if err := history.Store(run); err != nil {
		t.Fatal(err)
	}

	all, err := history.List("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Summary.Gbps != 9 {
		t.Error("Storing the same run twice must replace it, got ", len(all))
	}
}

func TestHistoryDelete(t *testing.T) {
	history := openTestHistory(t)
	run := testRun(bench.TestReceive, time.Now())
	if err := history.Store(run); err != nil {
		t.Fatal(err)
	}
	if err := history.Delete(run.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := history.Get(run.ID); err != ErrNotFound {
		t.Error("Expecting ErrNotFound after delete, got ", err)
	}
	if err := history.Delete(run.ID); err != ErrNotFound {
		t.Error("Expecting ErrNotFound, got ", err)
	}
}
