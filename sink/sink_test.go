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
	"errors"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"testing"
	"time"
)

type memorySink struct {
	runs   []*bench.Run
	err    error
	closed bool
}

func (m *memorySink) Store(run *bench.Run) error {
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func testRun(test bench.TestName, started time.Time) *bench.Run {
	run := bench.NewRun(test, "1.0", "cbt001")
	run.Started = started
	run.Finished = started.Add(10 * time.Second)
	run.Summary = bench.Summary{DesiredGbps: 54, Gbps: 53.5, Percent: 99.07, LatePerc: 0.5, Count: 180}
	return run
}

func TestMultiStoresEverywhere(t *testing.T) {
	failure := errors.New("broker gone")
	a, b, c := &memorySink{}, &memorySink{err: failure}, &memorySink{}
	multi := Multi{a, b, c}

	run := testRun(bench.TestMemory, time.Now())
	err := multi.Store(run)
	if !errors.Is(err, failure) {
		t.Error("Expecting the failure to be reported, got ", err)
	}
	if len(a.runs) != 1 || len(c.runs) != 1 {
		t.Error("A failing sink must not prevent the others from storing")
	}

	if err := multi.Close(); err != nil {
		t.Fatal(err)
	}
	if !a.closed || !b.closed || !c.closed {
		t.Error("All sinks must be closed")
	}
}

func TestMultiRejectsIncomplete(t *testing.T) {
	a := &memorySink{}
	run := testRun(bench.TestMemory, time.Now())
	run.Host = ""
	if err := (Multi{a}).Store(run); err != bench.ErrMissingInformation {
		t.Error("Expecting ErrMissingInformation, got ", err)
	}
	if len(a.runs) != 0 {
		t.Error("An incomplete run must not be stored")
	}
}

func TestOpenLogOnly(t *testing.T) {
	sinks, err := Open(Config{})
	if err != nil {
		t.Fatal(err)
	}
	if len(sinks) != 1 {
		t.Fatal("Expecting only the log sink, got ", len(sinks))
	}
	if err := sinks.Store(testRun(bench.TestSend, time.Now())); err != nil {
		t.Error(err)
	}
}

func TestOpenHistory(t *testing.T) {
	sinks, err := Open(Config{History: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer sinks.Close()
	if _, ok := sinks[1].(*History); !ok {
		t.Error("Expecting a history sink, got ", sinks[1])
	}
}
