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

package timing

import (
	"context"
	"testing"
	"time"
)

func TestAddCarry(t *testing.T) {
	ts := Timestamp{Sec: 5, Usec: 900000}
	got := ts.Add(250000)
	if got != (Timestamp{Sec: 6, Usec: 150000}) {
		t.Fatal("Unexpected carry: ", got)
	}
	got = ts.Add(3100000)
	if got != (Timestamp{Sec: 9, Usec: 0}) {
		t.Fatal("Unexpected carry: ", got)
	}
}

func TestDiffBorrow(t *testing.T) {
	from := Timestamp{Sec: 5, Usec: 900000}
	to := Timestamp{Sec: 6, Usec: 100000}

	diff := Diff(from, to)
	if diff != (Timestamp{Sec: 0, Usec: 200000}) {
		t.Fatal("Expecting 0.200000, got ", diff)
	}
	if diff.Microseconds() != 200000 {
		t.Error("Unexpected microseconds: ", diff.Microseconds())
	}
}

func TestDiffAddRoundTrip(t *testing.T) {
	pairs := [][2]Timestamp{
		{{Sec: 5, Usec: 900000}, {Sec: 6, Usec: 100000}},
		{{Sec: 1, Usec: 0}, {Sec: 1, Usec: 0}},
		{{Sec: 10, Usec: 123}, {Sec: 99, Usec: 999999}},
		{{Sec: 0, Usec: 999999}, {Sec: 1000, Usec: 1}},
	}
	for _, p := range pairs {
		from, to := p[0], p[1]
		if got := from.Add(Diff(from, to).Microseconds()); got != to {
			t.Errorf("%s + diff != %s (got %s)", from, to, got)
		}
	}
}

func TestDeadlineIsAbsolute(t *testing.T) {
	origin := Timestamp{Sec: 100}
	// 1 Gbit/s -> 125000 bytes take 1ms
	if d := Deadline(origin, 125000, 1e9); d != (Timestamp{Sec: 100, Usec: 1000}) {
		t.Fatal("Unexpected deadline ", d)
	}
	if d := Deadline(origin, 125000*2000, 1e9); d != (Timestamp{Sec: 102}) {
		t.Fatal("Unexpected deadline ", d)
	}
}

func TestWaitUntilPast(t *testing.T) {
	start := time.Now()
	if !WaitUntil(Now().Add(-1000)) {
		t.Fatal("A deadline in the past must be reported late")
	}
	if time.Since(start) > 5*time.Millisecond {
		t.Error("WaitUntil slept on a past deadline")
	}
}

func TestWaitUntilFuture(t *testing.T) {
	deadline := Now().Add(20000)
	if WaitUntil(deadline) {
		t.Fatal("A deadline in the future must not be reported late")
	}
	if deadline.After(Now()) {
		t.Fatal("Returned before the deadline")
	}
	if overshoot := Diff(deadline, Now()).Duration(); overshoot > 10*time.Millisecond {
		t.Error("Overslept by ", overshoot)
	}
}

func TestWaitUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	late, err := WaitUntilContext(ctx, Now().Add(10*usecPerSec))
	if err != context.Canceled {
		t.Fatal("Expecting context.Canceled, got ", err)
	}
	if late {
		t.Error("Interrupted wait must not be reported late")
	}
	if time.Since(start) > time.Second {
		t.Error("Cancellation did not interrupt the wait")
	}
}

func TestTimer(t *testing.T) {
	var timer Timer
	timer.Begin = time.Unix(10, 0)
	timer.End = time.Unix(12, 500000000)
	if timer.Seconds() != 2.5 {
		t.Fatal("Unexpected duration ", timer.Seconds())
	}
}
