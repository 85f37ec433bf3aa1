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

// Package timing provides the wall-clock arithmetic used to pace transfers:
// microsecond timestamps, absolute deadlines and a sleep that never spins.
package timing

import (
	"fmt"
	"time"
)

const usecPerSec = 1000000

type (
	// Timestamp is a point in wall-clock time with microsecond resolution.
	// Usec is always kept within [0, 1e6) for timestamps built by this package.
	// When used as the result of Diff, Sec carries the sign.
	Timestamp struct {
		Sec  int64 `json:"sec"`
		Usec int64 `json:"usec"`
	}
)

// Now returns the current wall-clock time
func Now() Timestamp {
	return FromTime(time.Now())
}

// FromTime truncates t to microseconds
func FromTime(t time.Time) Timestamp {
	return Timestamp{
		Sec:  t.Unix(),
		Usec: int64(t.Nanosecond() / 1000),
	}
}

// Time converts back into a time.Time
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Sec, t.Usec*1000)
}

// Add returns t shifted by usec microseconds, carrying into the seconds field.
func (t Timestamp) Add(usec int64) Timestamp {
	t.Sec += usec / usecPerSec
	t.Usec += usec % usecPerSec

	if t.Usec >= usecPerSec {
		t.Usec -= usecPerSec
		t.Sec++
	} else if t.Usec < 0 {
		t.Usec += usecPerSec
		t.Sec--
	}
	return t
}

// Diff returns to - from, borrowing a second when the sub-second part of to
// is smaller than the one of from.
func Diff(from, to Timestamp) Timestamp {
	diff := Timestamp{Sec: to.Sec - from.Sec}
	if to.Usec >= from.Usec {
		diff.Usec = to.Usec - from.Usec
	} else {
		diff.Sec--
		diff.Usec = usecPerSec + to.Usec - from.Usec
	}
	return diff
}

// Microseconds returns the total amount of microseconds in t
func (t Timestamp) Microseconds() int64 {
	return t.Sec*usecPerSec + t.Usec
}

// Duration converts t, interpreted as a difference, into a time.Duration
func (t Timestamp) Duration() time.Duration {
	return time.Duration(t.Microseconds()) * time.Microsecond
}

// After returns true if t is strictly later than other
func (t Timestamp) After(other Timestamp) bool {
	if t.Sec != other.Sec {
		return t.Sec > other.Sec
	}
	return t.Usec > other.Usec
}

// String formats the timestamp as seconds.microseconds
func (t Timestamp) String() string {
	return fmt.Sprintf("%d.%06d", t.Sec, t.Usec)
}
