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
	"time"
)

type (
	// Timer records a time span
	Timer struct {
		Begin, End time.Time
	}
)

// Start records the beginning of the span
func (t *Timer) Start() {
	t.Begin = time.Now()
}

// Stop records the end of the span
func (t *Timer) Stop() {
	t.End = time.Now()
}

// Seconds returns the duration between Start and Stop, in seconds
func (t *Timer) Seconds() float64 {
	return t.End.Sub(t.Begin).Seconds()
}

// Deadline returns the moment by which offsetBytes must have been processed,
// counted from origin, to sustain bitsPerSecond.
// Deadlines are always derived from the fixed origin, so a late unit does not
// shift the following ones.
func Deadline(origin Timestamp, offsetBytes uint64, bitsPerSecond float64) Timestamp {
	usec := float64(usecPerSec) * float64(offsetBytes) / (bitsPerSecond / 8)
	return origin.Add(int64(usec))
}

// WaitUntil sleeps until deadline. It returns true, without sleeping, if the
// deadline has already passed.
func WaitUntil(deadline Timestamp) bool {
	late, _ := WaitUntilContext(context.Background(), deadline)
	return late
}

// WaitUntilContext is WaitUntil, but the sleep can be interrupted by ctx.
// On interruption, late is false and err is the context error.
func WaitUntilContext(ctx context.Context, deadline Timestamp) (late bool, err error) {
	now := Now()
	if now.After(deadline) {
		return true, nil
	}

	timer := time.NewTimer(Diff(now, deadline).Duration())
	defer timer.Stop()

	select {
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
