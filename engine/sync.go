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

package engine

import (
	"errors"
	"sync"
	"sync/atomic"
)

type (
	// StopSignal is shared by the engines of one scope. The first engine to
	// finish raises it, and the others stop at their next iteration.
	StopSignal struct {
		raised atomic.Bool
	}

	// Barrier is a reusable rendezvous for a fixed number of participants
	Barrier struct {
		mutex      sync.Mutex
		cond       *sync.Cond
		parties    int
		waiting    int
		generation uint64
		err        error
	}
)

var (
	// ErrBarrierAborted is returned to the participants of an aborted barrier
	ErrBarrierAborted = errors.New("Barrier aborted")
)

// Raise sets the signal. It returns true only for the caller that raised it first.
func (s *StopSignal) Raise() bool {
	return s.raised.CompareAndSwap(false, true)
}

// Raised returns true once the signal has been raised
func (s *StopSignal) Raised() bool {
	return s.raised.Load()
}

// NewBarrier creates a barrier for parties participants
func NewBarrier(parties int) *Barrier {
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mutex)
	return b
}

// Parties returns the number of participants
func (b *Barrier) Parties() int {
	return b.parties
}

// ArriveAndWait blocks until all the participants have arrived.
// The barrier is then reset for the next round.
func (b *Barrier) ArriveAndWait() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.err != nil {
		return b.err
	}

	generation := b.generation
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.generation++
		b.cond.Broadcast()
		return nil
	}

	for generation == b.generation && b.err == nil {
		b.cond.Wait()
	}
	if generation == b.generation {
		return b.err
	}
	return nil
}

// Abort releases all the current and future participants with an error wrapping
// cause. Used when one participant fails during setup and will never arrive.
func (b *Barrier) Abort(cause error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.err == nil {
		if cause == nil {
			b.err = ErrBarrierAborted
		} else {
			b.err = errors.Join(ErrBarrierAborted, cause)
		}
	}
	b.cond.Broadcast()
}
