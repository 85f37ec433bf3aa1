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

package network

type (
	// LossTracker infers lost messages from the packet numbers seen.
	// The first message is the baseline and is not counted as received.
	LossTracker struct {
		First    uint64
		Max      uint64
		Received uint64
		Bytes    uint64
	}
)

// NewLossTracker starts tracking from the baseline packet number
func NewLossTracker(first uint64) *LossTracker {
	return &LossTracker{First: first, Max: first}
}

// Observe accounts for one received message
func (l *LossTracker) Observe(seq uint64, size int) {
	if seq > l.Max {
		l.Max = seq
	}
	l.Received++
	l.Bytes += uint64(size)
}

// Lost returns (max - first) - received. It can be negative on duplicates.
func (l *LossTracker) Lost() int64 {
	return int64(l.Max-l.First) - int64(l.Received)
}

// LossPerc returns the lost messages as a percentage of the received ones
func (l *LossTracker) LossPerc() float64 {
	if l.Received == 0 {
		return 0
	}
	return 100.0 * float64(l.Lost()) / float64(l.Received)
}
