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

import (
	"encoding/binary"
)

const (
	// MaxMessageSize must fit in a jumbo frame, after adding headers
	MaxMessageSize = 8900
	// SequenceSize is the size of the packet number at the start of every message
	SequenceSize = 8

	// DefaultBatchSize is the number of messages per batch
	DefaultBatchSize = 128
	// DefaultBatches is the number of batches to receive
	DefaultBatches = 512
	// DefaultOversend is how many more messages the sender emits, to allow for loss
	DefaultOversend = 2
	// DefaultRateBps is the speed of one data stream.
	// 3 Gbit/s per antenna field, 4 streams per field.
	DefaultRateBps = 3e9 / 4
	// DefaultPorts is the number of ports, 3 antenna fields of 4 streams each per 10GbE link
	DefaultPorts = 12
	// DefaultFirstPort is the first port to send to, or listen on
	DefaultFirstPort = 5000
)

// PutSequence writes the packet number at the start of msg
func PutSequence(msg []byte, seq uint64) {
	binary.LittleEndian.PutUint64(msg[:SequenceSize], seq)
}

// Sequence reads the packet number at the start of msg
func Sequence(msg []byte) uint64 {
	return binary.LittleEndian.Uint64(msg[:SequenceSize])
}

// NewBuffers allocates count messages of size bytes each
func NewBuffers(count, size int) [][]byte {
	backing := make([]byte, count*size)
	buffers := make([][]byte, count)
	for i := range buffers {
		buffers[i] = backing[i*size : (i+1)*size : (i+1)*size]
	}
	return buffers
}
