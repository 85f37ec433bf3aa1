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

package bench

import (
	"errors"
	"fmt"
	"github.com/CedricDViou/cobalt2-compliance/transfer"
)

const (
	// GByte is the number of bytes in a gigabyte, used for data sizes
	GByte = 1024.0 * 1024.0 * 1024.0
	// GBPS is the number of bytes per second in a gigabit per second
	GBPS = 1000.0 * 1000.0 * 1000.0 / 8

	// PacketSize is the size of one station UDP packet
	PacketSize = 9000
	// NrPackets is the number of packets each station stage processes
	NrPackets = 1024 * 1024
	// UDPBufferPackets is the number of packets received per recvmmsg
	UDPBufferPackets = 128
	// ProcessingBufferPackets is the number of packets in a ~1s processing block
	ProcessingBufferPackets = 1024
	// ReductionFactor is the minimum data reduction applied by processing
	ReductionFactor = 2
	// StationRateGbps is the input rate of one station (antenna field)
	StationRateGbps = 3.0
	// DefaultStations is 3 stations per 10GbE interface, 6 interfaces
	DefaultStations = 18
)

type (
	// TransferConfig configures one paced engine. It is not modified once
	// validated.
	TransferConfig struct {
		// Label is a human readable description of the stage
		Label string `json:"label" yaml:"label"`
		// Kind of operation applied to every block
		Kind transfer.Kind `json:"kind" yaml:"kind"`
		// TotalBytes to move before the engine is done
		TotalBytes uint64 `json:"total_bytes" yaml:"total_bytes"`
		// BlockSize is the amount of bytes processed per deadline
		BlockSize uint64 `json:"block_size" yaml:"block_size"`
		// RateBps is the target rate, in bits per second
		RateBps float64 `json:"rate_bps" yaml:"rate_bps"`
		// ChunkElements is the transpose chunk, in samples. 0 means default.
		ChunkElements int `json:"chunk_elements,omitempty" yaml:"chunk_elements,omitempty"`
	}
)

var (
	// ErrEmptyBlock is returned when the block size is 0 or not a whole number of samples
	ErrEmptyBlock = errors.New("Block size must be a positive multiple of 4 bytes")
	// ErrNoVolume is returned when there is nothing to transfer
	ErrNoVolume = errors.New("Total volume must be positive")
	// ErrNoRate is returned when the target rate is not positive
	ErrNoRate = errors.New("Target rate must be positive")
)

// Validate checks if a transfer configuration is properly defined
func (c *TransferConfig) Validate() error {
	if c.BlockSize == 0 || c.BlockSize%4 != 0 {
		return fmt.Errorf("%s: %w", c.Label, ErrEmptyBlock)
	}
	if c.TotalBytes == 0 {
		return fmt.Errorf("%s: %w", c.Label, ErrNoVolume)
	}
	if c.RateBps <= 0 {
		return fmt.Errorf("%s: %w", c.Label, ErrNoRate)
	}
	op, err := transfer.New(c.Kind, c.ChunkElements)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Label, err)
	}
	// A block smaller than one chunk would not be transposed at all
	if x, ok := op.(transfer.Transpose); ok && c.Elements() < x.ChunkElements {
		return fmt.Errorf("%s: %w: %d byte blocks hold less than one %d sample chunk",
			c.Label, transfer.ErrBadChunk, c.BlockSize, x.ChunkElements)
	}
	return nil
}

// Elements returns the number of 32 bit samples in a block
func (c *TransferConfig) Elements() int {
	return int(c.BlockSize / 4)
}

// DesiredGbps returns the target rate in Gbit/s
func (c *TransferConfig) DesiredGbps() float64 {
	return c.RateBps / 1e9
}

func stage(kind transfer.Kind, label string, packets, bufferPackets uint64, gbps float64) TransferConfig {
	return TransferConfig{
		Label:      label,
		Kind:       kind,
		TotalBytes: packets * PacketSize,
		BlockSize:  bufferPackets * PacketSize,
		RateBps:    gbps * 1e9,
	}
}

// DefaultStages returns the ten stages one station goes through, from the
// NIC to the GPU and back out to the NIC.
func DefaultStages() []TransferConfig {
	const in = NrPackets
	const out = NrPackets / ReductionFactor
	const outRate = StationRateGbps / ReductionFactor

	return []TransferConfig{
		// Station data is received in chunks of 128 UDP packets
		stage(transfer.KindWrite, "station input (NIC -> DRAM)", in, UDPBufferPackets, StationRateGbps),
		stage(transfer.KindCopy, "station input (kernel -> user)", in, UDPBufferPackets, StationRateGbps),
		stage(transfer.KindTranspose, "station input (user -> IB staging)", in, UDPBufferPackets, StationRateGbps),
		// Processing blocks of ~1s
		stage(transfer.KindCopy, "station input (IB exchange)", in, ProcessingBufferPackets, StationRateGbps),
		stage(transfer.KindTranspose, "station input (GPU staging)", in, ProcessingBufferPackets, StationRateGbps),
		stage(transfer.KindRead, "station input (DRAM -> GPU)", in, ProcessingBufferPackets, StationRateGbps),
		// Output, reduced
		stage(transfer.KindWrite, "processing output (GPU -> DRAM)", out, ProcessingBufferPackets, outRate),
		stage(transfer.KindCopy, "processing output (BF staging)", out, ProcessingBufferPackets, outRate),
		stage(transfer.KindCopy, "processing output (user -> kernel)", out, ProcessingBufferPackets, outRate),
		stage(transfer.KindRead, "processing output (DRAM -> NIC)", out, ProcessingBufferPackets, outRate),
	}
}
