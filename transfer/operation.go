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

package transfer

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// Kind names one of the supported transfer operations
	Kind string

	// Operation processes one block of samples.
	// Read and Write touch one buffer, Copy and Transpose touch both.
	Operation interface {
		Apply(src, dst []int32)
		Kind() Kind
		// Multiplier is the number of memory traffic directions implied
		Multiplier() int
	}

	// Read sums the source block
	Read struct {
		// Sum of the last processed block, kept so the scan is observable
		Sum int32
	}

	// Write fills the destination block with a constant pattern
	Write struct{}

	// Copy copies the source block into the destination block
	Copy struct{}

	// Transpose reorders fixed-size chunks with a stride-7 permutation.
	// It stands in for a staging/reordering step; only the access pattern matters.
	Transpose struct {
		ChunkElements int
	}
)

const (
	KindRead      = Kind("Read")
	KindWrite     = Kind("Write")
	KindCopy      = Kind("Copy")
	KindTranspose = Kind("Transpose")

	// DefaultChunkElements is the transpose chunk size, in samples
	DefaultChunkElements = 9000

	// Pattern is the value Write stores in every sample (0x2a in every byte)
	Pattern = int32(0x2a2a2a2a)

	transposeStride = 7
)

var (
	// ErrUnknownKind is returned when parsing an unsupported operation name
	ErrUnknownKind = errors.New("Unknown transfer operation")
	// ErrBadChunk is returned when a transpose chunk is not positive, or does not fit a block
	ErrBadChunk = errors.New("Transpose chunk must be positive")
)

// ParseKind accepts the operation name, case insensitive. "Xpose" is accepted
// as an alias of Transpose.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "read":
		return KindRead, nil
	case "write":
		return KindWrite, nil
	case "copy":
		return KindCopy, nil
	case "transpose", "xpose":
		return KindTranspose, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// New builds the operation for kind. chunkElements is only used by Transpose,
// and defaults to DefaultChunkElements when 0.
func New(kind Kind, chunkElements int) (Operation, error) {
	switch kind {
	case KindRead:
		return &Read{}, nil
	case KindWrite:
		return Write{}, nil
	case KindCopy:
		return Copy{}, nil
	case KindTranspose:
		if chunkElements == 0 {
			chunkElements = DefaultChunkElements
		}
		if chunkElements < 0 {
			return nil, ErrBadChunk
		}
		return Transpose{ChunkElements: chunkElements}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Short returns the five letter label used on report lines
func (k Kind) Short() string {
	if k == KindTranspose {
		return "Xpose"
	}
	return string(k)
}

// Apply sums src
func (r *Read) Apply(src, dst []int32) {
	var sum int32
	for _, v := range src {
		sum += v
	}
	r.Sum = sum
}

func (r *Read) Kind() Kind      { return KindRead }
func (r *Read) Multiplier() int { return 1 }

// Apply fills dst with Pattern
func (Write) Apply(src, dst []int32) {
	for i := range dst {
		dst[i] = Pattern
	}
}

func (Write) Kind() Kind      { return KindWrite }
func (Write) Multiplier() int { return 1 }

// Apply copies src into dst
func (Copy) Apply(src, dst []int32) {
	copy(dst, src)
}

func (Copy) Kind() Kind      { return KindCopy }
func (Copy) Multiplier() int { return 2 }

// Apply writes chunk i of dst from chunk (i*7) mod nChunks of src.
// Trailing samples that do not fill a whole chunk are left untouched.
func (x Transpose) Apply(src, dst []int32) {
	nChunks := len(src) / x.ChunkElements
	for i := 0; i < nChunks; i++ {
		from := (i * transposeStride) % nChunks * x.ChunkElements
		to := i * x.ChunkElements
		copy(dst[to:to+x.ChunkElements], src[from:from+x.ChunkElements])
	}
}

func (Transpose) Kind() Kind      { return KindTranspose }
func (Transpose) Multiplier() int { return 2 }
