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

// Package device measures host to device and device to host copy speeds.
package device

import (
	"errors"
	"fmt"
	"sync"
)

type (
	// Buffer is memory owned by a device
	Buffer interface {
		Size() uint64
	}

	// Backend drives one device
	Backend interface {
		Name() string
		// TotalMemory is the memory size of the device, in bytes
		TotalMemory() uint64
		Alloc(bytes uint64) (Buffer, error)
		Free(buf Buffer) error
		CopyHostToDevice(dst Buffer, src []byte) error
		CopyDeviceToHost(dst []byte, src Buffer) error
		Close() error
	}

	// Opener returns the backend of a device
	Opener func(device int) (Backend, error)

	// HostBackend emulates a device in host memory
	HostBackend struct {
		device  int
		memory  uint64
		mutex   sync.Mutex
		used    uint64
		closed  bool
		buffers map[*hostBuffer]struct{}
	}

	hostBuffer struct {
		data []byte
	}
)

var (
	// ErrOutOfMemory is returned when the device can not hold the allocation
	ErrOutOfMemory = errors.New("Out of device memory")
	// ErrSizeMismatch is returned when a copy does not cover the whole buffer
	ErrSizeMismatch = errors.New("Host and device buffer sizes differ")
	// ErrInvalidBuffer is returned for buffers this backend did not allocate
	ErrInvalidBuffer = errors.New("Invalid device buffer")
	// ErrClosed is returned when using a closed backend
	ErrClosed = errors.New("Device context destroyed")
)

// NewHostBackend emulates device number device with memory bytes
func NewHostBackend(device int, memory uint64) *HostBackend {
	return &HostBackend{
		device:  device,
		memory:  memory,
		buffers: make(map[*hostBuffer]struct{}),
	}
}

// HostOpener returns an Opener of host backends, all of the same size
func HostOpener(memory uint64) Opener {
	return func(device int) (Backend, error) {
		return NewHostBackend(device, memory), nil
	}
}

func (b *hostBuffer) Size() uint64 {
	return uint64(len(b.data))
}

// Name identifies the backend in the reports
func (h *HostBackend) Name() string {
	return fmt.Sprintf("host:%d", h.device)
}

// TotalMemory returns the emulated memory size
func (h *HostBackend) TotalMemory() uint64 {
	return h.memory
}

// Alloc reserves bytes of the emulated memory
func (h *HostBackend) Alloc(bytes uint64) (Buffer, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	if h.used+bytes > h.memory {
		return nil, fmt.Errorf("%w: %d bytes requested, %d free", ErrOutOfMemory, bytes, h.memory-h.used)
	}
	buf := &hostBuffer{data: make([]byte, bytes)}
	h.buffers[buf] = struct{}{}
	h.used += bytes
	return buf, nil
}

func (h *HostBackend) lookup(buf Buffer) (*hostBuffer, error) {
	hb, ok := buf.(*hostBuffer)
	if !ok {
		return nil, ErrInvalidBuffer
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	if _, ok := h.buffers[hb]; !ok {
		return nil, ErrInvalidBuffer
	}
	return hb, nil
}

// Free releases a buffer
func (h *HostBackend) Free(buf Buffer) error {
	hb, ok := buf.(*hostBuffer)
	if !ok {
		return ErrInvalidBuffer
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return ErrClosed
	}
	if _, ok := h.buffers[hb]; !ok {
		return ErrInvalidBuffer
	}
	delete(h.buffers, hb)
	h.used -= hb.Size()
	return nil
}

// CopyHostToDevice copies the whole of src into dst
func (h *HostBackend) CopyHostToDevice(dst Buffer, src []byte) error {
	hb, err := h.lookup(dst)
	if err != nil {
		return err
	}
	if uint64(len(src)) != hb.Size() {
		return ErrSizeMismatch
	}
	copy(hb.data, src)
	return nil
}

// CopyDeviceToHost copies the whole of src into dst
func (h *HostBackend) CopyDeviceToHost(dst []byte, src Buffer) error {
	hb, err := h.lookup(src)
	if err != nil {
		return err
	}
	if uint64(len(dst)) != hb.Size() {
		return ErrSizeMismatch
	}
	copy(dst, hb.data)
	return nil
}

// Close releases all the buffers
func (h *HostBackend) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.closed = true
	h.buffers = nil
	h.used = 0
	return nil
}
