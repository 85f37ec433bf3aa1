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

package device

import (
	"errors"
	"fmt"
	"github.com/CedricDViou/cobalt2-compliance/engine"
	"github.com/CedricDViou/cobalt2-compliance/timing"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	log "github.com/sirupsen/logrus"
	"sync"
)

const (
	// DefaultIterations is how many times each copy is repeated
	DefaultIterations = 10
	// memoryHeadroom leaves some device memory free
	memoryHeadroom = 1.1
)

type (
	// Test copies a buffer to and from every device, all devices in parallel
	Test struct {
		Devices    int
		Iterations int
		// BufferSize of the copies. When 0, just about all the device memory.
		BufferSize uint64
		Open       Opener
	}
)

var (
	// ErrNoDevices is returned when there is nothing to test
	ErrNoDevices = errors.New("No devices to test")
)

// Validate checks the test can run
func (t *Test) Validate() error {
	if t.Devices <= 0 || t.Open == nil {
		return ErrNoDevices
	}
	if t.Iterations <= 0 {
		return fmt.Errorf("Iterations must be positive, got %d", t.Iterations)
	}
	return nil
}

// Run tests all the devices together. Writes start at the same time on all
// devices, and so do reads. Any device error fails the test.
func (t *Test) Run() ([]bench.DeviceReport, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	barrier := engine.NewBarrier(t.Devices)
	reports := make([]bench.DeviceReport, t.Devices)
	errs := make([]error, t.Devices)

	var wg sync.WaitGroup
	for i := 0; i < t.Devices; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i], errs[i] = t.testDevice(i, barrier)
			if errs[i] != nil {
				barrier.Abort(errs[i])
			}
		}(i)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return reports, nil
}

func (t *Test) testDevice(device int, barrier *engine.Barrier) (report bench.DeviceReport, err error) {
	l := log.WithField("device", device)
	report.Device = device

	backend, err := t.Open(device)
	if err != nil {
		return report, fmt.Errorf("device %d: %w", device, err)
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			l.WithError(cerr).Warn("Could not destroy the device context")
			if err == nil {
				err = fmt.Errorf("device %d: Close: %w", device, cerr)
			}
		}
	}()
	report.Backend = backend.Name()

	total := backend.TotalMemory()
	l.Infof("[device %d] Total memory size: %.2f GByte RAM", device, float64(total)/bench.GByte)

	size := t.BufferSize
	if size == 0 {
		size = uint64(float64(total) / memoryHeadroom)
	}

	l.Infof("[device %d] Allocating memory...", device)
	devMem, err := backend.Alloc(size)
	if err != nil {
		return report, fmt.Errorf("device %d: Alloc: %w", device, err)
	}
	defer func() {
		if ferr := backend.Free(devMem); ferr != nil {
			l.WithError(ferr).Warn("Could not free the device memory")
			if err == nil {
				err = fmt.Errorf("device %d: Free: %w", device, ferr)
			}
		}
	}()
	hostMem := make([]byte, size)
	for i := range hostMem {
		hostMem[i] = 1
	}
	report.Bytes = size * uint64(t.Iterations)

	l.Infof("[device %d] Waiting for other threads...", device)
	if err := barrier.ArriveAndWait(); err != nil {
		return report, err
	}

	l.Infof("[device %d] Writing %.2f GByte to the device, %d times...", device, float64(size)/bench.GByte, t.Iterations)
	var timer timing.Timer
	timer.Start()
	for i := 0; i < t.Iterations; i++ {
		if err := backend.CopyHostToDevice(devMem, hostMem); err != nil {
			return report, fmt.Errorf("device %d: CopyHostToDevice: %w", device, err)
		}
	}
	timer.Stop()
	report.WriteGbps = gbps(report.Bytes, timer.Seconds())
	l.Infof("[device %d] Writing took %.2fs (average over %d runs), resulting in %.2f Gbit/s",
		device, timer.Seconds()/float64(t.Iterations), t.Iterations, report.WriteGbps)

	if err := barrier.ArriveAndWait(); err != nil {
		return report, err
	}

	l.Infof("[device %d] Reading %.2f GByte from the device, %d times...", device, float64(size)/bench.GByte, t.Iterations)
	timer.Start()
	for i := 0; i < t.Iterations; i++ {
		if err := backend.CopyDeviceToHost(hostMem, devMem); err != nil {
			return report, fmt.Errorf("device %d: CopyDeviceToHost: %w", device, err)
		}
	}
	timer.Stop()
	report.ReadGbps = gbps(report.Bytes, timer.Seconds())
	l.Infof("[device %d] Reading took %.2fs (average over %d runs), resulting in %.2f Gbit/s",
		device, timer.Seconds()/float64(t.Iterations), t.Iterations, report.ReadGbps)

	if err := barrier.ArriveAndWait(); err != nil {
		return report, err
	}
	l.Infof("[device %d] Cleaning up...", device)
	return report, nil
}

func gbps(bytes uint64, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return float64(bytes) / bench.GBPS / seconds
}
