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
	"github.com/satori/go.uuid"
	"time"
)

type (
	// RunID uniquely identifies a benchmark execution
	RunID string

	// TestName identifies which benchmark produced a run
	TestName string

	// Run is the persisted record of one benchmark execution
	Run struct {
		ID       RunID     `json:"id"`
		Test     TestName  `json:"test"`
		Version  string    `json:"version"`
		Host     string    `json:"host"`
		Started  time.Time `json:"started"`
		Finished time.Time `json:"finished"`

		Summary Summary `json:"summary"`

		// Only one of these is filled, depending on Test
		Reports        []Report        `json:"reports,omitempty"`
		SendReports    []SendReport    `json:"send_reports,omitempty"`
		ReceiveReports []ReceiveReport `json:"receive_reports,omitempty"`
		DeviceReports  []DeviceReport  `json:"device_reports,omitempty"`
		DeviceSummary  *DeviceSummary  `json:"device_summary,omitempty"`
	}
)

const (
	TestMemory  = TestName("mem-test")
	TestSend    = TestName("eth-send")
	TestReceive = TestName("eth-receive")
	TestDevice  = TestName("gpu-copy")
)

var (
	// ErrMissingInformation is returned when a run can not be stored
	ErrMissingInformation = errors.New("Missing fields")
)

// NewRun creates a run record with a fresh id
func NewRun(test TestName, version, host string) *Run {
	return &Run{
		ID:      RunID(uuid.NewV4().String()),
		Test:    test,
		Version: version,
		Host:    host,
		Started: time.Now(),
	}
}

// Validate checks the run can be stored
func (r *Run) Validate() error {
	if r.ID == "" || r.Test == "" || r.Host == "" {
		return ErrMissingInformation
	}
	return nil
}
