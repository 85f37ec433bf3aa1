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
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type (
	// SendReport is the result of one paced sender
	SendReport struct {
		Port int `json:"port"`
		// Messages handed to the network
		Sent uint64 `json:"sent"`
		// Messages the send primitive did not accept
		Dropped  uint64  `json:"dropped"`
		LatePerc float64 `json:"late_perc"`
		Gbps     float64 `json:"gbps"`
		Seconds  float64 `json:"seconds"`
	}

	// ReceiveReport is the result of one receiver
	ReceiveReport struct {
		Port     int     `json:"port"`
		Received uint64  `json:"received"`
		Lost     int64   `json:"lost"`
		Bytes    uint64  `json:"bytes"`
		Gbps     float64 `json:"gbps"`
		LossPerc float64 `json:"loss_perc"`
		Seconds  float64 `json:"seconds"`
	}

	// DeviceReport is the result of one device copy test
	DeviceReport struct {
		Device    int     `json:"device"`
		Backend   string  `json:"backend"`
		Bytes     uint64  `json:"bytes"`
		WriteGbps float64 `json:"write_gbps"`
		ReadGbps  float64 `json:"read_gbps"`
	}

	// DeviceSummary totals device reports
	DeviceSummary struct {
		WriteGbps float64 `json:"write_gbps"`
		ReadGbps  float64 `json:"read_gbps"`
	}
)

// SummarizeReceive sums the speeds and averages the loss over all receivers
func SummarizeReceive(reports []ReceiveReport) Summary {
	if len(reports) == 0 {
		return Summary{}
	}
	speeds := make([]float64, len(reports))
	losses := make([]float64, len(reports))
	for i, r := range reports {
		speeds[i] = r.Gbps
		losses[i] = r.LossPerc
	}
	return Summary{
		Gbps:     floats.Sum(speeds),
		LossPerc: stat.Mean(losses, nil),
		Count:    len(reports),
	}
}

// SummarizeSend sums the speeds and averages the lateness over all senders
func SummarizeSend(reports []SendReport) Summary {
	if len(reports) == 0 {
		return Summary{}
	}
	speeds := make([]float64, len(reports))
	late := make([]float64, len(reports))
	for i, r := range reports {
		speeds[i] = r.Gbps
		late[i] = r.LatePerc
	}
	return Summary{
		Gbps:     floats.Sum(speeds),
		LatePerc: stat.Mean(late, nil),
		Count:    len(reports),
	}
}

// SummarizeDevices sums read and write speeds of all devices
func SummarizeDevices(reports []DeviceReport) DeviceSummary {
	var total DeviceSummary
	for _, r := range reports {
		total.WriteGbps += r.WriteGbps
		total.ReadGbps += r.ReadGbps
	}
	return total
}
