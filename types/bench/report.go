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
	"github.com/CedricDViou/cobalt2-compliance/transfer"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"time"
)

type (
	// Report is the result of one paced engine run
	Report struct {
		Label   string        `json:"label"`
		Kind    transfer.Kind `json:"kind"`
		Station int           `json:"station"`
		Stage   int           `json:"stage"`

		DesiredGbps float64 `json:"desired_gbps"`
		Gbps        float64 `json:"gbps"`
		// LatePerc is the percentage of processed bytes whose deadline had already passed
		LatePerc float64 `json:"late_perc"`
		// Multiplier is 1 for read/write, 2 for copy/transpose
		Multiplier int `json:"multiplier"`

		Bytes   uint64    `json:"bytes"`
		Seconds float64   `json:"seconds"`
		Started time.Time `json:"started"`
	}

	// Summary aggregates a set of reports
	Summary struct {
		DesiredGbps float64 `json:"desired_gbps"`
		Gbps        float64 `json:"gbps"`
		// Percent of the desired speed that was achieved
		Percent  float64 `json:"percent"`
		LatePerc float64 `json:"late_perc"`
		LossPerc float64 `json:"loss_perc,omitempty"`
		Count    int     `json:"count"`
	}
)

// Summarize sums the weighted desired and measured speeds, and averages the
// late percentage over all reports.
func Summarize(reports []Report) Summary {
	if len(reports) == 0 {
		return Summary{}
	}

	desired := make([]float64, len(reports))
	measured := make([]float64, len(reports))
	late := make([]float64, len(reports))
	for i, r := range reports {
		mult := float64(r.Multiplier)
		desired[i] = r.DesiredGbps * mult
		measured[i] = r.Gbps * mult
		late[i] = r.LatePerc
	}

	s := Summary{
		DesiredGbps: floats.Sum(desired),
		Gbps:        floats.Sum(measured),
		LatePerc:    stat.Mean(late, nil),
		Count:       len(reports),
	}
	if s.DesiredGbps > 0 {
		s.Percent = 100.0 * s.Gbps / s.DesiredGbps
	}
	return s
}

// SortReports orders reports by station, then stage
func SortReports(reports []Report) {
	slices.SortStableFunc(reports, func(a, b Report) int {
		if a.Station != b.Station {
			return a.Station - b.Station
		}
		return a.Stage - b.Stage
	})
}
