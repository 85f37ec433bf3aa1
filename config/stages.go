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

package config

import (
	"fmt"
	"github.com/CedricDViou/cobalt2-compliance/transfer"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"gopkg.in/yaml.v3"
	"os"
)

type (
	// stageEntry is one stage of a stage file. Sizes are in packets.
	stageEntry struct {
		Label         string  `yaml:"label"`
		Kind          string  `yaml:"kind"`
		Packets       uint64  `yaml:"packets"`
		BlockPackets  uint64  `yaml:"block_packets"`
		RateGbps      float64 `yaml:"rate_gbps"`
		ChunkElements int     `yaml:"chunk_elements"`
	}

	// StageFile describes the pipeline of one station
	StageFile struct {
		// PacketSize in bytes. Defaults to bench.PacketSize.
		PacketSize uint64       `yaml:"packet_size"`
		Stages     []stageEntry `yaml:"stages"`
	}
)

// LoadStages reads the stages of a station from a yaml file
func LoadStages(path string) ([]bench.TransferConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseStages(data)
}

// ParseStages parses, and validates, a stage file
func ParseStages(data []byte) ([]bench.TransferConfig, error) {
	var file StageFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Stages) == 0 {
		return nil, fmt.Errorf("No stages defined")
	}
	if file.PacketSize == 0 {
		file.PacketSize = bench.PacketSize
	}

	stages := make([]bench.TransferConfig, 0, len(file.Stages))
	for i, entry := range file.Stages {
		kind, err := transfer.ParseKind(entry.Kind)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		cfg := bench.TransferConfig{
			Label:         entry.Label,
			Kind:          kind,
			TotalBytes:    entry.Packets * file.PacketSize,
			BlockSize:     entry.BlockPackets * file.PacketSize,
			RateBps:       entry.RateGbps * 1e9,
			ChunkElements: entry.ChunkElements,
		}
		if cfg.Label == "" {
			cfg.Label = fmt.Sprintf("stage %d", i)
		}
		if err = cfg.Validate(); err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, cfg.Label, err)
		}
		stages = append(stages, cfg)
	}
	return stages, nil
}
