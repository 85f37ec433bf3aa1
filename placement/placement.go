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

// Package placement binds threads, and the memory they allocate, to NUMA nodes.
package placement

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type (
	// Policy decides where the threads of a station run.
	// BindToNode applies to the calling OS thread, so callers must hold it
	// with runtime.LockOSThread.
	Policy interface {
		NodeCount() int
		BindToNode(node int) error
	}

	// NUMA binds CPU and memory of the calling thread to one node, as
	// described by sysfs.
	NUMA struct {
		root  string
		nodes []int
	}

	// Null runs everything wherever the scheduler wants. It is only used
	// when placement is explicitly disabled.
	Null struct{}
)

// SysfsNodeRoot is where the kernel describes the NUMA topology
const SysfsNodeRoot = "/sys/devices/system/node"

var (
	// ErrUnavailable is returned when the system does not expose NUMA nodes
	ErrUnavailable = errors.New("NUMA not available")
	// ErrInvalidNode is returned when binding to a node that does not exist
	ErrInvalidNode = errors.New("Invalid NUMA node")

	nodeDirRegex = regexp.MustCompile(`^node([0-9]+)$`)
)

// NewNUMA reads the topology under root (SysfsNodeRoot if empty)
func NewNUMA(root string) (*NUMA, error) {
	if root == "" {
		root = SysfsNodeRoot
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	}

	numa := &NUMA{root: root}
	for _, entry := range entries {
		if match := nodeDirRegex.FindStringSubmatch(entry.Name()); match != nil {
			id, _ := strconv.Atoi(match[1])
			numa.nodes = append(numa.nodes, id)
		}
	}
	if len(numa.nodes) == 0 {
		return nil, ErrUnavailable
	}
	sort.Ints(numa.nodes)
	return numa, nil
}

// NodeCount returns the highest node id plus one
func (n *NUMA) NodeCount() int {
	return n.nodes[len(n.nodes)-1] + 1
}

// Nodes returns the ids of the online nodes
func (n *NUMA) Nodes() []int {
	return n.nodes
}

func (n *NUMA) hasNode(node int) bool {
	i := sort.SearchInts(n.nodes, node)
	return i < len(n.nodes) && n.nodes[i] == node
}

// CPUs returns the list of cpus that belong to node
func (n *NUMA) CPUs(node int) ([]int, error) {
	if !n.hasNode(node) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNode, node)
	}
	raw, err := os.ReadFile(filepath.Join(n.root, fmt.Sprintf("node%d", node), "cpulist"))
	if err != nil {
		return nil, err
	}
	return ParseCPUList(string(raw))
}

// BindToNode restricts the calling thread, and its future allocations, to node
func (n *NUMA) BindToNode(node int) error {
	cpus, err := n.CPUs(node)
	if err != nil {
		return err
	}
	if len(cpus) == 0 {
		return fmt.Errorf("%w: node %d has no cpus", ErrInvalidNode, node)
	}
	if err := bindCPUs(cpus); err != nil {
		return fmt.Errorf("Could not set the cpu affinity for node %d: %w", node, err)
	}
	if err := bindMemory(node); err != nil {
		return fmt.Errorf("Could not set the memory policy for node %d: %w", node, err)
	}
	return nil
}

// ParseCPUList parses the kernel list format, i.e. "0-3,8,10-11"
func ParseCPUList(list string) ([]int, error) {
	var cpus []int
	list = strings.TrimSpace(list)
	if list == "" {
		return cpus, nil
	}
	for _, part := range strings.Split(list, ",") {
		bounds := strings.SplitN(part, "-", 2)
		first, err := strconv.Atoi(bounds[0])
		if err != nil {
			return nil, fmt.Errorf("Malformed cpu list %q", list)
		}
		last := first
		if len(bounds) == 2 {
			if last, err = strconv.Atoi(bounds[1]); err != nil || last < first {
				return nil, fmt.Errorf("Malformed cpu list %q", list)
			}
		}
		for cpu := first; cpu <= last; cpu++ {
			cpus = append(cpus, cpu)
		}
	}
	return cpus, nil
}

// NodeCount always returns 1
func (Null) NodeCount() int {
	return 1
}

// BindToNode does nothing
func (Null) BindToNode(node int) error {
	return nil
}
