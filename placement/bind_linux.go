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

package placement

import (
	"golang.org/x/sys/unix"
	"unsafe"
)

// From linux/mempolicy.h
const mpolBind = 2

func bindCPUs(cpus []int) error {
	var set unix.CPUSet
	set.Zero()
	for _, cpu := range cpus {
		set.Set(cpu)
	}
	// pid 0 is the calling thread
	return unix.SchedSetaffinity(0, &set)
}

// bindMemory sets a strict MPOL_BIND policy on the calling thread
func bindMemory(node int) error {
	mask := make([]uint64, node/64+1)
	mask[node/64] |= 1 << uint(node%64)

	_, _, errno := unix.Syscall(unix.SYS_SET_MEMPOLICY,
		uintptr(mpolBind),
		uintptr(unsafe.Pointer(&mask[0])),
		uintptr(len(mask)*64+1),
	)
	if errno != 0 {
		return errno
	}
	return nil
}
