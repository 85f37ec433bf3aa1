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

package network

import (
	"context"
	"fmt"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
	"net"
	"strconv"
	"syscall"
)

type (
	// Mode tells if an endpoint sends or receives
	Mode int

	// Endpoint sends or receives fixed-size messages in batches.
	// Partial batches are not an error.
	Endpoint interface {
		// SendBatch returns how many messages were handed to the network
		SendBatch(msgs [][]byte) (int, error)
		// ReceiveBatch blocks until at least one message arrives, and returns
		// how many buffers were filled, and the length of each
		ReceiveBatch(bufs [][]byte) (int, []int, error)
		Close() error
	}

	// Opener creates endpoints. Open is the UDP implementation.
	Opener func(host string, port int, mode Mode) (Endpoint, error)

	// UDPEndpoint uses sendmmsg/recvmmsg where the platform has them
	UDPEndpoint struct {
		conn   *net.UDPConn
		pconn  *ipv4.PacketConn
		msgs   []ipv4.Message
		lens   []int
		remote string
	}
)

const (
	ModeSend = Mode(iota)
	ModeReceive
)

func (m Mode) String() string {
	if m == ModeReceive {
		return "receive"
	}
	return "send"
}

// reuseAddr sets SO_REUSEADDR before bind
func reuseAddr(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// Open connects to host:port when sending, or binds to it when receiving.
// IPv4 only.
func Open(host string, port int, mode Mode) (Endpoint, error) {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	e := &UDPEndpoint{remote: address}

	switch mode {
	case ModeReceive:
		lc := net.ListenConfig{Control: reuseAddr}
		pc, err := lc.ListenPacket(context.Background(), "udp4", address)
		if err != nil {
			return nil, fmt.Errorf("bind(%s) failed: %w", address, err)
		}
		e.conn = pc.(*net.UDPConn)
	default:
		raddr, err := net.ResolveUDPAddr("udp4", address)
		if err != nil {
			return nil, fmt.Errorf("Could not resolve %s: %w", address, err)
		}
		if e.conn, err = net.DialUDP("udp4", nil, raddr); err != nil {
			return nil, fmt.Errorf("connect(%s) failed: %w", address, err)
		}
	}

	e.pconn = ipv4.NewPacketConn(e.conn)
	return e, nil
}

func (e *UDPEndpoint) messages(bufs [][]byte) []ipv4.Message {
	if cap(e.msgs) < len(bufs) {
		e.msgs = make([]ipv4.Message, len(bufs))
		for i := range e.msgs {
			e.msgs[i].Buffers = make([][]byte, 1)
		}
	}
	msgs := e.msgs[:len(bufs)]
	for i := range msgs {
		msgs[i].Buffers[0] = bufs[i]
		msgs[i].N = 0
	}
	return msgs
}

// SendBatch sends msgs on the connected socket
func (e *UDPEndpoint) SendBatch(msgs [][]byte) (int, error) {
	return e.pconn.WriteBatch(e.messages(msgs), 0)
}

// ReceiveBatch receives up to len(bufs) messages
func (e *UDPEndpoint) ReceiveBatch(bufs [][]byte) (int, []int, error) {
	msgs := e.messages(bufs)
	n, err := e.pconn.ReadBatch(msgs, 0)
	if err != nil {
		return 0, nil, err
	}
	if cap(e.lens) < len(bufs) {
		e.lens = make([]int, len(bufs))
	}
	lens := e.lens[:n]
	for i := 0; i < n; i++ {
		lens[i] = msgs[i].N
	}
	return n, lens, nil
}

// Close closes the socket
func (e *UDPEndpoint) Close() error {
	return e.conn.Close()
}

// String returns the address this endpoint is attached to
func (e *UDPEndpoint) String() string {
	return e.remote
}
