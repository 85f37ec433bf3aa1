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

// Package status exposes the progress of a running benchmark over JSON-RPC.
package status

import (
	"context"
	"errors"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/types/perf"
	"github.com/CedricDViou/cobalt2-compliance/version"
	"github.com/gorilla/mux"
	"github.com/gorilla/rpc/v2"
	json "github.com/gorilla/rpc/v2/json2"
	log "github.com/sirupsen/logrus"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

type (
	// BenchRPC is the service registered as "Bench"
	BenchRPC struct {
		Test  bench.TestName
		Host  string
		board *perf.Board

		mutex sync.Mutex
		last  *bench.Summary
	}

	// PingReply echoes the request
	PingReply struct {
		Version string
		Test    bench.TestName
		Host    string
		Echo    string
	}

	// ProgressArgs filters the engines returned. Empty means all.
	ProgressArgs struct {
		Prefix string
	}

	// ProgressReply holds a snapshot of the board
	ProgressReply struct {
		Markers []perf.Marker
		Running int
		Summary *bench.Summary `json:",omitempty"`
	}

	// Server serves the Bench service on /rpc
	Server struct {
		Service *BenchRPC
		server  *http.Server
	}
)

var (
	// ErrNoBoard is returned when there is nothing to report on
	ErrNoBoard = errors.New("No progress board")
)

// NewServer creates the JSON-RPC server for the given board
func NewServer(test bench.TestName, host string, board *perf.Board) (*Server, error) {
	if board == nil {
		return nil, ErrNoBoard
	}
	service := &BenchRPC{Test: test, Host: host, board: board}

	server := rpc.NewServer()
	server.RegisterCodec(json.NewCodec(), "application/json")
	server.RegisterCodec(json.NewCodec(), "application/json;charset=UTF-8")
	server.RegisterCodec(json.NewCodec(), "application/json-rpc")
	if err := server.RegisterService(service, "Bench"); err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.Handle("/rpc", server).Methods("POST")

	return &Server{
		Service: service,
		server:  &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second},
	}, nil
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Serve accepts connections on the listener, until Shutdown is called
func (s *Server) Serve(listener net.Listener) error {
	log.Info("Status listening on ", listener.Addr())
	if err := s.server.Serve(listener); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Go listens on addr and serves in a goroutine
func (s *Server) Go(addr string) (<-chan error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	c := make(chan error, 1)
	go func() {
		if err := s.Serve(listener); err != nil {
			c <- err
		}
		close(c)
	}()
	return c, nil
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Finished records the summary of the run, so late pollers can get it
func (c *BenchRPC) Finished(summary bench.Summary) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.last = &summary
}

// Ping method
func (c *BenchRPC) Ping(r *http.Request, args *string, reply *PingReply) error {
	log.WithFields(log.Fields{
		"echo":   *args,
		"remote": r.RemoteAddr,
	}).Debug("Ping")
	reply.Echo = *args
	reply.Version = version.Version
	reply.Test = c.Test
	reply.Host = c.Host
	return nil
}

// Progress returns the markers of the engines
func (c *BenchRPC) Progress(r *http.Request, args *ProgressArgs, reply *ProgressReply) error {
	markers := c.board.Snapshot()
	reply.Markers = make([]perf.Marker, 0, len(markers))
	for _, m := range markers {
		if !strings.HasPrefix(m.Engine, args.Prefix) {
			continue
		}
		reply.Markers = append(reply.Markers, m)
		if !m.Done {
			reply.Running++
		}
	}

	c.mutex.Lock()
	reply.Summary = c.last
	c.mutex.Unlock()

	log.WithFields(log.Fields{
		"remote":  r.RemoteAddr,
		"engines": len(reply.Markers),
	}).Debug("Progress")
	return nil
}
