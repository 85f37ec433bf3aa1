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

package status

import (
	"bytes"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/types/perf"
	"github.com/CedricDViou/cobalt2-compliance/version"
	json "github.com/gorilla/rpc/v2/json2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func call(t *testing.T, url, method string, args, reply interface{}) {
	body, err := json.EncodeClientRequest(method, args)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if err = json.DecodeClientResponse(resp.Body, reply); err != nil {
		t.Fatal(err)
	}
}

func newTestServer(t *testing.T, board *perf.Board) (*Server, *httptest.Server) {
	server, err := NewServer(bench.TestMemory, "cbt001", board)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return server, ts
}

func TestPing(t *testing.T) {
	_, ts := newTestServer(t, perf.NewBoard())

	var reply PingReply
	call(t, ts.URL, "Bench.Ping", "hello", &reply)
	if reply.Echo != "hello" {
		t.Error("Expecting hello, got ", reply.Echo)
	}
	if reply.Version != version.Version || reply.Test != bench.TestMemory || reply.Host != "cbt001" {
		t.Error("Unexpected reply ", reply)
	}
}

func TestProgress(t *testing.T) {
	board := perf.NewBoard()
	running := board.Register("00/00 UDP receive")
	running.Start(time.Now())
	running.Add(9000, true)
	done := board.Register("00/01 Beamform")
	done.Finish()
	board.Register("01/00 UDP receive")

	server, ts := newTestServer(t, board)

	var reply ProgressReply
	call(t, ts.URL, "Bench.Progress", &ProgressArgs{}, &reply)
	if len(reply.Markers) != 3 || reply.Running != 2 {
		t.Error("Unexpected progress ", reply)
	}
	if reply.Markers[0].TransferredBytes != 9000 || reply.Markers[0].LateBytes != 9000 {
		t.Error("Unexpected marker ", reply.Markers[0])
	}
	if reply.Summary != nil {
		t.Error("There is no summary before the end")
	}

	server.Service.Finished(bench.Summary{Gbps: 53.5, Count: 3})
	var filtered ProgressReply
	call(t, ts.URL, "Bench.Progress", &ProgressArgs{Prefix: "00/"}, &filtered)
	if len(filtered.Markers) != 2 {
		t.Error("Expecting 2 engines of station 0, got ", len(filtered.Markers))
	}
	if filtered.Summary == nil || filtered.Summary.Gbps != 53.5 {
		t.Error("Expecting the summary, got ", filtered.Summary)
	}
}

func TestNoBoard(t *testing.T) {
	if _, err := NewServer(bench.TestSend, "cbt001", nil); err != ErrNoBoard {
		t.Error("Expecting ErrNoBoard, got ", err)
	}
}
