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

package sink

import (
	"encoding/json"
	"github.com/CedricDViou/cobalt2-compliance/bus/exchanges"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/types/perf"
	"github.com/streadway/amqp"
	"testing"
	"time"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	declared  []string
	published []published
	closed    bool
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.declared = append(c.declared, name)
	return nil
}

func (c *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.published = append(c.published, published{exchange, key, msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type fakeAcknowledger struct {
	acked, nacked, requeued, rejected int
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.nacked++
	if requeue {
		a.requeued++
	}
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.rejected++
	return nil
}

func TestPublisherStore(t *testing.T) {
	channel := &fakeChannel{}
	publisher, err := NewPublisherWithChannel(channel)
	if err != nil {
		t.Fatal(err)
	}
	if len(channel.declared) != 2 || channel.declared[0] != exchanges.Results.Name {
		t.Error("Expecting the exchanges to be declared, got ", channel.declared)
	}

	run := testRun(bench.TestReceive, time.Now())
	if err := publisher.Store(run); err != nil {
		t.Fatal(err)
	}
	if len(channel.published) != 1 {
		t.Fatal("Expecting one message, got ", len(channel.published))
	}
	p := channel.published[0]
	if p.exchange != exchanges.Results.Name || p.key != "eth-receive" {
		t.Error("Unexpected destination ", p.exchange, p.key)
	}
	if p.msg.MessageId != string(run.ID) || p.msg.DeliveryMode != amqp.Persistent {
		t.Error("Unexpected publishing ", p.msg)
	}

	var decoded bench.Run
	if err := json.Unmarshal(p.msg.Body, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ID != run.ID {
		t.Error("Expecting the run in the body")
	}

	if err := publisher.Close(); err != nil || !channel.closed {
		t.Error("The channel must be closed")
	}
}

func TestPublisherProgress(t *testing.T) {
	channel := &fakeChannel{}
	publisher, err := NewPublisherWithChannel(channel)
	if err != nil {
		t.Fatal(err)
	}
	board := perf.NewBoard()
	board.Register("00/00 UDP receive").Add(9000, false)

	if err := publisher.Progress("cbt001", board.Snapshot()); err != nil {
		t.Fatal(err)
	}
	p := channel.published[0]
	if p.exchange != exchanges.Progress.Name || p.msg.AppId != "cbt001" {
		t.Error("Unexpected destination ", p.exchange, p.msg.AppId)
	}
	var markers []perf.Marker
	if err := json.Unmarshal(p.msg.Body, &markers); err != nil {
		t.Fatal(err)
	}
	if len(markers) != 1 || markers[0].TransferredBytes != 9000 {
		t.Error("Unexpected markers ", markers)
	}
}

func delivery(ack amqp.Acknowledger, body []byte) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, Body: body}
}

func TestConsume(t *testing.T) {
	ack := &fakeAcknowledger{}
	target := &memorySink{}

	valid, _ := json.Marshal(testRun(bench.TestMemory, time.Now()))
	incomplete, _ := json.Marshal(&bench.Run{ID: "x"})

	deliveries := make(chan amqp.Delivery, 3)
	deliveries <- delivery(ack, valid)
	deliveries <- delivery(ack, []byte("{not json"))
	deliveries <- delivery(ack, incomplete)
	close(deliveries)

	if err := Consume(deliveries, target); err != nil {
		t.Fatal(err)
	}
	if len(target.runs) != 1 || ack.acked != 1 {
		t.Error("Expecting one run stored and acked, got ", len(target.runs), ack.acked)
	}
	if ack.rejected != 2 {
		t.Error("Expecting two rejected messages, got ", ack.rejected)
	}
}

func TestConsumeRequeuesOnFailure(t *testing.T) {
	defer func(delay time.Duration) { requeueDelay = delay }(requeueDelay)
	requeueDelay = 50 * time.Millisecond

	ack := &fakeAcknowledger{}
	target := &memorySink{err: ErrNotFound}

	valid, _ := json.Marshal(testRun(bench.TestMemory, time.Now()))
	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- delivery(ack, valid)
	close(deliveries)

	start := time.Now()
	Consume(deliveries, target)
	if ack.nacked != 1 || ack.requeued != 1 || ack.acked != 0 {
		t.Error("A run that can not be stored must be requeued")
	}
	if elapsed := time.Since(start); elapsed < requeueDelay {
		t.Error("Expecting the requeue to wait ", requeueDelay, ", got ", elapsed)
	}
}

func TestConsumeDropsRedelivered(t *testing.T) {
	ack := &fakeAcknowledger{}
	target := &memorySink{err: ErrNotFound}

	valid, _ := json.Marshal(testRun(bench.TestMemory, time.Now()))
	d := delivery(ack, valid)
	d.Redelivered = true
	deliveries := make(chan amqp.Delivery, 1)
	deliveries <- d
	close(deliveries)

	Consume(deliveries, target)
	if ack.nacked != 1 || ack.requeued != 0 {
		t.Error("A run that fails again must not be requeued")
	}
}
